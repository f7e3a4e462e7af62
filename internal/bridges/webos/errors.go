package webos

import (
	"errors"
	"fmt"
)

// Domain errors for the webOS bridge package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the socket to the television
	// cannot be opened.
	ErrConnectionFailed = errors.New("webos: connection failed")

	// ErrConnectionLost fails every pending request when the socket closes
	// underneath an established session.
	ErrConnectionLost = errors.New("webos: connection lost")

	// ErrHandshakeRejected is returned when the television answers the
	// registration with an error (pairing declined, bad key, ...).
	ErrHandshakeRejected = errors.New("webos: handshake rejected")

	// ErrTimeout is returned when a connect or request deadline expires.
	ErrTimeout = errors.New("webos: operation timed out")

	// ErrDeviceError is the sentinel wrapped by *DeviceError.
	ErrDeviceError = errors.New("webos: device returned an error")

	// ErrCancelled is returned to callers whose work was abandoned because
	// the session was closed or disconnected on purpose.
	ErrCancelled = errors.New("webos: cancelled")

	// ErrProtocol marks inbound frames that could not be decoded.
	ErrProtocol = errors.New("webos: protocol error")

	// ErrInvalidResponse is returned when a response payload does not have
	// the shape a command expects.
	ErrInvalidResponse = errors.New("webos: invalid response")

	// ErrInvalidConfig is returned by NewSession for unusable settings.
	ErrInvalidConfig = errors.New("webos: invalid configuration")

	// ErrAddressLocked is returned by SetAddress once a session has left
	// the disconnected state.
	ErrAddressLocked = errors.New("webos: address can only change while disconnected")

	// ErrUnknownDevice is returned for device IDs the bridge has no session for.
	ErrUnknownDevice = errors.New("webos: unknown device")

	// ErrInvalidCommand is returned for malformed or unsupported bridge commands.
	ErrInvalidCommand = errors.New("webos: invalid command")
)

// DeviceError is the television's answer to a request it refused,
// e.g. "404 no such service or method".
type DeviceError struct {
	URI     string
	Message string
}

func (e *DeviceError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("webos: device error: %s", e.Message)
	}
	return fmt.Sprintf("webos: device error for %s: %s", e.URI, e.Message)
}

// Unwrap lets errors.Is(err, ErrDeviceError) match.
func (e *DeviceError) Unwrap() error {
	return ErrDeviceError
}
