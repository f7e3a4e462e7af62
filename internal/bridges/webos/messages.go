package webos

import (
	"encoding/json"
	"errors"
	"time"
)

// MQTT message types exchanged between Gray Logic Core and the webOS bridge.

// CommandMessage is sent from Core to the bridge to control a television.
// Topic: graylogic/command/webos/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	// The bridge assigns one when Core leaves it empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the television identifier. The topic segment wins when
	// both are present.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "set_volume", "toast", "request").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"volume": 20} for set_volume
	//   {"message": "Doorbell"} for toast
	//   {"uri": "ssap://audio/volumeUp"} for request
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// Command names understood by the bridge.
const (
	CommandGetVolume   = "get_volume"
	CommandSetVolume   = "set_volume"
	CommandGetMute     = "get_mute"
	CommandSetMute     = "set_mute"
	CommandToast       = "toast"
	CommandGetChannels = "get_channels"
	CommandGetChannel  = "get_channel"
	CommandSetChannel  = "set_channel"
	CommandGetInputs   = "get_inputs"
	CommandSetInput    = "set_input"
	CommandListApps    = "list_apps"
	CommandLaunchApp   = "launch_app"
	CommandCloseApp    = "close_app"
	CommandTurnOff     = "turn_off"
	CommandSoftware    = "get_software_info"
	CommandRequest     = "request"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the television executed the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the television did not answer in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/webos/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	DeviceID string    `json:"device_id"`
	Command  string    `json:"command"`
	Status   AckStatus `json:"status"`

	// Protocol is the protocol identifier ("webos").
	Protocol string `json:"protocol"`

	// Result carries the command's answer, e.g. the channel list.
	Result any `json:"result,omitempty"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "DEVICE_ERROR").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeConnectionLost    = "CONNECTION_LOST"
	ErrCodePairingRejected   = "PAIRING_REJECTED"
	ErrCodeDeviceError       = "DEVICE_ERROR"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidResponse   = "INVALID_RESPONSE"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps an error from this package to its acknowledgment code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrDeviceError):
		return ErrCodeDeviceError
	case errors.Is(err, ErrHandshakeRejected):
		return ErrCodePairingRejected
	case errors.Is(err, ErrConnectionFailed):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, ErrConnectionLost):
		return ErrCodeConnectionLost
	case errors.Is(err, ErrCancelled):
		return ErrCodeCancelled
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidResponse):
		return ErrCodeInvalidResponse
	case errors.Is(err, ErrProtocol):
		return ErrCodeProtocolError
	case errors.Is(err, ErrUnknownDevice):
		return ErrCodeNotConfigured
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage is sent from the bridge to Core when television state changes.
// Topic: graylogic/state/webos/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the changed fields, e.g.
	//   {"connection": "connected"}
	//   {"volume": 12, "muted": false}
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("webos").
	Protocol string `json:"protocol"`

	// Address is the television's IP address.
	Address string `json:"address,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates at least one television session is failing.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from the bridge to Core to report operational status.
// Topic: graylogic/health/webos
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge    string       `json:"bridge"`
	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Sessions reports every television session by device ID.
	Sessions map[string]SessionStats `json:"sessions,omitempty"`

	// DevicesManaged is the number of sessions.
	DevicesManaged int `json:"devices_managed"`

	// DevicesDiscovered is the number of televisions seen by SSDP.
	DevicesDiscovered int `json:"devices_discovered"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// DiscoveryMessage is sent from the bridge to Core when SSDP finds a
// television.
// Topic: graylogic/discovery/webos
type DiscoveryMessage struct {
	Timestamp time.Time        `json:"timestamp"`
	Bridge    string           `json:"bridge"`
	Devices   []DiscoveredInfo `json:"devices"`
}

// DiscoveredInfo describes one discovered television.
type DiscoveredInfo struct {
	DeviceID     string `json:"device_id"`
	Address      string `json:"address"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ModelNumber  string `json:"model_number,omitempty"`

	// Managed is true when the bridge holds a session for the television.
	Managed bool `json:"managed"`
}

// NewAckMessage creates an acknowledgment for a successful command.
func NewAckMessage(cmd CommandMessage, result any) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Protocol:  protocolName,
		Result:    result,
	}
}

// NewAckError creates an acknowledgment with error details. Timeouts get
// status "timeout", everything else "failed".
func NewAckError(cmd CommandMessage, err error) AckMessage {
	code := ErrorCode(err)
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Command:   cmd.Command,
		Status:    status,
		Protocol:  protocolName,
		Error: &AckError{
			Code:    code,
			Message: err.Error(),
		},
	}
}

// NewStateMessage creates a state message for a television.
func NewStateMessage(deviceID, address string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  protocolName,
		Address:   address,
	}
}

// decodeCommand parses a command payload.
func decodeCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

const protocolName = "webos"
