package pairing

import "errors"

var (
	// ErrKeyNotFound is returned by Delete when no key is stored for a device.
	ErrKeyNotFound = errors.New("pairing key not found")

	// ErrInvalidKey is returned by Save for an empty device ID or key.
	ErrInvalidKey = errors.New("invalid pairing key")
)
