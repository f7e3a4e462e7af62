package ssdp

import "errors"

// Domain errors for the SSDP discovery package.
var (
	// ErrBindFailed is returned by Start when the UDP socket cannot be opened.
	ErrBindFailed = errors.New("ssdp: bind failed")

	// ErrFetchFailed marks a device description that could not be retrieved.
	// Such devices are logged and skipped; the listener keeps running.
	ErrFetchFailed = errors.New("ssdp: description fetch failed")

	// ErrInvalidDescription marks a description without a usable UDN.
	ErrInvalidDescription = errors.New("ssdp: invalid device description")

	// ErrUnknownDevice is returned by Device for IDs never discovered.
	ErrUnknownDevice = errors.New("ssdp: unknown device")
)
