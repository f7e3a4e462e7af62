package webos

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
)

// Session defaults.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultPairingTimeout    = 60 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
	DefaultIdleTimeout       = 5 * time.Second
	DefaultReconnectInterval = 5 * time.Second
)

// ReconnectPolicy controls what a Session does after a connection attempt
// fails or an established socket drops. Disabled means fail fast: queued
// requests are rejected and nothing is retried until the next request.
type ReconnectPolicy struct {
	Enabled  bool
	Interval time.Duration
}

// SessionConfig holds the settings of one television session.
type SessionConfig struct {
	// DeviceID names the television in logs. Optional.
	DeviceID string

	Address string
	Port    int
	Secure  bool

	// ClientKey is the pairing key from an earlier registration. Empty
	// triggers the on-screen pairing prompt.
	ClientKey string

	// Manifest is sent with the handshake. Zero value uses DefaultManifest.
	Manifest Manifest

	// ConnectTimeout bounds dial plus handshake.
	ConnectTimeout time.Duration

	// PairingTimeout replaces ConnectTimeout once the pairing prompt is shown.
	PairingTimeout time.Duration

	// RequestTimeout is the default per-request deadline. It covers time
	// spent queued while the session connects.
	RequestTimeout time.Duration

	// IdleTimeout closes the socket after this long without traffic.
	// Zero keeps the connection open.
	IdleTimeout time.Duration

	Reconnect ReconnectPolicy
}

// withDefaults fills unset durations. IdleTimeout is left alone because zero
// is meaningful.
func (c SessionConfig) withDefaults() SessionConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
		if c.Secure {
			c.Port = DefaultSecurePort
		}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PairingTimeout <= 0 {
		c.PairingTimeout = DefaultPairingTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Reconnect.Enabled && c.Reconnect.Interval <= 0 {
		c.Reconnect.Interval = DefaultReconnectInterval
	}
	if len(c.Manifest.Manifest) == 0 {
		c.Manifest = DefaultManifest()
	}
	return c
}

func (c SessionConfig) validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SessionConfigFromConfig combines a configured television with the shared
// session settings. storedKey, when non-empty, overrides the key in the
// YAML file because it is the most recent one the television issued.
func SessionConfigFromConfig(dev config.WebOSDeviceConfig, sess config.WebOSSessionConfig, storedKey string) SessionConfig {
	key := dev.ClientKey
	if storedKey != "" {
		key = storedKey
	}
	return SessionConfig{
		DeviceID:       dev.ID,
		Address:        dev.Address,
		Port:           dev.Port,
		Secure:         dev.Secure,
		ClientKey:      key,
		ConnectTimeout: sess.ConnectTimeout,
		PairingTimeout: sess.PairingTimeout,
		RequestTimeout: sess.RequestTimeout,
		IdleTimeout:    sess.IdleTimeout,
		Reconnect: ReconnectPolicy{
			Enabled:  sess.Reconnect.Enabled,
			Interval: sess.Reconnect.Interval,
		},
	}
}
