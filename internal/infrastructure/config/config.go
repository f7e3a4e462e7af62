package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic webOS bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	WebOS     WebOSConfig     `yaml:"webos"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database only holds pairing keys issued by televisions.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the event stream served to UIs.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WebOSConfig contains the webOS television bridge settings.
type WebOSConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	Devices   []WebOSDeviceConfig  `yaml:"devices"`
	Session   WebOSSessionConfig   `yaml:"session"`
	Discovery WebOSDiscoveryConfig `yaml:"discovery"`
}

// WebOSDeviceConfig describes one statically configured television.
type WebOSDeviceConfig struct {
	// ID is the stable identifier used in MQTT topics and API paths.
	// Using the UDN reported by discovery lets discovered and configured
	// entries line up.
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`

	// Port defaults to 3000 (3001 when Secure is set).
	Port   int  `yaml:"port"`
	Secure bool `yaml:"secure"`

	// ClientKey seeds the pairing key when the key store has none.
	ClientKey string `yaml:"client_key"`
}

// WebOSSessionConfig contains per-session timing and reconnect settings.
type WebOSSessionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// PairingTimeout replaces ConnectTimeout once the television reports that
	// the pairing prompt is on screen.
	PairingTimeout time.Duration `yaml:"pairing_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// IdleTimeout closes the socket after a quiet period. Zero disables it.
	IdleTimeout time.Duration        `yaml:"idle_timeout"`
	Reconnect   WebOSReconnectConfig `yaml:"reconnect"`
}

// WebOSReconnectConfig controls automatic reconnection after unexpected closes.
type WebOSReconnectConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// WebOSDiscoveryConfig contains SSDP discovery settings.
type WebOSDiscoveryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	SearchTarget  string        `yaml:"search_target"`
	ServiceMarker string        `yaml:"service_marker"`
	MX            int           `yaml:"mx"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`

	// StrictDescription parses device descriptions as well-formed XML
	// instead of scraping tags.
	StrictDescription bool `yaml:"strict_description"`

	// AutoAdopt creates a session for every discovered television that is
	// not listed under devices.
	AutoAdopt bool `yaml:"auto_adopt"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDeviceDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading a file.
// Command-line tools use it when no config file is supplied.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-webos.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-webos",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		WebOS: WebOSConfig{
			Enabled: true,
			Session: WebOSSessionConfig{
				ConnectTimeout: 10 * time.Second,
				PairingTimeout: 60 * time.Second,
				RequestTimeout: 10 * time.Second,
				IdleTimeout:    5 * time.Second,
				Reconnect: WebOSReconnectConfig{
					Enabled:  false,
					Interval: 5 * time.Second,
				},
			},
			Discovery: WebOSDiscoveryConfig{
				Enabled:       true,
				Interval:      30 * time.Second,
				SearchTarget:  "urn:lge-com:service:webos-second-screen:1",
				ServiceMarker: "webos",
				MX:            5,
				FetchTimeout:  5 * time.Second,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyDeviceDefaults fills in per-device ports.
func (c *Config) applyDeviceDefaults() {
	for i := range c.WebOS.Devices {
		d := &c.WebOS.Devices[i]
		if d.Port != 0 {
			continue
		}
		if d.Secure {
			d.Port = 3001
		} else {
			d.Port = 3000
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.WebOS.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (w *WebOSConfig) validate() []string {
	var errs []string

	seen := make(map[string]bool, len(w.Devices))
	for i, d := range w.Devices {
		switch {
		case d.ID == "":
			errs = append(errs, fmt.Sprintf("webos.devices[%d].id is required", i))
		case seen[d.ID]:
			errs = append(errs, fmt.Sprintf("webos.devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true

		if d.Address == "" {
			errs = append(errs, fmt.Sprintf("webos.devices[%d].address is required", i))
		}
		if d.Port < 0 || d.Port > 65535 {
			errs = append(errs, fmt.Sprintf("webos.devices[%d].port must be between 1 and 65535", i))
		}
	}

	s := w.Session
	if s.ConnectTimeout <= 0 {
		errs = append(errs, "webos.session.connect_timeout must be positive")
	}
	if s.RequestTimeout <= 0 {
		errs = append(errs, "webos.session.request_timeout must be positive")
	}
	if s.IdleTimeout < 0 {
		errs = append(errs, "webos.session.idle_timeout must not be negative")
	}
	if s.Reconnect.Enabled && s.Reconnect.Interval <= 0 {
		errs = append(errs, "webos.session.reconnect.interval must be positive when reconnect is enabled")
	}

	if w.Discovery.Enabled {
		if w.Discovery.Interval <= 0 {
			errs = append(errs, "webos.discovery.interval must be positive")
		}
		if w.Discovery.SearchTarget == "" {
			errs = append(errs, "webos.discovery.search_target is required")
		}
		if w.Discovery.MX < 1 || w.Discovery.MX > 5 {
			errs = append(errs, "webos.discovery.mx must be between 1 and 5")
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
