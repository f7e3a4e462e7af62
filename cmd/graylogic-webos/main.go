// Gray Logic webOS Bridge
//
// This is the main entry point for the Gray Logic webOS television bridge.
// It connects LG webOS televisions to the Gray Logic MQTT bus:
//   - Commands arrive on graylogic/command/webos/{device}
//   - Acknowledgements, state and health are published back to the bus
//   - Televisions are found on the LAN by SSDP and paired keys are kept in SQLite
//   - A small REST/WebSocket API exposes sessions and discoveries to UIs
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-webos/migrations"

	"github.com/nerrad567/gray-logic-webos/internal/api"
	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-webos/internal/pairing"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errBridgeDisabled is returned when the configuration turns the only
// component of this process off.
var errBridgeDisabled = errors.New("webos bridge is disabled in configuration")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic webOS bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if !cfg.WebOS.Enabled {
		return errBridgeDisabled
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	keyStore := pairing.NewSQLiteStore(db.DB)
	if records, listErr := keyStore.List(ctx); listErr == nil {
		log.Info("pairing key store ready", "paired_televisions", len(records))
	} else {
		log.Warn("could not list pairing keys", "error", listErr)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var listener *ssdp.Listener
	if cfg.WebOS.Discovery.Enabled {
		listener = ssdp.NewListener(ssdp.ConfigFromConfig(cfg.WebOS.Discovery))
		listener.SetLogger(log)
	} else {
		log.Info("SSDP discovery disabled")
	}

	bridge, err := newBridge(cfg, mqttClient, keyStore, influxClient, listener, log)
	if err != nil {
		return fmt.Errorf("creating webos bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return fmt.Errorf("starting webos bridge: %w", err)
	}
	defer func() {
		log.Info("stopping webos bridge")
		bridge.Stop()
	}()
	log.Info("webos bridge started", "devices", len(cfg.WebOS.Devices))

	// Discovery starts after the bridge so no announcement is missed.
	if listener != nil {
		if err := listener.Start(ctx); err != nil {
			return fmt.Errorf("starting SSDP discovery: %w", err)
		}
		defer func() {
			log.Info("stopping SSDP discovery")
			listener.Stop()
		}()
		log.Info("SSDP discovery started",
			"search_target", cfg.WebOS.Discovery.SearchTarget,
			"interval", cfg.WebOS.Discovery.Interval,
		)
	}

	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Bridge:  bridge,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, discovery, bridge,
	// InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newBridge assembles the webOS bridge from the running infrastructure.
// Optional collaborators are only set when present so the bridge never holds
// a typed nil.
func newBridge(cfg *config.Config, mqttClient *mqtt.Client, keys *pairing.SQLiteStore, influxClient *influxdb.Client, listener *ssdp.Listener, log *logging.Logger) (*webos.Bridge, error) {
	opts := webos.BridgeOptions{
		Config:     cfg.WebOS,
		BridgeID:   "webos-" + cfg.Site.ID,
		Version:    version,
		MQTTClient: mqttClient,
		KeyStore:   keys,
		Logger:     log,
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}
	if listener != nil {
		opts.Finder = listener
	}
	return webos.NewBridge(opts)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
