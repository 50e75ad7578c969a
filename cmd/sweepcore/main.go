// Sweep Core - Laboratory Parameter Sweep Engine
//
// This is the main entry point for the Sweep Core application.
// Sweep Core turns a possibly nested sweep declaration into a normalised
// schedule of instrument set-points, drives the instrument through it
// step by step, and records a captured frame at every point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/quench-lab/sweep-core/migrations"

	"github.com/quench-lab/sweep-core/internal/api"
	"github.com/quench-lab/sweep-core/internal/audit"
	"github.com/quench-lab/sweep-core/internal/infrastructure/config"
	"github.com/quench-lab/sweep-core/internal/infrastructure/database"
	"github.com/quench-lab/sweep-core/internal/infrastructure/influxdb"
	"github.com/quench-lab/sweep-core/internal/infrastructure/logging"
	"github.com/quench-lab/sweep-core/internal/infrastructure/mqtt"
	"github.com/quench-lab/sweep-core/internal/instrument"
	"github.com/quench-lab/sweep-core/internal/process"
	"github.com/quench-lab/sweep-core/internal/run"
	"github.com/quench-lab/sweep-core/internal/sweep"
	"github.com/quench-lab/sweep-core/internal/variable"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runApp(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runApp is the actual application logic, separated from main for testability.
// Named runApp because the run package is imported in this file.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func runApp(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sweep Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Build the variable registry from the instrument declaration
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("building variable registry: %w", err)
	}
	registry.SetLogger(log)
	log.Info("variable registry initialised", "variables", registry.Count())

	// Normalizer with operator-level sweep defaults
	normalizer := sweep.NewNormalizer(registry)
	normalizer.SetDefaults(sweep.Defaults{
		Start: cfg.Sweep.DefaultStart,
		End:   cfg.Sweep.DefaultEnd,
		Step:  cfg.Sweep.DefaultStep,
	})

	// Connect to MQTT broker
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

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Supervise the instrument bridge process (if declared)
	if cmd := cfg.Instrument.Bridge.Command; cmd != "" && !cfg.Instrument.Simulated {
		bridgeProc, procErr := startBridgeProcess(ctx, cfg, log)
		if procErr != nil {
			return fmt.Errorf("starting bridge process: %w", procErr)
		}
		defer func() {
			log.Info("stopping bridge process")
			if stopErr := bridgeProc.Stop(); stopErr != nil {
				log.Error("error stopping bridge process", "error", stopErr)
			}
		}()
	}

	// Instrument: MQTT bridge or local simulator
	controller, camera, err := buildInstrument(cfg, mqttClient, log)
	if err != nil {
		return fmt.Errorf("building instrument: %w", err)
	}
	defer func() {
		if closeErr := controller.Close(); closeErr != nil {
			log.Error("error closing instrument", "error", closeErr)
		}
	}()

	// Run persistence; mark runs interrupted by an unclean shutdown
	runRepo := run.NewSQLiteRepository(db.DB)
	if failed, failErr := runRepo.FailInterrupted(ctx, "interrupted by shutdown"); failErr != nil {
		return fmt.Errorf("recovering interrupted runs: %w", failErr)
	} else if failed > 0 {
		log.Warn("marked interrupted runs as failed", "count", failed)
	}

	// Run engine
	engine := run.NewEngine(runRepo, controller, camera, run.EngineConfig{
		SettleDelay: cfg.GetSettleDelay(),
		NameFormat:  cfg.Run.NameFormat,
	})
	engine.SetLogger(log)
	engine.SetPublisher(mqttClient)
	if influxClient != nil {
		engine.SetTelemetry(influxClient)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			log.Error("error closing run engine", "error", closeErr)
		}
	}()

	// WebSocket hub is shared between the API server and the run engine
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	engine.SetBroadcaster(hub)

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		Normalizer:  normalizer,
		Engine:      engine,
		RunRepo:     runRepo,
		AuditRepo:   audit.NewSQLiteRepository(db.DB),
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, engine (stops any active run), instrument, bridge
	// process, InfluxDB, MQTT, database.

	log.Info("Sweep Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SWEEPCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SWEEPCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildRegistry constructs the variable registry from the configured
// instrument declaration, preserving declaration order.
func buildRegistry(cfg *config.Config) (*variable.Registry, error) {
	registry := variable.NewRegistry()
	for _, vc := range cfg.Instrument.Variables {
		v := &variable.Variable{
			ID:           vc.ID,
			Name:         vc.Name,
			Min:          vc.Min,
			Max:          vc.Max,
			Unit:         vc.Unit,
			DefaultStart: vc.DefaultStart,
			DefaultEnd:   vc.DefaultEnd,
			DefaultStep:  vc.DefaultStep,
		}
		if vc.Calibration != nil {
			v.Calibration = &variable.Calibration{
				Factor: vc.Calibration.Factor,
				Name:   vc.Calibration.Name,
				Unit:   vc.Calibration.Unit,
			}
		}
		if err := registry.Add(v); err != nil {
			return nil, fmt.Errorf("registering variable %q: %w", vc.ID, err)
		}
	}
	return registry, nil
}

// buildInstrument returns the controller and camera for the configured
// instrument: a local simulator, or an MQTT bridge talking to real
// hardware.
func buildInstrument(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (instrument.Controller, instrument.Camera, error) {
	if cfg.Instrument.Simulated {
		log.Info("instrument simulation enabled", "output_dir", cfg.Run.OutputDir)
		sim := instrument.NewSimulator(cfg.Run.OutputDir)
		return sim, sim, nil
	}

	bridge, err := instrument.NewBridge(mqttClient, cfg.Instrument.ID, instrument.BridgeConfig{
		CommandTimeout: cfg.GetCommandTimeout(),
		CaptureTimeout: cfg.GetCaptureTimeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating instrument bridge: %w", err)
	}
	bridge.SetLogger(log)
	log.Info("instrument bridge connected", "instrument_id", cfg.Instrument.ID)
	return bridge, bridge, nil
}

// startBridgeProcess launches and supervises the declared instrument
// bridge process.
func startBridgeProcess(ctx context.Context, cfg *config.Config, log *logging.Logger) (*process.Manager, error) {
	bc := cfg.Instrument.Bridge

	procCfg := process.DefaultConfig(cfg.Instrument.ID+"-bridge", bc.Command, bc.Args)
	procCfg.RestartOnFailure = bc.RestartOnFailure
	if bc.RestartDelay > 0 {
		procCfg.RestartDelay = time.Duration(bc.RestartDelay) * time.Second
	}
	procCfg.MaxRestartAttempts = bc.MaxRestarts

	manager := process.NewManager(procCfg)
	manager.SetLogger(log)

	log.Info("starting bridge process", "command", bc.Command)
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("bridge process started", "pid", manager.PID())

	return manager, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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

	return nil
}
