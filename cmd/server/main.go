package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pybriscola/briscola-server-go/internal/bus"
	"github.com/pybriscola/briscola-server-go/internal/config"
	"github.com/pybriscola/briscola-server-go/internal/store"
	"github.com/pybriscola/briscola-server-go/internal/supervisor"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// The instance id separates this process's log stream from other
	// supervisors sharing the same bus.
	logger = logger.With(zap.String("instance_id", uuid.NewString()))

	logger.Info("starting briscola server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize snapshot store
	st, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize snapshot store", zap.Error(err))
	}
	defer st.Close()
	logger.Info("snapshot store initialized",
		zap.String("driver", cfg.Store.Driver),
		zap.Duration("snapshot_ttl", cfg.Store.SnapshotTTL),
	)

	// Connect message bus
	b, err := newBus(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect message bus", zap.Error(err))
	}
	defer b.Close()
	logger.Info("message bus connected", zap.String("driver", cfg.Bus.Driver))

	// Initialize supervisor
	sup, err := supervisor.New(supervisor.Config{
		Bus:               b,
		Store:             st,
		Rules:             cfg.Rules(),
		QueueSize:         cfg.Supervisor.QueueSize,
		HeartbeatInterval: cfg.Heartbeat.Interval,
		PollInterval:      cfg.Supervisor.Poll,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize supervisor", zap.Error(err))
	}
	logger.Info("supervisor initialized",
		zap.Int("players", cfg.Server.Players),
		zap.Int("hands", cfg.Server.Hands),
		zap.Duration("poll", cfg.Supervisor.Poll),
		zap.Duration("heartbeat_interval", cfg.Heartbeat.Interval),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		// Graceful shutdown: cancel the run context and wait for the
		// supervisor to stop its workers.
		cancel()
		if err := <-done; err != nil {
			logger.Error("supervisor exited with error", zap.Error(err))
		}
	case err := <-done:
		if err != nil {
			logger.Error("supervisor failed", zap.Error(err))
		}
	}

	logger.Info("briscola server stopped")
}

// newStore builds the snapshot store selected by the configuration.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemory(cfg.Store.SnapshotTTL, cfg.Heartbeat.TTL), nil
	case config.DriverRedis:
		return store.NewRedis(ctx, store.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			SnapshotTTL:  cfg.Store.SnapshotTTL,
			HeartbeatTTL: cfg.Heartbeat.TTL,
		})
	case config.DriverPostgres:
		return store.NewPostgres(ctx, store.PostgresConfig{
			URL:          cfg.Store.PostgresDSN,
			SnapshotTTL:  cfg.Store.SnapshotTTL,
			HeartbeatTTL: cfg.Heartbeat.TTL,
		})
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newBus connects the pub/sub transport selected by the configuration.
func newBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case config.DriverMemory:
		return bus.NewMemory(), nil
	case config.DriverRedis:
		return bus.NewRedis(ctx, bus.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case config.DriverNATS:
		return bus.NewNATS(bus.NATSConfig{URL: cfg.NATS.URL})
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
