// Package config loads the server configuration: a YAML file selected on
// the command line, overridable field by field through BRISCOLA_* environment
// variables. Every key has a default, so the server also runs with no file
// at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pybriscola/briscola-server-go/internal/game"
)

// Driver names accepted by the bus and store sections.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverNATS     = "nats"
	DriverPostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Bus        BusConfig        `mapstructure:"bus"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Store      StoreConfig      `mapstructure:"store"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Game       GameConfig       `mapstructure:"game"`
}

// ServerConfig fixes the shape of the sessions this process hosts.
type ServerConfig struct {
	// Players is the number of seats per session (3 to 5).
	Players int `mapstructure:"players"`
	// Hands ends the game after this many hands; 0 plays to TargetScore.
	Hands int `mapstructure:"hands"`
	// TargetScore ends the game once any seat reaches it; 0 disables.
	TargetScore int `mapstructure:"target_score"`
}

// BusConfig selects the pub/sub transport.
type BusConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig is shared by the Redis bus and the Redis store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig connects the NATS bus driver.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// StoreConfig selects the snapshot store and its retention.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// SnapshotTTL expires idle and concluded sessions; every accepted
	// action re-arms it. Zero keeps snapshots forever.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
}

// HeartbeatConfig tunes worker liveness: a short refresh period against a
// longer expiry, so idle-but-alive sessions never read as dead.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SupervisorConfig tunes the liveness monitor and the per-session queues.
type SupervisorConfig struct {
	Poll      time.Duration `mapstructure:"poll"`
	QueueSize int           `mapstructure:"queue_size"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig tunes the auction bounds and the trick-play legality policy.
type GameConfig struct {
	MinBid       int    `mapstructure:"min_bid"`
	MaxBid       int    `mapstructure:"max_bid"`
	FollowPolicy string `mapstructure:"follow_policy"`
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file is not an error: defaults plus
// environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BRISCOLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.players", 5)
	v.SetDefault("server.hands", 1)
	v.SetDefault("server.target_score", 0)

	v.SetDefault("bus.driver", DriverRedis)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("store.driver", DriverRedis)
	v.SetDefault("store.snapshot_ttl", 30*time.Minute)
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("heartbeat.interval", 2*time.Second)
	v.SetDefault("heartbeat.ttl", 20*time.Second)

	v.SetDefault("supervisor.poll", 5*time.Second)
	v.SetDefault("supervisor.queue_size", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.min_bid", 61)
	v.SetDefault("game.max_bid", game.TotalPoints)
	v.SetDefault("game.follow_policy", game.PolicyAnyCard)
}

// Rules converts the configured game shape into the rule set cold sessions
// are created with.
func (c *Config) Rules() game.Rules {
	return game.Rules{
		Seats:        c.Server.Players,
		MinBid:       c.Game.MinBid,
		MaxBid:       c.Game.MaxBid,
		Hands:        c.Server.Hands,
		TargetScore:  c.Server.TargetScore,
		FollowPolicy: c.Game.FollowPolicy,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Bus.Driver {
	case DriverMemory, DriverRedis, DriverNATS:
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store driver %q requires store.postgres_dsn", DriverPostgres)
	}
	if c.Store.SnapshotTTL < 0 {
		return fmt.Errorf("snapshot TTL cannot be negative")
	}

	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.Heartbeat.TTL <= c.Heartbeat.Interval {
		return fmt.Errorf("heartbeat ttl %s must exceed the refresh interval %s",
			c.Heartbeat.TTL, c.Heartbeat.Interval)
	}
	if c.Supervisor.Poll <= 0 {
		return fmt.Errorf("supervisor poll must be positive")
	}
	if c.Supervisor.QueueSize <= 0 {
		return fmt.Errorf("supervisor queue size must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}

	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("game rules: %w", err)
	}
	return nil
}
