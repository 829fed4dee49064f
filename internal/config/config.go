// Package config loads tickstats settings from TICKSTATS_* environment
// variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/vjranagit/tickstats/pkg/collector"
	"github.com/vjranagit/tickstats/pkg/game"
	"github.com/vjranagit/tickstats/pkg/sink/influx"
	"github.com/vjranagit/tickstats/pkg/storage"
	"github.com/vjranagit/tickstats/pkg/writer"
)

// EnvPrefix prefixes every variable read by Load
const EnvPrefix = "TICKSTATS_"

// Sink types
const (
	SinkInflux = "influx"
	SinkLocal  = "local"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig   `envPrefix:"SERVER_"`
	Log     LogConfig      `envPrefix:"LOG_"`
	Writer  WriterConfig   `envPrefix:"WRITER_"`
	Sink    string         `env:"SINK" envDefault:"influx"`
	Influx  InfluxConfig   `envPrefix:"INFLUX_"`
	Storage StorageConfig  `envPrefix:"STORAGE_"`
	Track   TrackingConfig `envPrefix:"TRACK_"`
	Host    HostConfig     `envPrefix:"HOST_"`

	// Containers maps container names (or numeric ids) to the number of items
	// reported individually
	Containers map[string]int `env:"CONTAINERS" envDefault:"BANK:25,SEED_VAULT:25,INVENTORY:0,EQUIPMENT:0" envKeyValSeparator:":"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":9420"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `env:"LEVEL" envDefault:"info"`
	Development bool   `env:"DEVELOPMENT" envDefault:"false"`
	// Verbosity enables logr V(n) output up to n, overriding Level
	Verbosity int `env:"VERBOSITY" envDefault:"0"`
}

// WriterConfig holds buffering and flush configuration
type WriterConfig struct {
	FlushInterval        time.Duration `env:"FLUSH_INTERVAL" envDefault:"15s"`
	BufferSize           int           `env:"BUFFER_SIZE" envDefault:"50000"`
	MaxRetries           uint          `env:"MAX_RETRIES" envDefault:"3"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"5s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	BlockWindow          time.Duration `env:"BLOCK_WINDOW" envDefault:"0s"`
	FilterCapacity       int           `env:"FILTER_CAPACITY" envDefault:"4096"`
	DisabledSeries       []string      `env:"DISABLED_SERIES"`
}

// InfluxConfig holds InfluxDB sink configuration
type InfluxConfig struct {
	URL             string        `env:"URL" envDefault:"http://localhost:8086"`
	Version         int           `env:"VERSION" envDefault:"1"`
	Database        string        `env:"DATABASE" envDefault:"tickstats"`
	RetentionPolicy string        `env:"RETENTION_POLICY"`
	Username        string        `env:"USERNAME"`
	Password        string        `env:"PASSWORD"`
	Org             string        `env:"ORG"`
	Bucket          string        `env:"BUCKET"`
	Token           string        `env:"TOKEN"`
	Gzip            bool          `env:"GZIP" envDefault:"true"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// StorageConfig holds local storage configuration
type StorageConfig struct {
	Path             string        `env:"PATH" envDefault:"./data"`
	RetentionDays    int           `env:"RETENTION_DAYS" envDefault:"30"`
	CompressionLevel int           `env:"COMPRESSION_LEVEL" envDefault:"3"`
	InMemory         bool          `env:"IN_MEMORY" envDefault:"false"`
	SyncWrites       bool          `env:"SYNC_WRITES" envDefault:"false"`
	GCInterval       time.Duration `env:"GC_INTERVAL" envDefault:"10m"`
}

// TrackingConfig toggles measurement categories
type TrackingConfig struct {
	XP        bool `env:"XP" envDefault:"true"`
	BankValue bool `env:"BANK_VALUE" envDefault:"true"`
	SelfLoc   bool `env:"SELF_LOC" envDefault:"true"`
	SelfMeta  bool `env:"SELF_META" envDefault:"true"`
}

// HostConfig configures the in-memory host snapshot
type HostConfig struct {
	// ItemsPath is a JSON item database; empty starts with no items
	ItemsPath string `env:"ITEMS_PATH"`
	Username  string `env:"USERNAME"`
}

// Load reads the configuration from the process environment and validates it
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environ, or from the process
// environment when environ is nil, and validates it
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg, err := parse(environ)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the defaults without reading the environment
func DefaultConfig() *Config {
	cfg, err := parse(map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.Writer.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.Writer.BufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1")
	}
	if c.Writer.BlockWindow < 0 {
		return fmt.Errorf("block window must not be negative")
	}

	switch c.Sink {
	case SinkInflux:
		if err := c.InfluxConfig().Validate(); err != nil {
			return err
		}
	case SinkLocal:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return fmt.Errorf("storage path is required")
		}
		if c.Storage.RetentionDays < 0 {
			return fmt.Errorf("retention days must not be negative")
		}
		if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
			return fmt.Errorf("compression level must be between 1 and 4")
		}
		if c.Storage.GCInterval <= 0 {
			return fmt.Errorf("storage gc interval must be positive")
		}
	default:
		return fmt.Errorf("unknown sink %q, expected %q or %q", c.Sink, SinkInflux, SinkLocal)
	}

	if _, err := c.ContainerTopN(); err != nil {
		return err
	}

	return nil
}

// LogLevel resolves the zap level; Verbosity takes precedence over Level
func (c *Config) LogLevel() (zapcore.Level, error) {
	if c.Log.Verbosity > 0 {
		return zapcore.Level(-c.Log.Verbosity), nil
	}
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

// WriterConfig converts to writer.Config
func (c *Config) WriterConfig() writer.Config {
	return writer.Config{
		FlushInterval:        c.Writer.FlushInterval,
		BufferSize:           c.Writer.BufferSize,
		MaxRetries:           c.Writer.MaxRetries,
		RetryInitialInterval: c.Writer.RetryInitialInterval,
		RetryMaxInterval:     c.Writer.RetryMaxInterval,
		WriteTimeout:         c.Writer.WriteTimeout,
		ShutdownTimeout:      c.Writer.ShutdownTimeout,
		BlockWindow:          c.Writer.BlockWindow,
		FilterCapacity:       c.Writer.FilterCapacity,
		DisabledSeries:       c.Writer.DisabledSeries,
	}
}

// InfluxConfig converts to influx.Config
func (c *Config) InfluxConfig() influx.Config {
	return influx.Config{
		URL:             c.Influx.URL,
		Version:         c.Influx.Version,
		Database:        c.Influx.Database,
		RetentionPolicy: c.Influx.RetentionPolicy,
		Username:        c.Influx.Username,
		Password:        c.Influx.Password,
		Org:             c.Influx.Org,
		Bucket:          c.Influx.Bucket,
		Token:           c.Influx.Token,
		Gzip:            c.Influx.Gzip,
		Timeout:         c.Influx.Timeout,
	}
}

// StorageConfig converts to storage.Config
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Path:             c.Storage.Path,
		Retention:        time.Duration(c.Storage.RetentionDays) * 24 * time.Hour,
		CompressionLevel: c.Storage.CompressionLevel,
		InMemory:         c.Storage.InMemory,
		SyncWrites:       c.Storage.SyncWrites,
	}
}

// Tracking converts to collector.Tracking
func (c *Config) Tracking() collector.Tracking {
	return collector.Tracking{
		XP:        c.Track.XP,
		BankValue: c.Track.BankValue,
		SelfLoc:   c.Track.SelfLoc,
		SelfMeta:  c.Track.SelfMeta,
	}
}

// ContainerTopN resolves the container table. Keys are container names such
// as BANK, or numeric container ids.
func (c *Config) ContainerTopN() (collector.ContainerTable, error) {
	table := make(collector.ContainerTable, len(c.Containers))
	for key, topN := range c.Containers {
		name := strings.ToUpper(strings.TrimSpace(key))
		id, ok := game.ParseInventory(name)
		if !ok {
			n, err := strconv.Atoi(name)
			if err != nil {
				return nil, fmt.Errorf("unknown container %q", key)
			}
			id = game.InventoryID(n)
		}
		if topN < 0 {
			return nil, fmt.Errorf("container %s: top-n must not be negative", key)
		}
		table[id] = topN
	}
	return table, nil
}
