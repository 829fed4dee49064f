package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vjranagit/tickstats/pkg/collector"
	"github.com/vjranagit/tickstats/pkg/game"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":9420", cfg.Server.ListenAddr)
	assert.Equal(t, SinkInflux, cfg.Sink)
	assert.Equal(t, 15*time.Second, cfg.Writer.FlushInterval)
	assert.Equal(t, uint(3), cfg.Writer.MaxRetries)
	assert.True(t, cfg.Influx.Gzip)
	assert.Equal(t, collector.Tracking{XP: true, BankValue: true, SelfLoc: true, SelfMeta: true}, cfg.Tracking())

	table, err := cfg.ContainerTopN()
	require.NoError(t, err)
	assert.Equal(t, collector.DefaultContainers(), table)

	assert.Equal(t, 30*24*time.Hour, cfg.StorageConfig().Retention)
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TICKSTATS_SINK":                   "local",
		"TICKSTATS_STORAGE_PATH":           "/var/lib/tickstats",
		"TICKSTATS_STORAGE_RETENTION_DAYS": "7",
		"TICKSTATS_WRITER_FLUSH_INTERVAL":  "1m",
		"TICKSTATS_WRITER_DISABLED_SERIES": "rs_self,rs_self_loc",
		"TICKSTATS_TRACK_SELF_LOC":         "false",
		"TICKSTATS_CONTAINERS":             "bank:10,626:5,4242:0",
		"TICKSTATS_LOG_VERBOSITY":          "2",
	})
	require.NoError(t, err)

	assert.Equal(t, SinkLocal, cfg.Sink)
	assert.Equal(t, "/var/lib/tickstats", cfg.StorageConfig().Path)
	assert.Equal(t, 7*24*time.Hour, cfg.StorageConfig().Retention)

	wc := cfg.WriterConfig()
	assert.Equal(t, time.Minute, wc.FlushInterval)
	assert.Equal(t, []string{"rs_self", "rs_self_loc"}, wc.DisabledSeries)
	assert.Equal(t, 50_000, wc.BufferSize)

	assert.False(t, cfg.Tracking().SelfLoc)
	assert.True(t, cfg.Tracking().XP)

	table, err := cfg.ContainerTopN()
	require.NoError(t, err)
	assert.Equal(t, collector.ContainerTable{
		game.InventoryBank:      10,
		game.InventorySeedVault: 5,
		4242:                    0,
	}, table)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.Level(-2), lvl)
}

func TestLoadFromInfluxV2(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TICKSTATS_INFLUX_URL":     "https://influx.example.com",
		"TICKSTATS_INFLUX_VERSION": "2",
		"TICKSTATS_INFLUX_ORG":     "home",
		"TICKSTATS_INFLUX_BUCKET":  "osrs",
		"TICKSTATS_INFLUX_TOKEN":   "secret",
	})
	require.NoError(t, err)

	ic := cfg.InfluxConfig()
	assert.Equal(t, 2, ic.Version)
	assert.Equal(t, "osrs", ic.Bucket)
	assert.Equal(t, "secret", ic.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddr = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"zero flush interval", func(c *Config) { c.Writer.FlushInterval = 0 }},
		{"zero buffer", func(c *Config) { c.Writer.BufferSize = 0 }},
		{"negative block window", func(c *Config) { c.Writer.BlockWindow = -time.Second }},
		{"unknown sink", func(c *Config) { c.Sink = "kafka" }},
		{"influx v2 without bucket", func(c *Config) { c.Influx.Version = 2 }},
		{"local without path", func(c *Config) { c.Sink = SinkLocal; c.Storage.Path = "" }},
		{"local bad compression", func(c *Config) { c.Sink = SinkLocal; c.Storage.CompressionLevel = 9 }},
		{"unknown container", func(c *Config) { c.Containers = map[string]int{"POCKET": 1} }},
		{"negative top-n", func(c *Config) { c.Containers = map[string]int{"BANK": -1} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromRejectsMalformedValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"TICKSTATS_WRITER_BUFFER_SIZE": "lots"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Development = true

	logger, sync, err := cfg.NewLogger()
	require.NoError(t, err)
	defer sync()

	assert.True(t, logger.Enabled())
	assert.False(t, logger.V(1).Enabled())
}
