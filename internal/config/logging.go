package config

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. The returned function flushes it.
func (c *Config) NewLogger() (logr.Logger, func(), error) {
	level, err := c.LogLevel()
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	zapConfig := zap.NewProductionConfig()
	if c.Log.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLog, err := zapConfig.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("failed to create logger: %w", err)
	}

	return zapr.NewLogger(zapLog), func() { _ = zapLog.Sync() }, nil
}
