package config

import (
	"time"

	"go.uber.org/zap/zapcore"
)

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}

func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.ReadTimeout = timeout
	}
}

func WithDataFile(path string) Option {
	return func(c *Config) {
		c.Store.DataFile = path
	}
}

func WithSyncInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.Sync.Interval = interval
	}
}
