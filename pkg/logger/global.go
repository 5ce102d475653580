package logger

import (
	"sync"

	"coursegrab/pkg/config"
)

var (
	defaultLogger Logger
	mu            sync.RWMutex
)

// Initialize sets up the package-level logger. Call once at startup.
func Initialize(cfg *config.LoggingConfig) error {
	log, err := New(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	defaultLogger = log
	mu.Unlock()
	return nil
}

// GetLogger returns the package-level logger, initializing a default
// one if Initialize was never called
func GetLogger() Logger {
	mu.RLock()
	log := defaultLogger
	mu.RUnlock()
	if log != nil {
		return log
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return defaultLogger
}

// WithField is a convenience wrapper on the package-level logger
func WithField(key string, value interface{}) Logger {
	return GetLogger().WithField(key, value)
}

// WithError is a convenience wrapper on the package-level logger
func WithError(err error) Logger {
	return GetLogger().WithError(err)
}
