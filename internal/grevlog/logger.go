// Package grevlog centralizes the zap logger construction used across the
// grevling core. Library consumers that do not want any output get a
// no-op logger by default; everything downstream logs with structured
// fields rather than formatted strings, the same way the command layer
// this module was distilled from does.
package grevlog

import (
	"go.uber.org/zap"
)

// Nop returns a logger that discards everything, used as the zero-value
// default whenever a component is constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Development returns a human-readable, colorized-on-terminal logger
// suitable for local runs and tests.
func Development() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return Nop()
	}
	return logger
}

// Production returns a JSON-structured logger suitable for batch runs
// whose output is consumed by log aggregation.
func Production() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return Nop()
	}
	return logger
}

// OrNop returns logger if non-nil, else a no-op logger. Components take
// this defensively so a caller passing a nil *zap.Logger does not panic.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
