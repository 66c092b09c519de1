// Package logger provides structured diagnostic logging for qacheck.
//
// Progress output for a run goes through the output package; this logger is
// for operator-facing diagnostics (launch failures, listener errors, server
// lifecycle). It is a no-op until Init is called, so packages can log freely
// from tests.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	global      = zap.NewNop()
	atomicLevel = zap.NewAtomicLevel()
)

// Init builds the global logger.
// level: debug, info, warn, error
// format: json or console
func Init(level, format string) error {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	global = l
	atomicLevel = lvl
	mu.Unlock()
	return nil
}

// Replace swaps the global logger, returning a func that restores the
// previous one. Intended for tests that assert on log output.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := global
	global = l
	mu.Unlock()
	return func() {
		mu.Lock()
		global = prev
		mu.Unlock()
	}
}

// SetLevel changes the log level of a logger built by Init.
func SetLevel(level string) error {
	mu.RLock()
	defer mu.RUnlock()
	return atomicLevel.UnmarshalText([]byte(level))
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}
