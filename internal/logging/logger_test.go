// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewInfoLogger confirms the default logger builds and logs.
func TestNewInfoLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("INFO")
	if err != nil {
		t.Fatalf("New(INFO) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("info logger ready")
}

// TestNewDebugLevel ensures lowercase level names are honored.
func TestNewDebugLevel(t *testing.T) {
	t.Parallel()

	logger, err := New("debug")
	if err != nil {
		t.Fatalf("New(debug) error = %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
}

// TestNewWarningAlias maps the WARNING spelling onto zap's warn level.
func TestNewWarningAlias(t *testing.T) {
	t.Parallel()

	logger, err := New("WARNING")
	if err != nil {
		t.Fatalf("New(WARNING) error = %v", err)
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("expected warn level to be enabled")
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info level to be disabled")
	}
}

// TestNewEmptyLevelDefaultsToInfo keeps the zero value useful.
func TestNewEmptyLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info level to be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be disabled")
	}
}

// TestNewUnrecognizedLevel rejects nonsense level names.
func TestNewUnrecognizedLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("verbose"); err == nil {
		t.Fatal("expected an error for an unrecognized level")
	}
}
