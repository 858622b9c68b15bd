/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package logging

import (
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	originalLevel := os.Getenv("LOG_LEVEL")
	originalFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		_ = os.Setenv("LOG_LEVEL", originalLevel)
		_ = os.Setenv("LOG_FORMAT", originalFormat)
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "Default values"},
		{name: "Info level console format", logLevel: "info", logFormat: "console"},
		{name: "Debug level JSON format", logLevel: "debug", logFormat: "json"},
		{name: "Invalid format defaults to console", logLevel: "info", logFormat: "invalid"},
		{name: "Invalid level defaults to info", logLevel: "invalid", logFormat: "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				_ = os.Setenv("LOG_LEVEL", tt.logLevel)
			} else {
				_ = os.Unsetenv("LOG_LEVEL")
			}
			if tt.logFormat != "" {
				_ = os.Setenv("LOG_FORMAT", tt.logFormat)
			} else {
				_ = os.Unsetenv("LOG_FORMAT")
			}

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if Logger == nil {
				t.Error("Logger should not be nil after initialization")
			}
			if Sugar == nil {
				t.Error("Sugar should not be nil after initialization")
			}
			Close()
		})
	}
}

func TestInitializeWithConfig(t *testing.T) {
	tests := []struct {
		name   string
		config LogConfig
	}{
		{name: "console info", config: LogConfig{Level: "info", Format: "console"}},
		{name: "json debug", config: LogConfig{Level: "debug", Format: "json"}},
		{name: "invalid format falls back", config: LogConfig{Level: "info", Format: "invalid"}},
		{name: "invalid level falls back", config: LogConfig{Level: "invalid", Format: "console"}},
		{name: "case insensitive", config: LogConfig{Level: "INFO", Format: "JSON"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitializeWithConfig(tt.config); err != nil {
				t.Fatalf("InitializeWithConfig() unexpected error: %v", err)
			}
			if Logger == nil || Sugar == nil {
				t.Error("Logger/Sugar should not be nil after initialization")
			}
			Close()
		})
	}
}

func TestLoggingFunctions(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	Logger = zap.New(core)
	Sugar = Logger.Sugar()
	defer func() {
		Close()
		Logger = nil
		Sugar = nil
	}()

	t.Run("LogFrameAdvance", func(t *testing.T) {
		LogFrameAdvance("sess-1", 42, 123.5, 12.0)
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Message != "frame advance" {
			t.Errorf("unexpected message: %q", entry.Message)
		}
		fields := fieldMap(entry)
		if fields["session_id"] != "sess-1" {
			t.Errorf("expected session_id sess-1, got %v", fields["session_id"])
		}
		if fields["frames_decoded"] != int64(42) {
			t.Errorf("expected frames_decoded 42, got %v", fields["frames_decoded"])
		}
	})

	t.Run("LogPruneEvent", func(t *testing.T) {
		LogPruneEvent("sess-1", "interval", 100, 80)
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Message != "prune pass" {
			t.Errorf("unexpected message: %q", entry.Message)
		}
		fields := fieldMap(entry)
		if fields["kind"] != "interval" {
			t.Errorf("expected kind interval, got %v", fields["kind"])
		}
		if fields["tokens_before"] != int64(100) || fields["tokens_after"] != int64(80) {
			t.Errorf("unexpected token counts: %v", fields)
		}
	})

	t.Run("LogLatticeEmit", func(t *testing.T) {
		LogLatticeEmit("sess-1", "raw", 10, 15)
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Message != "lattice emitted" {
			t.Errorf("unexpected message: %q", entry.Message)
		}
	})

	t.Run("LogSearchCollapse", func(t *testing.T) {
		LogSearchCollapse("sess-1", 7)
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Level != zapcore.WarnLevel {
			t.Errorf("expected warn level, got %v", entry.Level)
		}
	})

	t.Run("LogError", func(t *testing.T) {
		LogError(errors.New("boom"), "something failed")
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Level != zapcore.ErrorLevel {
			t.Errorf("expected error level, got %v", entry.Level)
		}
	})

	t.Run("LogWarn", func(t *testing.T) {
		LogWarn("careful now")
		entry := recorded.All()[len(recorded.All())-1]
		if entry.Level != zapcore.WarnLevel {
			t.Errorf("expected warn level, got %v", entry.Level)
		}
	})
}

func TestLoggingFunctions_NilLogger(t *testing.T) {
	originalLogger := Logger
	originalSugar := Sugar
	defer func() {
		Logger = originalLogger
		Sugar = originalSugar
	}()

	Logger = nil
	Sugar = nil

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("function panicked with nil logger: %v", r)
		}
	}()

	LogFrameAdvance("sess", 1, 0, 0)
	LogPruneEvent("sess", "final", 1, 0)
	LogLatticeEmit("sess", "pruned", 0, 0)
	LogSearchCollapse("sess", 0)
	LogError(errors.New("test"), "message")
	LogWarn("warning")
	Sync()
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{name: "set", key: "TEST_ENV_VAR", defaultValue: "default", envValue: "env_value", expected: "env_value"},
		{name: "unset", key: "TEST_ENV_VAR_NOT_SET", defaultValue: "default", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				_ = os.Setenv(tt.key, tt.envValue)
				defer func() { _ = os.Unsetenv(tt.key) }()
			} else {
				_ = os.Unsetenv(tt.key)
			}
			if got := getEnvOrDefault(tt.key, tt.defaultValue); got != tt.expected {
				t.Errorf("getEnvOrDefault(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func fieldMap(entry observer.LoggedEntry) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, field := range entry.Context {
		switch field.Type {
		case zapcore.StringType:
			fields[field.Key] = field.String
		case zapcore.Int64Type:
			fields[field.Key] = field.Integer
		case zapcore.Float64Type:
			fields[field.Key] = field.Interface
		}
	}
	return fields
}
