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
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// Logger is the global structured logger instance.
	Logger *zap.Logger
	// Sugar is the sugared variant of Logger.
	Sugar *zap.SugaredLogger
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// Initialize sets up the global logger based on environment variables.
func Initialize() error {
	config := LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
	return InitializeWithConfig(config)
}

// InitializeWithConfig sets up the global logger with the provided
// configuration.
func InitializeWithConfig(config LogConfig) error {
	var zapConfig zap.Config

	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Logger = logger
	Sugar = logger.Sugar()

	Sugar.Infow("structured logging initialized",
		"level", config.Level, "format", config.Format)

	return nil
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		if err := Logger.Sync(); err != nil {
			// Logger.Sync() can fail on some systems, especially in tests.
			_ = err
		}
	}
}

// Close cleans up the logger.
func Close() {
	Sync()
}

// LogFrameAdvance logs the result of advancing the decoder through a
// batch of frames.
func LogFrameAdvance(sessionID string, framesDecoded int, cutoff, adaptiveBeam float64) {
	if Logger == nil {
		return
	}
	Logger.Debug("frame advance",
		zap.String("component", "decoder"),
		zap.String("session_id", sessionID),
		zap.Int("frames_decoded", framesDecoded),
		zap.Float64("cutoff", cutoff),
		zap.Float64("adaptive_beam", adaptiveBeam),
	)
}

// LogPruneEvent logs the outcome of a pruning pass.
func LogPruneEvent(sessionID string, kind string, tokensBefore, tokensAfter int) {
	if Logger == nil {
		return
	}
	Logger.Info("prune pass",
		zap.String("component", "pruner"),
		zap.String("session_id", sessionID),
		zap.String("kind", kind),
		zap.Int("tokens_before", tokensBefore),
		zap.Int("tokens_after", tokensAfter),
	)
}

// LogLatticeEmit logs statistics about an emitted lattice.
func LogLatticeEmit(sessionID string, kind string, numStates, numArcs int) {
	if Logger == nil {
		return
	}
	Logger.Info("lattice emitted",
		zap.String("component", "lattice"),
		zap.String("session_id", sessionID),
		zap.String("kind", kind),
		zap.Int("num_states", numStates),
		zap.Int("num_arcs", numArcs),
	)
}

// LogSearchCollapse logs a search-collapsed condition (spec section 7,
// warned once per utterance).
func LogSearchCollapse(sessionID string, frame int) {
	if Logger == nil {
		return
	}
	Logger.Warn("search collapsed: no surviving tokens",
		zap.String("component", "decoder"),
		zap.String("session_id", sessionID),
		zap.Int("frame", frame),
	)
}

// LogError logs errors with context.
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	baseFields := []zap.Field{zap.Error(err)}
	Logger.Error(message, append(baseFields, fields...)...)
}

// LogWarn logs warnings with context.
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Warn(message, fields...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
