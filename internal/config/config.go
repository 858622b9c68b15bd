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

// Package config loads and validates the decoder's tunable search
// parameters (beam widths, active-token bounds, pruning cadence) and
// the ambient service configuration around it.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
)

// DecoderConfig holds the search parameters recognized by the beam
// decoder (spec section 6.4).
type DecoderConfig struct {
	Beam            float64
	MaxActive       int
	MinActive       int
	LatticeBeam     float64
	PruneInterval   int
	BeamDelta       float64
	HashRatio       float64
	PruneScale      float64
	LogEveryNFrames int
	DBPath          string
	NATSURL         string
}

// Config aggregates the decoder configuration with the ambient
// service configuration (logging).
type Config struct {
	Decoder DecoderConfig
	Logging LoggingConfig
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
}

// Default returns the configuration with the defaults named in spec
// section 6.4.
func Default() DecoderConfig {
	return DecoderConfig{
		Beam:            16.0,
		MaxActive:       math.MaxInt32,
		MinActive:       200,
		LatticeBeam:     10.0,
		PruneInterval:   25,
		BeamDelta:       0.5,
		HashRatio:       2.0,
		PruneScale:      0.1,
		LogEveryNFrames: 50,
		DBPath:          "./data/loqa-decoder.db",
		NATSURL:         "nats://localhost:4222",
	}
}

// Load loads configuration from environment variables, falling back
// to the defaults in Default() for anything unset.
func Load() (*Config, error) {
	d := Default()

	cfg := &Config{
		Decoder: DecoderConfig{
			Beam:            getEnvFloat("DECODER_BEAM", d.Beam),
			MaxActive:       getEnvInt("DECODER_MAX_ACTIVE", d.MaxActive),
			MinActive:       getEnvInt("DECODER_MIN_ACTIVE", d.MinActive),
			LatticeBeam:     getEnvFloat("DECODER_LATTICE_BEAM", d.LatticeBeam),
			PruneInterval:   getEnvInt("DECODER_PRUNE_INTERVAL", d.PruneInterval),
			BeamDelta:       getEnvFloat("DECODER_BEAM_DELTA", d.BeamDelta),
			HashRatio:       getEnvFloat("DECODER_HASH_RATIO", d.HashRatio),
			PruneScale:      getEnvFloat("DECODER_PRUNE_SCALE", d.PruneScale),
			LogEveryNFrames: getEnvInt("DECODER_LOG_EVERY_N_FRAMES", d.LogEveryNFrames),
			DBPath:          getEnvString("DECODER_DB_PATH", d.DBPath),
			NATSURL:         getEnvString("NATS_URL", d.NATSURL),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Decoder.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Check validates the decoder configuration, matching the constraints
// named in spec section 6.4 (the ConfigInvalid error kind).
func (c DecoderConfig) Check() error {
	if c.Beam <= 0.0 {
		return fmt.Errorf("beam must be positive, got %v", c.Beam)
	}
	if c.MaxActive <= 1 {
		return fmt.Errorf("max_active must be > 1, got %d", c.MaxActive)
	}
	if c.LatticeBeam <= 0.0 {
		return fmt.Errorf("lattice_beam must be positive, got %v", c.LatticeBeam)
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("prune_interval must be positive, got %d", c.PruneInterval)
	}
	if c.BeamDelta <= 0.0 {
		return fmt.Errorf("beam_delta must be positive, got %v", c.BeamDelta)
	}
	if c.HashRatio < 1.0 {
		return fmt.Errorf("hash_ratio must be >= 1.0, got %v", c.HashRatio)
	}
	if c.PruneScale <= 0.0 || c.PruneScale >= 1.0 {
		return fmt.Errorf("prune_scale must be in (0, 1), got %v", c.PruneScale)
	}
	if c.MinActive < 0 {
		return fmt.Errorf("min_active must be non-negative, got %d", c.MinActive)
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
