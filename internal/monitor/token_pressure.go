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

// Package monitor watches a running decode without touching decoder
// state: token-count pressure against a soft ceiling, and real-time
// factor against wall-clock time.
package monitor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-decoder/internal/logging"
)

// TokenPressure warns when the token store's live count exceeds a
// soft ceiling for several consecutive samples in a row, which
// usually means max_active/beam are too loose for the available
// pruning interval rather than a one-frame spike.
type TokenPressure struct {
	mu sync.Mutex

	softCeiling      int
	consecutiveLimit int

	consecutiveOver int
	peak            int
	samples         int
}

// NewTokenPressure returns a monitor that warns once softCeiling has
// been exceeded on consecutiveLimit samples in a row.
func NewTokenPressure(softCeiling, consecutiveLimit int) *TokenPressure {
	if consecutiveLimit < 1 {
		consecutiveLimit = 1
	}
	return &TokenPressure{softCeiling: softCeiling, consecutiveLimit: consecutiveLimit}
}

// Sample records numToks for the current frame and logs a warning the
// first time the consecutive-overage streak reaches consecutiveLimit.
func (tp *TokenPressure) Sample(sessionID string, frame, numToks int) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	tp.samples++
	if numToks > tp.peak {
		tp.peak = numToks
	}

	if numToks <= tp.softCeiling {
		tp.consecutiveOver = 0
		return
	}

	tp.consecutiveOver++
	if tp.consecutiveOver == tp.consecutiveLimit {
		if logging.Logger != nil {
			logging.Logger.Warn("sustained token pressure above soft ceiling",
				zap.String("session_id", sessionID),
				zap.Int("frame", frame),
				zap.Int("num_toks", numToks),
				zap.Int("soft_ceiling", tp.softCeiling),
				zap.Int("consecutive_frames", tp.consecutiveOver),
			)
		}
	}
}

// Peak returns the largest token count observed so far.
func (tp *TokenPressure) Peak() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.peak
}

// Reset clears the accumulated streak and peak, for reuse across
// utterances on a long-lived session.
func (tp *TokenPressure) Reset() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.consecutiveOver = 0
	tp.peak = 0
	tp.samples = 0
}
