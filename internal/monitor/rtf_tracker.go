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

package monitor

import (
	"sync"
	"time"
)

// frameShiftSeconds is the audio duration one decoded frame
// represents; 10ms is the conventional shift for the acoustic
// features this decoder is designed to consume.
const frameShiftSeconds = 0.010

// RTFTracker accumulates wall-clock processing time against
// frames-of-audio decoded and reports the real-time factor: how many
// seconds of compute one second of audio costs. RTF < 1 means the
// decoder keeps up with a live audio stream.
type RTFTracker struct {
	mu sync.Mutex

	wallClock time.Duration
	numFrames int
}

// NewRTFTracker returns an empty tracker.
func NewRTFTracker() *RTFTracker {
	return &RTFTracker{}
}

// RecordFrame adds one processed frame's wall-clock cost.
func (t *RTFTracker) RecordFrame(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wallClock += elapsed
	t.numFrames++
}

// RealTimeFactor returns accumulated wall-clock seconds divided by
// accumulated audio seconds, or 0 if no frames have been recorded.
func (t *RTFTracker) RealTimeFactor() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numFrames == 0 {
		return 0
	}
	audioSeconds := float64(t.numFrames) * frameShiftSeconds
	return t.wallClock.Seconds() / audioSeconds
}

// NumFrames returns the number of frames recorded so far.
func (t *RTFTracker) NumFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numFrames
}

// Reset clears all accumulated state, for reuse across utterances.
func (t *RTFTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wallClock = 0
	t.numFrames = 0
}
