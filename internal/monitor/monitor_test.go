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
	"testing"
	"time"
)

func TestTokenPressure_TracksPeak(t *testing.T) {
	tp := NewTokenPressure(100, 3)
	tp.Sample("s", 0, 50)
	tp.Sample("s", 1, 150)
	tp.Sample("s", 2, 90)
	if got := tp.Peak(); got != 150 {
		t.Fatalf("Peak() = %d, want 150", got)
	}
}

func TestTokenPressure_ResetsStreakBelowCeiling(t *testing.T) {
	tp := NewTokenPressure(10, 2)
	tp.Sample("s", 0, 20)
	tp.Sample("s", 1, 5) // resets the streak
	tp.Sample("s", 2, 20)
	// Never two consecutive over-ceiling samples; should not panic or
	// misbehave, and Peak should reflect the max observed.
	if got := tp.Peak(); got != 20 {
		t.Fatalf("Peak() = %d, want 20", got)
	}
	if tp.consecutiveOver != 1 {
		t.Fatalf("consecutiveOver = %d, want 1 after the below-ceiling reset", tp.consecutiveOver)
	}
}

func TestRTFTracker_ComputesRealTimeFactor(t *testing.T) {
	rt := NewRTFTracker()
	for i := 0; i < 100; i++ {
		rt.RecordFrame(5 * time.Millisecond)
	}
	// 100 frames * 10ms/frame = 1.0s of audio; 100 * 5ms = 0.5s wall clock.
	rtf := rt.RealTimeFactor()
	if rtf < 0.49 || rtf > 0.51 {
		t.Fatalf("RealTimeFactor() = %v, want ~0.5", rtf)
	}
	if rt.NumFrames() != 100 {
		t.Fatalf("NumFrames() = %d, want 100", rt.NumFrames())
	}
}

func TestRTFTracker_ZeroFramesReportsZero(t *testing.T) {
	rt := NewRTFTracker()
	if got := rt.RealTimeFactor(); got != 0 {
		t.Fatalf("RealTimeFactor() = %v, want 0", got)
	}
}

func TestRTFTracker_Reset(t *testing.T) {
	rt := NewRTFTracker()
	rt.RecordFrame(10 * time.Millisecond)
	rt.Reset()
	if rt.NumFrames() != 0 {
		t.Fatalf("NumFrames() after Reset() = %d, want 0", rt.NumFrames())
	}
}
