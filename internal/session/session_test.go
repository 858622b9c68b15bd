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

package session

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/loqalabs/loqa-decoder/internal/acoustic"
	"github.com/loqalabs/loqa-decoder/internal/config"
	"github.com/loqalabs/loqa-decoder/internal/decoder"
	"github.com/loqalabs/loqa-decoder/internal/graphfst"
)

func newTestDecoder(t *testing.T) *decoder.Decoder {
	t.Helper()
	g := graphfst.NewStaticGraph(0)
	g.AddArc(0, graphfst.Arc{ILabel: 1, OLabel: 7, Weight: 0.0, Dst: 1})
	g.SetFinal(1, 0.0)

	cfg := config.DecoderConfig{
		Beam: 16.0, MaxActive: math.MaxInt32, MinActive: 200,
		LatticeBeam: 10.0, PruneInterval: 25, BeamDelta: 0.5,
		HashRatio: 2.0, PruneScale: 0.1, LogEveryNFrames: 50,
	}
	dec, err := decoder.New(g, nil, cfg)
	if err != nil {
		t.Fatalf("decoder.New() error = %v", err)
	}
	return dec
}

func TestSessionRun_CompletesWithoutStoreOrPublisher(t *testing.T) {
	dec := newTestDecoder(t)
	lik := acoustic.NewMatrixLikelihood([][]float64{{0, 0}}, true)

	s := New(dec, lik, nil, nil, 50)
	if s.ID == "" {
		t.Fatalf("expected a non-empty session id")
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.SessionID != s.ID {
		t.Fatalf("result.SessionID = %q, want %q", result.SessionID, s.ID)
	}
	if !result.ReachedFinal {
		t.Fatalf("ReachedFinal = false, want true")
	}
	if result.NumFramesDecoded != 1 {
		t.Fatalf("NumFramesDecoded = %d, want 1", result.NumFramesDecoded)
	}
}

func TestSessionRun_RespectsContextCancellation(t *testing.T) {
	dec := newTestDecoder(t)
	lik := acoustic.NewMatrixLikelihood([][]float64{{0, 0}, {0, 0}, {0, 0}}, true)

	s := New(dec, lik, nil, nil, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The context is already canceled, so Run's per-frame context check
	// returns the cancellation error before any frame is advanced.
	timeout, cancelTimeout := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancelTimeout()

	if _, err := s.Run(timeout); err == nil {
		t.Fatalf("Run() = nil error, want cancellation error")
	}
}
