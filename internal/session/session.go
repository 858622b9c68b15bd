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

// Package session orchestrates one decode from InitDecoding through
// FinalizeDecoding, persisting the resulting lattice and publishing a
// completion (or collapse) event. A Session owns its Decoder
// exclusively and must not be shared across goroutines; running
// several utterances concurrently means constructing one Session per
// utterance.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-decoder/internal/acoustic"
	"github.com/loqalabs/loqa-decoder/internal/decoder"
	"github.com/loqalabs/loqa-decoder/internal/latticestore"
	"github.com/loqalabs/loqa-decoder/internal/logging"
	"github.com/loqalabs/loqa-decoder/internal/messaging"
	"github.com/loqalabs/loqa-decoder/internal/monitor"
)

// Result summarizes a finished session.
type Result struct {
	SessionID         string
	NumFramesDecoded  int
	FinalRelativeCost float64
	ReachedFinal      bool
	DecodeDuration    time.Duration
	Collapsed         bool
}

// Session ties together a Decoder, an acoustic source, optional
// lattice persistence, and optional event publishing under one
// UUID-identified run.
type Session struct {
	ID  string
	dec *decoder.Decoder
	lik acoustic.Likelihood

	store *latticestore.Store // nil disables persistence
	pub   *messaging.Publisher // nil disables publishing

	pressure *monitor.TokenPressure
	rtf      *monitor.RTFTracker

	logEveryNFrames int

	// OnFrameAdvance, if set, is called after each frame is processed
	// with the frame index and the pruning cutoff the decoder applied
	// to it. A streaming caller uses this to emit a framewire
	// FrameTypeAck back to the acoustic source.
	OnFrameAdvance func(frame int, cutoff float64)
}

// New returns a Session with a freshly assigned id. store and pub may
// be nil to skip persistence/publishing (useful for tests and offline
// batch decoding).
func New(dec *decoder.Decoder, lik acoustic.Likelihood, store *latticestore.Store, pub *messaging.Publisher, logEveryNFrames int) *Session {
	if logEveryNFrames <= 0 {
		logEveryNFrames = 50
	}
	return &Session{
		ID:              uuid.NewString(),
		dec:             dec,
		lik:             lik,
		store:           store,
		pub:             pub,
		pressure:        monitor.NewTokenPressure(100000, 3),
		rtf:             monitor.NewRTFTracker(),
		logEveryNFrames: logEveryNFrames,
	}
}

// Run decodes the utterance to completion, persists the finalized
// lattice (if a store is configured) and publishes the outcome (if a
// publisher is configured). It returns early with an error if ctx is
// canceled mid-decode; the decoder itself is left in whatever partial
// state AdvanceDecoding reached, which callers should treat as
// unusable beyond logging.
func (s *Session) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	s.dec.InitDecoding()

	for !s.lik.IsLastFrame(s.dec.NumFramesDecoded() - 1) {
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("session %s canceled: %w", s.ID, ctx.Err())
		default:
		}

		frameStart := time.Now()
		if err := s.dec.AdvanceDecoding(s.lik, 1); err != nil {
			return Result{}, fmt.Errorf("session %s: %w", s.ID, err)
		}
		s.rtf.RecordFrame(time.Since(frameStart))
		s.pressure.Sample(s.ID, s.dec.NumFramesDecoded(), s.dec.NumToks())

		if s.OnFrameAdvance != nil {
			s.OnFrameAdvance(s.dec.NumFramesDecoded(), s.dec.LastCutoff())
		}

		if s.dec.NumFramesDecoded()%s.logEveryNFrames == 0 && logging.Logger != nil {
			logging.Logger.Info("decode progress",
				zap.String("session_id", s.ID),
				zap.String("frames_decoded", humanize.Comma(int64(s.dec.NumFramesDecoded()))),
				zap.Float64("real_time_factor", s.rtf.RealTimeFactor()),
			)
		}

		if s.dec.SearchCollapsed() {
			if s.pub != nil {
				if err := s.pub.PublishCollapsed(messaging.CollapsedEvent{
					SessionID: s.ID,
					Frame:     s.dec.NumFramesDecoded(),
					Timestamp: time.Now().Unix(),
				}); err != nil && logging.Logger != nil {
					logging.Logger.Warn("failed to publish collapse event", zap.Error(err))
				}
			}
			break
		}
	}

	if err := s.dec.FinalizeDecoding(); err != nil {
		return Result{}, fmt.Errorf("session %s: %w", s.ID, err)
	}
	duration := time.Since(start)

	result := Result{
		SessionID:         s.ID,
		NumFramesDecoded:  s.dec.NumFramesDecoded(),
		FinalRelativeCost: s.dec.FinalRelativeCost(),
		ReachedFinal:      s.dec.ReachedFinal(),
		DecodeDuration:    duration,
		Collapsed:         s.dec.SearchCollapsed(),
	}

	if s.store != nil {
		if lat, ok := s.dec.GetBestPath(true); ok {
			stats := latticestore.Stats{
				NumFramesDecoded:  result.NumFramesDecoded,
				FinalRelativeCost: result.FinalRelativeCost,
				ReachedFinal:      result.ReachedFinal,
				DecodeDuration:    duration,
				CreatedAt:         time.Now(),
			}
			if err := s.store.SaveFinalLattice(s.ID, lat, stats); err != nil {
				return result, fmt.Errorf("session %s: failed to save lattice: %w", s.ID, err)
			}
		}
	}

	if s.pub != nil && !result.Collapsed {
		if err := s.pub.PublishCompleted(messaging.CompletedEvent{
			SessionID:         s.ID,
			NumFramesDecoded:  result.NumFramesDecoded,
			FinalRelativeCost: result.FinalRelativeCost,
			ReachedFinal:      result.ReachedFinal,
			DecodeDurationMs:  duration.Milliseconds(),
			Timestamp:         time.Now().Unix(),
		}); err != nil && logging.Logger != nil {
			logging.Logger.Warn("failed to publish completion event", zap.Error(err))
		}
	}

	return result, nil
}
