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

// Package decoder implements the online, lattice-generating Viterbi
// beam-search core: the token network, per-frame emitting/
// non-emitting expansion, adaptive pruning, and traceback/lattice
// reconstruction. A Decoder is single-threaded and owned exclusively
// by one caller; concurrent calls on the same instance are undefined.
// Independent instances may run in parallel.
package decoder

import (
	"fmt"
	"math"

	"github.com/loqalabs/loqa-decoder/internal/acoustic"
	"github.com/loqalabs/loqa-decoder/internal/activeindex"
	"github.com/loqalabs/loqa-decoder/internal/config"
	"github.com/loqalabs/loqa-decoder/internal/graphfst"
	"github.com/loqalabs/loqa-decoder/internal/token"
)

// Decoder orchestrates one decode: InitDecoding, AdvanceDecoding,
// FinalizeDecoding, and the traceback/lattice getters. It owns the
// token network, the active index, and the token store exclusively;
// nothing else may mutate them.
type Decoder struct {
	fst    graphfst.Graph
	lmdiff graphfst.LMDiff // nil when no LM-diff oracle is composed
	cfg    config.DecoderConfig

	store      *token.Store
	activeIdx  *activeindex.Index
	tokenNet   []*token.List
	costOffset []float64

	queue []SearchState // work queue for the non-emitting expander

	warned            bool
	decodingFinalized bool
	finalCosts        map[*token.Token]float64
	finalRelativeCost float64
	finalBestCost     float64
	lastCutoff        float64
}

// New returns a Decoder ready for InitDecoding. lmdiff may be nil.
func New(fst graphfst.Graph, lmdiff graphfst.LMDiff, cfg config.DecoderConfig) (*Decoder, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return &Decoder{
		fst:    fst,
		lmdiff: lmdiff,
		cfg:    cfg,
		store:  token.NewStore(),
	}, nil
}

// NumFramesDecoded equals token_network.len - 1, i.e. the number of
// emitting frames processed so far.
func (d *Decoder) NumFramesDecoded() int {
	if len(d.tokenNet) == 0 {
		return 0
	}
	return len(d.tokenNet) - 1
}

// NumToks returns the number of tokens currently owned by the store.
func (d *Decoder) NumToks() int { return d.store.NumToks() }

// LastCutoff returns the pruning cutoff applied while expanding the
// most recently processed emitting frame, for callers (such as a
// streaming session) that acknowledge each frame with it.
func (d *Decoder) LastCutoff() float64 { return d.lastCutoff }

// SearchCollapsed reports whether ProcessNonemitting has ever found
// an empty active set, or pruning has found a frame with no tokens
// (warned once per utterance).
func (d *Decoder) SearchCollapsed() bool { return d.warned }

// InitDecoding resets the decoder to a fresh utterance: clears the
// token network, seeds frame 0 with a zero-cost token at the graph's
// start state, and runs the initial non-emitting closure.
func (d *Decoder) InitDecoding() {
	d.store.Clear(d.tokenNet)
	d.activeIdx = activeindex.New()
	d.activeIdx.SetSize(1000)
	d.tokenNet = nil
	d.costOffset = nil
	d.warned = false
	d.decodingFinalized = false
	d.finalCosts = nil

	startState := ComposeState(d.fst.Start(), lmdiffStart(d.lmdiff))

	fl := token.NewList()
	d.tokenNet = append(d.tokenNet, fl)
	startTok := d.store.NewToken(0.0, 0.0, nil, nil, nil)
	fl.Head = startTok
	d.store.IncToks()
	d.activeIdx.Insert(startState, startTok)

	d.processNonemitting(d.cfg.Beam)
}

func lmdiffStart(lm graphfst.LMDiff) graphfst.State {
	if lm == nil {
		return 0
	}
	return lm.Start()
}

// AdvanceDecoding processes frames until the likelihood source is out
// of ready frames, or until maxNumFrames have been processed
// (maxNumFrames < 0 means unbounded). InitDecoding must have been
// called first, and FinalizeDecoding must not have run yet.
func (d *Decoder) AdvanceDecoding(lik acoustic.Likelihood, maxNumFrames int) error {
	if len(d.tokenNet) == 0 {
		return fmt.Errorf("%w: AdvanceDecoding called before InitDecoding", ErrPrecondition)
	}
	if d.decodingFinalized {
		return fmt.Errorf("%w: AdvanceDecoding called after FinalizeDecoding", ErrPrecondition)
	}

	numFramesReady := lik.NumFramesReady()
	if numFramesReady < d.NumFramesDecoded() {
		return fmt.Errorf("%w: likelihood source frame count decreased", ErrPrecondition)
	}
	target := numFramesReady
	if maxNumFrames >= 0 {
		if want := d.NumFramesDecoded() + maxNumFrames; want < target {
			target = want
		}
	}

	for d.NumFramesDecoded() < target {
		if d.NumFramesDecoded()%d.cfg.PruneInterval == 0 {
			if err := d.pruneTokenNet(d.cfg.LatticeBeam * d.cfg.PruneScale); err != nil {
				return err
			}
		}
		costCutoff := d.processEmitting(lik)
		d.processNonemitting(costCutoff)
	}
	return nil
}

// FinalizeDecoding is a version of PruneTokenNet run once on the
// final frame, taking each surviving token's final cost into account.
// Further AdvanceDecoding calls after this fail with ErrPrecondition.
func (d *Decoder) FinalizeDecoding() error {
	if d.decodingFinalized {
		// Idempotent: calling twice has the same effect as once.
		return nil
	}
	endTime := d.NumFramesDecoded()
	if err := d.pruneForwardLinksFinal(); err != nil {
		return err
	}
	for t := endTime - 1; t >= 0; t-- {
		if _, _, err := d.pruneForwardLinks(t, 0.0); err != nil {
			return err
		}
		d.pruneTokenList(t + 1)
	}
	d.pruneTokenList(0)
	return nil
}

// Decode runs InitDecoding, advances until the likelihood source
// reports its last frame, then FinalizeDecoding. It returns true if
// any kind of traceback is available (not necessarily reaching a
// final state) — this should only rarely be false.
func (d *Decoder) Decode(lik acoustic.Likelihood) bool {
	d.InitDecoding()
	for !lik.IsLastFrame(d.NumFramesDecoded() - 1) {
		if err := d.AdvanceDecoding(lik, 1); err != nil {
			break
		}
	}
	if err := d.FinalizeDecoding(); err != nil {
		return false
	}
	return len(d.tokenNet) > 0 && d.tokenNet[len(d.tokenNet)-1].Head != nil
}

// ReachedFinal reports whether the best surviving path ends in a
// state with a finite final weight.
func (d *Decoder) ReachedFinal() bool {
	return !math.IsInf(d.FinalRelativeCost(), 1)
}

// FinalRelativeCost is best_with_final - best_without_final among
// tokens on the last frame, or +Inf if no tokens survived. Must not
// be called after FinalizeDecoding except via the cached value it
// computed there.
func (d *Decoder) FinalRelativeCost() float64 {
	if d.decodingFinalized {
		return d.finalRelativeCost
	}
	_, relative, _ := d.computeFinalCosts(false)
	return relative
}

// findOrAddToken implements the FindOrAddToken contract shared by
// both expanders: if state is absent, allocate a token and insert it;
// if present and total_cost improves, update it in place; otherwise
// leave it untouched. changed reports which of the first two cases
// applied.
func (d *Decoder) findOrAddToken(state SearchState, frame int, totalCost float64, backpointer *token.Token) (tok *token.Token, changed bool) {
	if e := d.activeIdx.Find(state); e != nil {
		tok := e.Tok
		if tok.TotalCost > totalCost {
			tok.TotalCost = totalCost
			tok.Backpointer = backpointer
			return tok, true
		}
		return tok, false
	}

	fl := d.tokenNet[frame]
	newTok := d.store.NewToken(totalCost, 0.0, nil, fl.Head, backpointer)
	fl.Head = newTok
	d.store.IncToks()
	d.activeIdx.Insert(state, newTok)
	return newTok, true
}
