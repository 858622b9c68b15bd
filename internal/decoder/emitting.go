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

package decoder

import (
	"math"

	"github.com/loqalabs/loqa-decoder/internal/acoustic"
	"github.com/loqalabs/loqa-decoder/internal/graphfst"
	"github.com/loqalabs/loqa-decoder/internal/logging"
	"github.com/loqalabs/loqa-decoder/internal/token"
)

// processEmitting consumes one acoustic frame: it grows the token
// network by a slot, snapshots the previous frame's active set,
// computes the cutoff, and expands every surviving entry's emitting
// arcs into frame+1. It returns the online next-frame cutoff for the
// caller to pass into processNonemitting.
func (d *Decoder) processEmitting(lik acoustic.Likelihood) float64 {
	frame := len(d.tokenNet) - 1
	d.tokenNet = append(d.tokenNet, token.NewList())

	finalToks := d.activeIdx.Clear()

	cut := computeCutoff(finalToks, d.cfg)
	d.possiblyResizeHash(cut.count)
	d.lastCutoff = cut.curCutoff
	logging.LogFrameAdvance("", frame+1, cut.curCutoff, cut.adaptiveBeam)

	nextCutoff := math.Inf(1)
	costOffset := 0.0

	if cut.bestEntry != nil {
		tok := cut.bestEntry.Tok
		costOffset = -tok.TotalCost
		la, _ := SplitState(cut.bestEntry.State)
		for _, arc := range d.fst.Arcs(la) {
			if arc.ILabel == kEpsilon {
				continue
			}
			newWeight := tok.TotalCost + arc.Weight + (-lik.LogLikelihood(frame, arc.ILabel)) + costOffset
			if newWeight+cut.adaptiveBeam < nextCutoff {
				nextCutoff = newWeight + cut.adaptiveBeam
			}
		}
	}

	if frame+1 > len(d.costOffset) {
		grown := make([]float64, frame+1)
		copy(grown, d.costOffset)
		d.costOffset = grown
	}
	d.costOffset[frame] = costOffset

	for e := finalToks; e != nil; {
		next := e.Tail
		tok := e.Tok
		if tok.TotalCost <= cut.curCutoff {
			la, lm := SplitState(e.State)
			for _, arc := range d.fst.Arcs(la) {
				if arc.ILabel == kEpsilon {
					continue
				}
				graphCost, olabel, nextLM, err := d.applyLMDiff(lm, arc)
				if err != nil {
					logging.LogError(err, "lm-diff oracle has no arc for a crossed word label")
					panic(err)
				}
				acCost := costOffset + (-lik.LogLikelihood(frame, arc.ILabel))
				total := tok.TotalCost + acCost + graphCost
				if total > nextCutoff {
					continue
				}
				if total+cut.adaptiveBeam < nextCutoff {
					nextCutoff = total + cut.adaptiveBeam
				}
				dstState := ComposeState(arc.Dst, nextLM)
				dstTok, _ := d.findOrAddToken(dstState, frame+1, total, tok)
				tok.Links = d.store.NewLink(dstTok, arc.ILabel, olabel, graphCost, acCost, tok.Links)
			}
		}
		d.activeIdx.Delete(e)
		e = next
	}

	return nextCutoff
}

const kEpsilon = int32(0)

// applyLMDiff rescores arc's weight and output label through the
// optional LM-diff oracle. With no oracle composed, it passes the
// arc's weight and label straight through with lm state fixed at 0.
// A non-epsilon output label with no matching LM-diff arc is a fatal
// input error for a well-formed backoff LM.
func (d *Decoder) applyLMDiff(lm graphfst.State, arc graphfst.Arc) (weight float64, olabel int32, nextLM graphfst.State, err error) {
	if d.lmdiff == nil {
		return arc.Weight, arc.OLabel, 0, nil
	}
	if arc.OLabel == kEpsilon {
		return arc.Weight, arc.OLabel, lm, nil
	}
	lmWeight, newOLabel, next, ok := d.lmdiff.GetArc(lm, arc.OLabel)
	if !ok {
		return 0, 0, 0, ErrOracleInconsistency
	}
	return arc.Weight + lmWeight, newOLabel, next, nil
}

// possiblyResizeHash grows the active index ahead of the next frame's
// insert burst so it never rehashes mid-frame.
func (d *Decoder) possiblyResizeHash(numToks int) {
	newSize := int(float64(numToks) * d.cfg.HashRatio)
	if newSize > d.activeIdx.Size() {
		d.activeIdx.SetSize(newSize)
	}
}
