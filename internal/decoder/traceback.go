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
	"fmt"
	"math"

	"github.com/loqalabs/loqa-decoder/internal/token"
)

// BestPathIterator carries a raw pointer into the owned token graph
// plus a frame index. It is only valid while the decoder that
// produced it is not mutated further.
type BestPathIterator struct {
	Tok   *token.Token
	Frame int
}

// Done reports whether the iterator has walked back past the start
// token (whose backpointer is nil).
func (it BestPathIterator) Done() bool { return it.Tok == nil }

// BestPathEnd finds, among tokens on the final frame, the one
// minimizing total_cost + final_cost, and returns an iterator
// positioned there. finalCost is the terminal weight the caller
// should attach to the lattice's initial (traced-from) state.
// Calling this with useFinalProbs=false after FinalizeDecoding is a
// precondition violation: pruning has already taken final costs into
// account, so total_cost alone no longer picks the true best token.
func (d *Decoder) BestPathEnd(useFinalProbs bool) (BestPathIterator, float64, error) {
	if d.decodingFinalized && !useFinalProbs {
		return BestPathIterator{}, 0, fmt.Errorf("%w: BestPathEnd(useFinalProbs=false) is invalid after FinalizeDecoding", ErrPrecondition)
	}
	if d.NumFramesDecoded() == 0 {
		return BestPathIterator{}, 0, nil
	}

	finalCosts := d.finalCosts
	if !d.decodingFinalized && useFinalProbs {
		finalCosts, _, _ = d.computeFinalCosts(true)
	}

	bestCost := math.Inf(1)
	bestFinalCost := 0.0
	var bestTok *token.Token

	for tok := d.tokenNet[len(d.tokenNet)-1].Head; tok != nil; tok = tok.Next {
		cost := tok.TotalCost
		finalCost := 0.0
		if useFinalProbs && len(finalCosts) > 0 {
			if fc, ok := finalCosts[tok]; ok {
				finalCost = fc
				cost += finalCost
			} else {
				cost = math.Inf(1)
			}
		}
		if cost < bestCost {
			bestCost = cost
			bestTok = tok
			bestFinalCost = finalCost
		}
	}

	return BestPathIterator{Tok: bestTok, Frame: d.NumFramesDecoded() - 1}, bestFinalCost, nil
}

// TraceBackBestPath follows iter.Tok's backpointer one step, emitting
// the lattice arc that reaches it. The returned iterator's frame
// decrements exactly once per emitting arc traversed and stays the
// same across epsilon arcs.
func (d *Decoder) TraceBackBestPath(iter BestPathIterator) (BestPathIterator, LatticeArc, error) {
	if iter.Done() {
		return iter, LatticeArc{}, fmt.Errorf("%w: TraceBackBestPath called on a done iterator", ErrPrecondition)
	}
	tok := iter.Tok
	curT := iter.Frame
	retT := curT

	if tok.Backpointer == nil {
		return BestPathIterator{Tok: nil, Frame: retT}, LatticeArc{}, nil
	}

	for link := tok.Backpointer.Links; link != nil; link = link.Next {
		if link.DstTok != tok {
			continue
		}
		acousticCost := link.AcousticCost
		if link.ILabel != 0 {
			acousticCost -= d.costOffset[curT]
			retT--
		}
		arc := LatticeArc{
			ILabel:       link.ILabel,
			OLabel:       link.OLabel,
			GraphCost:    link.GraphCost,
			AcousticCost: acousticCost,
		}
		return BestPathIterator{Tok: tok.Backpointer, Frame: retT}, arc, nil
	}
	return iter, LatticeArc{}, fmt.Errorf("%w: no forward link matches a known backpointer", ErrOracleInconsistency)
}
