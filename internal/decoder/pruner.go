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

	"github.com/loqalabs/loqa-decoder/internal/logging"
	"github.com/loqalabs/loqa-decoder/internal/token"
)

// pruneTokenNet walks frames backward from the current frame,
// re-running PruneForwardLinks wherever a frame is marked dirty and
// PruneTokenList wherever links were excised, propagating dirtiness
// to the previous frame when a token's extra_cost changed.
func (d *Decoder) pruneTokenNet(delta float64) error {
	curTime := d.NumFramesDecoded()
	begin := d.store.NumToks()

	for t := curTime - 1; t >= 0; t-- {
		fl := d.tokenNet[t]
		if fl.MustPruneForwardLinks {
			extraCostsChanged, linksPruned, err := d.pruneForwardLinks(t, delta)
			if err != nil {
				return err
			}
			if extraCostsChanged && t > 0 {
				d.tokenNet[t-1].MustPruneForwardLinks = true
			}
			if linksPruned {
				fl.MustPruneTokens = true
			}
			fl.MustPruneForwardLinks = false
		}
		if t != curTime-1 && d.tokenNet[t+1].MustPruneTokens {
			d.pruneTokenList(t + 1)
			d.tokenNet[t+1].MustPruneTokens = false
		}
	}
	logging.LogPruneEvent("", "interval", begin, d.store.NumToks())
	return nil
}

// pruneForwardLinks recomputes extra_cost for every token in frame t
// and excises any outgoing link whose extra cost exceeds lattice_beam.
// It iterates to a fixed point since links are not guaranteed to be
// topologically ordered.
func (d *Decoder) pruneForwardLinks(t int, delta float64) (extraCostsChanged, linksPruned bool, err error) {
	fl := d.tokenNet[t]
	if fl.Head == nil {
		if !d.warned {
			logging.LogWarn("no tokens alive while pruning")
			d.warned = true
		}
	}

	changed := true
	for changed {
		changed = false
		for tok := fl.Head; tok != nil; tok = tok.Next {
			tokExtraCost := math.Inf(1)
			var prev *token.ForwardLink
			link := tok.Links
			for link != nil {
				dst := link.DstTok
				linkExtraCost := dst.ExtraCost + ((tok.TotalCost + link.AcousticCost + link.GraphCost) - dst.TotalCost)
				if linkExtraCost != linkExtraCost {
					return extraCostsChanged, linksPruned, fmt.Errorf("%w: NaN link_extra_cost at frame %d", ErrNumericAnomaly, t)
				}
				if linkExtraCost > d.cfg.LatticeBeam {
					next := link.Next
					if prev != nil {
						prev.Next = next
					} else {
						tok.Links = next
					}
					d.store.DeleteLink(link)
					link = next
					linksPruned = true
					continue
				}
				if linkExtraCost < 0.0 {
					if linkExtraCost < -0.01 {
						logging.LogWarn("negative extra_cost during pruning")
					}
					linkExtraCost = 0.0
				}
				if linkExtraCost < tokExtraCost {
					tokExtraCost = linkExtraCost
				}
				prev = link
				link = link.Next
			}
			if math.Abs(tokExtraCost-tok.ExtraCost) > delta {
				changed = true
			}
			tok.ExtraCost = tokExtraCost
		}
		if changed {
			extraCostsChanged = true
		}
	}
	return extraCostsChanged, linksPruned, nil
}

// pruneTokenList removes and destroys every token in frame t whose
// extra_cost is +Inf.
func (d *Decoder) pruneTokenList(t int) {
	fl := d.tokenNet[t]
	var prev *token.Token
	tok := fl.Head
	for tok != nil {
		next := tok.Next
		if math.IsInf(tok.ExtraCost, 1) {
			if prev != nil {
				prev.Next = next
			} else {
				fl.Head = next
			}
			d.store.DeleteToken(tok)
			d.store.DecToks()
		} else {
			prev = tok
		}
		tok = next
	}
}

// pruneForwardLinksFinal is PruneForwardLinks specialized for the
// final frame: the initial tok_extra_cost accounts for the token's
// own final cost rather than an outgoing link, and any token whose
// resulting extra_cost exceeds lattice_beam is marked unreachable.
func (d *Decoder) pruneForwardLinksFinal() error {
	endTime := d.NumFramesDecoded()
	fl := d.tokenNet[endTime]
	if fl.Head == nil {
		logging.LogWarn("no tokens alive at end of utterance")
	}

	finalCosts, relativeCost, bestCostWithFinal := d.computeFinalCosts(true)
	d.finalCosts = finalCosts
	d.finalRelativeCost = relativeCost
	d.finalBestCost = bestCostWithFinal
	d.decodingFinalized = true
	// The active index's snapshot entries are about to be invalidated
	// by pruning; drop them now rather than leaving dangling pointers.
	d.activeIdx.Clear()

	changed := true
	for changed {
		changed = false
		for tok := fl.Head; tok != nil; tok = tok.Next {
			// An empty final-costs map means no token on this frame
			// reaches a final state; in that case every token is
			// treated as if its final cost were zero, so traceback
			// still finds a best path (see FinalRelativeCost/
			// ReachedFinal for the +Inf signal that no true final
			// state was reached).
			var finalCost float64
			if len(d.finalCosts) == 0 {
				finalCost = 0.0
			} else if fc, ok := d.finalCosts[tok]; ok {
				finalCost = fc
			} else {
				finalCost = math.Inf(1)
			}
			tokExtraCost := tok.TotalCost + finalCost - bestCostWithFinal

			var prev *token.ForwardLink
			link := tok.Links
			for link != nil {
				dst := link.DstTok
				linkExtraCost := dst.ExtraCost + ((tok.TotalCost + link.AcousticCost + link.GraphCost) - dst.TotalCost)
				if linkExtraCost != linkExtraCost {
					return fmt.Errorf("%w: NaN link_extra_cost at final frame %d", ErrNumericAnomaly, endTime)
				}
				if linkExtraCost > d.cfg.LatticeBeam {
					next := link.Next
					if prev != nil {
						prev.Next = next
					} else {
						tok.Links = next
					}
					d.store.DeleteLink(link)
					link = next
					continue
				}
				if linkExtraCost < 0.0 {
					linkExtraCost = 0.0
				}
				if linkExtraCost < tokExtraCost {
					tokExtraCost = linkExtraCost
				}
				prev = link
				link = link.Next
			}
			if tokExtraCost > d.cfg.LatticeBeam {
				tokExtraCost = math.Inf(1)
			}
			if math.Abs(tokExtraCost-tok.ExtraCost) > 0.0 {
				changed = true
			}
			tok.ExtraCost = tokExtraCost
		}
	}
	return nil
}

// computeFinalCosts scans the currently active tokens (or, once
// finalized, this must not be called again — callers use the cached
// values instead) and returns the per-token final-cost map, the
// relative cost of the best final path vs. the best unconstrained
// path, and the best cost including final weights.
func (d *Decoder) computeFinalCosts(wantMap bool) (finalCosts map[*token.Token]float64, relativeCost, bestWithFinal float64) {
	best := math.Inf(1)
	bestFinal := math.Inf(1)
	if wantMap {
		finalCosts = make(map[*token.Token]float64)
	}

	for e := d.activeIdx.List(); e != nil; e = e.Tail {
		la, lm := SplitState(e.State)
		finalCost := d.fst.Final(la)
		if d.lmdiff != nil {
			finalCost += d.lmdiff.Final(lm)
		}
		cost := e.Tok.TotalCost
		costWithFinal := cost + finalCost
		if cost < best {
			best = cost
		}
		if costWithFinal < bestFinal {
			bestFinal = costWithFinal
		}
		if wantMap && !math.IsInf(finalCost, 1) {
			finalCosts[e.Tok] = finalCost
		}
	}

	if math.IsInf(best, 1) && math.IsInf(bestFinal, 1) {
		relativeCost = math.Inf(1)
	} else {
		relativeCost = bestFinal - best
	}

	if !math.IsInf(bestFinal, 1) {
		bestWithFinal = bestFinal
	} else {
		bestWithFinal = best
	}
	return finalCosts, relativeCost, bestWithFinal
}
