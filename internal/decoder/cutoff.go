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
	"sort"

	"github.com/loqalabs/loqa-decoder/internal/activeindex"
	"github.com/loqalabs/loqa-decoder/internal/config"
)

// cutoffResult is the output of computeCutoff: the weight cutoff
// admitting a token to the current expansion, the adaptive beam
// derived from it, the cheapest surviving entry, and the number of
// entries seen.
type cutoffResult struct {
	curCutoff    float64
	adaptiveBeam float64
	bestEntry    *activeindex.Entry
	count        int
}

// computeCutoff implements the beam / max-active / min-active cutoff
// selection. The reference implementation calls nth_element twice on
// overlapping ranges of the same buffer to find the max-active and
// min-active order statistics; this sorts the cost snapshot once and
// reads both order statistics off the single sorted copy, per the
// resolved open question on overlapping partial sorts.
func computeCutoff(head *activeindex.Entry, cfg config.DecoderConfig) cutoffResult {
	best := math.Inf(1)
	var bestEntry *activeindex.Entry
	count := 0

	if cfg.MaxActive == math.MaxInt32 && cfg.MinActive == 0 {
		for e := head; e != nil; e = e.Tail {
			w := e.Tok.TotalCost
			if w < best {
				best = w
				bestEntry = e
			}
			count++
		}
		return cutoffResult{curCutoff: best + cfg.Beam, adaptiveBeam: cfg.Beam, bestEntry: bestEntry, count: count}
	}

	costs := make([]float64, 0, 64)
	for e := head; e != nil; e = e.Tail {
		w := e.Tok.TotalCost
		costs = append(costs, w)
		if w < best {
			best = w
			bestEntry = e
		}
		count++
	}

	beamCutoff := best + cfg.Beam

	sorted := make([]float64, len(costs))
	copy(sorted, costs)
	sort.Float64s(sorted)

	maxActiveCutoff := math.Inf(1)
	if len(sorted) > cfg.MaxActive {
		maxActiveCutoff = sorted[cfg.MaxActive]
	}
	if maxActiveCutoff < beamCutoff {
		return cutoffResult{
			curCutoff:    maxActiveCutoff,
			adaptiveBeam: maxActiveCutoff - best + cfg.BeamDelta,
			bestEntry:    bestEntry,
			count:        count,
		}
	}

	minActiveCutoff := math.Inf(1)
	if len(sorted) > cfg.MinActive {
		if cfg.MinActive == 0 {
			minActiveCutoff = best
		} else {
			minActiveCutoff = sorted[cfg.MinActive]
		}
	}
	if minActiveCutoff > beamCutoff {
		return cutoffResult{
			curCutoff:    minActiveCutoff,
			adaptiveBeam: minActiveCutoff - best + cfg.BeamDelta,
			bestEntry:    bestEntry,
			count:        count,
		}
	}

	return cutoffResult{curCutoff: beamCutoff, adaptiveBeam: cfg.Beam, bestEntry: bestEntry, count: count}
}
