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

import "github.com/loqalabs/loqa-decoder/internal/logging"

// processNonemitting closes the current frame under epsilon arcs. It
// seeds a work queue with every state currently in the active index,
// pops states one at a time, deletes and regenerates their outgoing
// links (a revisited state's previous links are stale once its cost
// improves), and pushes any destination whose token changed.
func (d *Decoder) processNonemitting(cutoff float64) {
	frame := len(d.tokenNet) - 2

	d.queue = d.queue[:0]
	for e := d.activeIdx.List(); e != nil; e = e.Tail {
		d.queue = append(d.queue, e.State)
	}
	if len(d.queue) == 0 && !d.warned {
		logging.LogSearchCollapse("", frame)
		d.warned = true
	}

	for len(d.queue) > 0 {
		state := d.queue[len(d.queue)-1]
		d.queue = d.queue[:len(d.queue)-1]

		e := d.activeIdx.Find(state)
		if e == nil {
			continue
		}
		tok := e.Tok
		if tok.TotalCost > cutoff {
			continue
		}

		d.store.DeleteLinksFrom(tok)

		la, lm := SplitState(state)
		for _, arc := range d.fst.Arcs(la) {
			if arc.ILabel != kEpsilon {
				continue
			}
			graphCost, olabel, nextLM, err := d.applyLMDiff(lm, arc)
			if err != nil {
				logging.LogError(err, "lm-diff oracle has no arc for a crossed word label")
				panic(err)
			}
			total := tok.TotalCost + graphCost
			if total >= cutoff {
				continue
			}
			dstState := ComposeState(arc.Dst, nextLM)
			newTok, changed := d.findOrAddToken(dstState, frame+1, total, tok)
			tok.Links = d.store.NewLink(newTok, 0, olabel, graphCost, 0, tok.Links)
			if changed {
				d.queue = append(d.queue, dstState)
			}
		}
	}
}
