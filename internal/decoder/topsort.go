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

	"github.com/loqalabs/loqa-decoder/internal/token"
)

// maxTopSortIterations caps the reprocess loop below to detect
// epsilon cycles, which the graph oracle promises not to contain.
const maxTopSortIterations = 1000000

// TopSortTokens orders one frame's token list along epsilon (ilabel
// == 0) links only, since non-epsilon links transition between frames
// and are irrelevant to sorting a single frame. New tokens sit at the
// list head, so initial positions are assigned in reverse list order
// to start closer to topological order. Positions are then bumped
// forward whenever an epsilon successor is found earlier in the
// order, iterating to a fixed point. Returns a slice indexed by final
// position; gaps left by the reassignment process are nil and callers
// must skip them.
func TopSortTokens(head *token.Token) ([]*token.Token, error) {
	numToks := 0
	for tok := head; tok != nil; tok = tok.Next {
		numToks++
	}

	pos := make(map[*token.Token]int, numToks)
	curPos := 0
	cur := numToks
	for tok := head; tok != nil; tok = tok.Next {
		cur--
		pos[tok] = cur
	}
	// curPos tracks the next free position handed out when a token
	// must be reassigned forward; it starts past every initial slot.
	curPos = numToks

	reprocess := make(map[*token.Token]bool)

	for tok, p := range pos {
		for link := tok.Links; link != nil; link = link.Next {
			if link.ILabel != 0 {
				continue
			}
			if nextPos, ok := pos[link.DstTok]; ok && nextPos < p {
				pos[link.DstTok] = curPos
				curPos++
				reprocess[link.DstTok] = true
			}
		}
		delete(reprocess, tok)
	}

	loopCount := 0
	for len(reprocess) > 0 && loopCount < maxTopSortIterations {
		loopCount++
		batch := make([]*token.Token, 0, len(reprocess))
		for tok := range reprocess {
			batch = append(batch, tok)
		}
		reprocess = make(map[*token.Token]bool)
		for _, tok := range batch {
			p := pos[tok]
			for link := tok.Links; link != nil; link = link.Next {
				if link.ILabel != 0 {
					continue
				}
				if nextPos, ok := pos[link.DstTok]; ok && nextPos < p {
					pos[link.DstTok] = curPos
					curPos++
					reprocess[link.DstTok] = true
				}
			}
		}
	}
	if loopCount >= maxTopSortIterations {
		return nil, fmt.Errorf("%w: epsilon cycle detected while sorting a frame's tokens", ErrOracleInconsistency)
	}

	out := make([]*token.Token, curPos)
	for tok, p := range pos {
		out[p] = tok
	}
	return out, nil
}
