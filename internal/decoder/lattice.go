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
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/loqalabs/loqa-decoder/internal/logging"
	"github.com/loqalabs/loqa-decoder/internal/token"
)

// LatticeArc is one output-lattice transition.
type LatticeArc struct {
	ILabel       int32
	OLabel       int32
	GraphCost    float64
	AcousticCost float64
	Dst          int
}

// LatticeState is one output-lattice state: its final weight
// (+Inf if non-final) and its outgoing arcs.
type LatticeState struct {
	Final float64
	Arcs  []LatticeArc
}

// Lattice is a word-level lattice recovered from the token network:
// either the single best path (GetBestPath) or the full surviving
// search space (GetRawLattice / GetRawLatticePruned).
type Lattice struct {
	Start  int
	States []LatticeState
}

// GetBestPath walks BestPathEnd -> TraceBackBestPath to the start
// token and returns the single best path as a linear-chain lattice.
// ok is false if the search collapsed and no traceback exists.
func (d *Decoder) GetBestPath(useFinalProbs bool) (lat *Lattice, ok bool) {
	iter, finalCost, err := d.BestPathEnd(useFinalProbs)
	if err != nil {
		panic(err)
	}
	if iter.Done() {
		return nil, false
	}

	var arcs []LatticeArc
	for !iter.Done() {
		wasBackpointed := iter.Tok.Backpointer != nil
		next, arc, err := d.TraceBackBestPath(iter)
		if err != nil {
			panic(err)
		}
		if wasBackpointed {
			arcs = append(arcs, arc)
		}
		iter = next
	}
	// arcs were collected from the final state backward; reverse them
	// so index 0 leaves the start state.
	for i, j := 0, len(arcs)-1; i < j; i, j = i+1, j-1 {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}

	lat = &Lattice{Start: 0, States: make([]LatticeState, len(arcs)+1)}
	for i := range lat.States {
		lat.States[i].Final = math.Inf(1)
	}
	for i, arc := range arcs {
		arc.Dst = i + 1
		lat.States[i].Arcs = []LatticeArc{arc}
	}
	lat.States[len(arcs)].Final = finalCost
	logging.LogLatticeEmit("", "best_path", len(lat.States), len(arcs))
	return lat, true
}

// GetRawLattice emits every surviving token as a lattice state and
// every surviving forward link as an arc, ordering each frame's
// states via TopSortTokens so the overall start state lands at index
// 0. Final weights on the last frame come from the final-cost map (or
// zero for every state when not using final probs).
func (d *Decoder) GetRawLattice(useFinalProbs bool) (*Lattice, bool) {
	if d.decodingFinalized && !useFinalProbs {
		panic(fmt.Errorf("%w: GetRawLattice(useFinalProbs=false) is invalid after FinalizeDecoding", ErrPrecondition))
	}
	numFrames := d.NumFramesDecoded()
	if numFrames == 0 || len(d.tokenNet) == 0 {
		return nil, false
	}

	tokenState := make(map[*token.Token]int)
	var lat Lattice
	for f := 0; f <= numFrames; f++ {
		sorted, err := TopSortTokens(d.tokenNet[f].Head)
		if err != nil {
			panic(err)
		}
		for _, tok := range sorted {
			if tok == nil {
				continue
			}
			tokenState[tok] = len(lat.States)
			lat.States = append(lat.States, LatticeState{Final: math.Inf(1)})
		}
	}
	if len(lat.States) == 0 {
		return nil, false
	}

	finalCosts := d.finalCosts
	if !d.decodingFinalized {
		finalCosts, _, _ = d.computeFinalCosts(true)
	}

	for f := 0; f <= numFrames; f++ {
		for tok := d.tokenNet[f].Head; tok != nil; tok = tok.Next {
			srcID, ok := tokenState[tok]
			if !ok {
				continue
			}
			for link := tok.Links; link != nil; link = link.Next {
				dstID, ok := tokenState[link.DstTok]
				if !ok {
					continue
				}
				ac := link.AcousticCost
				if link.ILabel != 0 {
					ac -= d.costOffset[f]
				}
				lat.States[srcID].Arcs = append(lat.States[srcID].Arcs, LatticeArc{
					ILabel: link.ILabel, OLabel: link.OLabel,
					GraphCost: link.GraphCost, AcousticCost: ac, Dst: dstID,
				})
			}
			if f == numFrames {
				lat.States[srcID].Final = finalWeightFor(tok, useFinalProbs, finalCosts)
			}
		}
	}
	logging.LogLatticeEmit("", "raw", len(lat.States), numArcs(&lat))
	return &lat, true
}

// GetRawLatticePruned is a BFS from the start token that only follows
// links whose destination has extra_cost < beam. Traversing an
// emitting arc advances the running frame index used to pick the
// right cost offset.
func (d *Decoder) GetRawLatticePruned(useFinalProbs bool, beam float64) (*Lattice, bool) {
	if d.decodingFinalized && !useFinalProbs {
		panic(fmt.Errorf("%w: GetRawLatticePruned(useFinalProbs=false) is invalid after FinalizeDecoding", ErrPrecondition))
	}
	numFrames := d.NumFramesDecoded()
	if numFrames == 0 || len(d.tokenNet) == 0 || d.tokenNet[0].Head == nil {
		return nil, false
	}

	finalCosts := d.finalCosts
	if !d.decodingFinalized {
		finalCosts, _, _ = d.computeFinalCosts(true)
	}

	type queued struct {
		tok   *token.Token
		frame int
	}

	start := d.tokenNet[0].Head
	tokenState := map[*token.Token]int{start: 0}
	lat := &Lattice{States: []LatticeState{{Final: math.Inf(1)}}}
	queue := []queued{{start, 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		srcID := tokenState[item.tok]

		for link := item.tok.Links; link != nil; link = link.Next {
			if link.DstTok.ExtraCost >= beam {
				continue
			}
			nextFrame := item.frame
			ac := link.AcousticCost
			if link.ILabel != 0 {
				ac -= d.costOffset[item.frame]
				nextFrame++
			}
			dstID, seen := tokenState[link.DstTok]
			if !seen {
				dstID = len(lat.States)
				tokenState[link.DstTok] = dstID
				lat.States = append(lat.States, LatticeState{Final: math.Inf(1)})
				queue = append(queue, queued{link.DstTok, nextFrame})
			}
			lat.States[srcID].Arcs = append(lat.States[srcID].Arcs, LatticeArc{
				ILabel: link.ILabel, OLabel: link.OLabel,
				GraphCost: link.GraphCost, AcousticCost: ac, Dst: dstID,
			})
		}
		if item.frame == numFrames {
			lat.States[srcID].Final = finalWeightFor(item.tok, useFinalProbs, finalCosts)
		}
	}
	logging.LogLatticeEmit("", "raw_pruned", len(lat.States), numArcs(lat))
	return lat, true
}

// numArcs sums the outgoing arcs across every state in a lattice.
func numArcs(l *Lattice) int {
	n := 0
	for _, st := range l.States {
		n += len(st.Arcs)
	}
	return n
}

func finalWeightFor(tok *token.Token, useFinalProbs bool, finalCosts map[*token.Token]float64) float64 {
	if !useFinalProbs {
		return 0.0
	}
	if len(finalCosts) == 0 {
		return 0.0
	}
	if fc, ok := finalCosts[tok]; ok {
		return fc
	}
	return math.Inf(1)
}

// MarshalBinary serializes the lattice into a compact fixed-field
// format for persistence (see internal/latticestore).
func (l *Lattice) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(l.Start)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(l.States))); err != nil {
		return nil, err
	}
	for _, st := range l.States {
		if err := binary.Write(&buf, binary.BigEndian, st.Final); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(st.Arcs))); err != nil {
			return nil, err
		}
		for _, a := range st.Arcs {
			if err := binary.Write(&buf, binary.BigEndian, a.ILabel); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, a.OLabel); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, a.GraphCost); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, a.AcousticCost); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, uint32(a.Dst)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reverses MarshalBinary.
func (l *Lattice) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var start, numStates uint32
	if err := binary.Read(r, binary.BigEndian, &start); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &numStates); err != nil {
		return err
	}
	l.Start = int(start)
	l.States = make([]LatticeState, numStates)
	for i := range l.States {
		if err := binary.Read(r, binary.BigEndian, &l.States[i].Final); err != nil {
			return err
		}
		var numArcs uint32
		if err := binary.Read(r, binary.BigEndian, &numArcs); err != nil {
			return err
		}
		l.States[i].Arcs = make([]LatticeArc, numArcs)
		for j := range l.States[i].Arcs {
			a := &l.States[i].Arcs[j]
			if err := binary.Read(r, binary.BigEndian, &a.ILabel); err != nil {
				return err
			}
			if err := binary.Read(r, binary.BigEndian, &a.OLabel); err != nil {
				return err
			}
			if err := binary.Read(r, binary.BigEndian, &a.GraphCost); err != nil {
				return err
			}
			if err := binary.Read(r, binary.BigEndian, &a.AcousticCost); err != nil {
				return err
			}
			var dst uint32
			if err := binary.Read(r, binary.BigEndian, &dst); err != nil {
				return err
			}
			a.Dst = int(dst)
		}
	}
	return nil
}
