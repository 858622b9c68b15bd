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

// Package graphfst exposes read-only access to a decoding WFST (the
// graph oracle) and, optionally, a second language-model-difference
// WFST used to rescore word arcs on the fly. Loading, determinizing
// and minimizing the underlying transducer is out of scope; this
// package only serves state fan-out and final weights to the decoder.
package graphfst

import "math"

// State identifies a state in a WFST. It is compact enough to be
// packed into decoder.SearchState alongside an LM-diff state.
type State int32

// Arc is one WFST transition. ILabel == 0 denotes an epsilon
// (non-emitting) arc.
type Arc struct {
	ILabel int32
	OLabel int32
	Weight float64
	Dst    State
}

// Graph is the graph oracle: state fan-out, arc list, final weight.
// Implementations must not contain epsilon-only cycles; if one
// exists, TopSortTokens is allowed to fail loudly.
type Graph interface {
	Start() State
	// Final returns the final cost of s, or +Inf if s is not final.
	Final(s State) float64
	// Arcs returns the outgoing arcs of s in a stable order.
	Arcs(s State) []Arc
}

// LMDiff is the optional language-model-difference oracle, queried
// only when a non-epsilon word label is crossed.
type LMDiff interface {
	Start() State
	Final(s State) float64
	// GetArc returns the LM-diff arc leaving s labeled olabel. ok is
	// false when no such arc exists, which the caller must treat as a
	// fatal input error for a well-formed backoff LM.
	GetArc(s State, olabel int32) (weight float64, newOLabel int32, next State, ok bool)
}

// StaticGraph is an in-memory Graph built from an explicit arc list,
// used for tests and for small, fully materialized decoding graphs.
type StaticGraph struct {
	start  State
	arcs   map[State][]Arc
	finals map[State]float64
}

// NewStaticGraph returns an empty graph rooted at start.
func NewStaticGraph(start State) *StaticGraph {
	return &StaticGraph{start: start, arcs: make(map[State][]Arc), finals: make(map[State]float64)}
}

// AddArc appends an arc leaving src, preserving insertion order.
func (g *StaticGraph) AddArc(src State, a Arc) {
	g.arcs[src] = append(g.arcs[src], a)
}

// SetFinal marks s as final with the given cost.
func (g *StaticGraph) SetFinal(s State, cost float64) {
	g.finals[s] = cost
}

func (g *StaticGraph) Start() State { return g.start }

func (g *StaticGraph) Final(s State) float64 {
	if c, ok := g.finals[s]; ok {
		return c
	}
	return math.Inf(1)
}

func (g *StaticGraph) Arcs(s State) []Arc {
	return g.arcs[s]
}

// StaticLMDiff is an in-memory LMDiff for tests and small rescoring
// tables.
type StaticLMDiff struct {
	start  State
	arcs   map[State]map[int32]Arc
	finals map[State]float64
}

// NewStaticLMDiff returns an empty LM-diff graph rooted at start.
func NewStaticLMDiff(start State) *StaticLMDiff {
	return &StaticLMDiff{start: start, arcs: make(map[State]map[int32]Arc), finals: make(map[State]float64)}
}

// AddArc registers the arc leaving src labeled by the LM-diff's
// incoming olabel (arc.OLabel carries the rewritten label, arc.ILabel
// is unused).
func (g *StaticLMDiff) AddArc(src State, olabel int32, a Arc) {
	if g.arcs[src] == nil {
		g.arcs[src] = make(map[int32]Arc)
	}
	g.arcs[src][olabel] = a
}

func (g *StaticLMDiff) SetFinal(s State, cost float64) {
	g.finals[s] = cost
}

func (g *StaticLMDiff) Start() State { return g.start }

func (g *StaticLMDiff) Final(s State) float64 {
	if c, ok := g.finals[s]; ok {
		return c
	}
	return math.Inf(1)
}

func (g *StaticLMDiff) GetArc(s State, olabel int32) (weight float64, newOLabel int32, next State, ok bool) {
	byLabel, present := g.arcs[s]
	if !present {
		return 0, 0, 0, false
	}
	a, present := byLabel[olabel]
	if !present {
		return 0, 0, 0, false
	}
	return a.Weight, a.OLabel, a.Dst, true
}
