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

package graphfst

import lru "github.com/hashicorp/golang-lru/v2"

// CachedGraph wraps a Graph with a fixed-size LRU of arc slices keyed
// by state. It is a pure optimization: with the same underlying
// Graph, decode output with and without the cache must be identical.
// Final and Start are cheap enough on real graphs that they pass
// straight through.
type CachedGraph struct {
	inner Graph
	cache *lru.Cache[State, []Arc]
}

// NewCachedGraph wraps inner with an LRU of the given capacity. A
// non-positive capacity is raised to 1, so the arcs of the most
// recently queried state stay cached.
func NewCachedGraph(inner Graph, capacity int) *CachedGraph {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := lru.New[State, []Arc](capacity)
	if err != nil {
		// Only possible for a non-positive size, guarded above.
		panic(err)
	}
	return &CachedGraph{inner: inner, cache: c}
}

func (g *CachedGraph) Start() State { return g.inner.Start() }

func (g *CachedGraph) Final(s State) float64 { return g.inner.Final(s) }

func (g *CachedGraph) Arcs(s State) []Arc {
	if arcs, ok := g.cache.Get(s); ok {
		return arcs
	}
	arcs := g.inner.Arcs(s)
	g.cache.Add(s, arcs)
	return arcs
}
