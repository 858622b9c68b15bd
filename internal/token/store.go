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

// Package token owns every Token and ForwardLink allocated during a
// decode and the frame-indexed lists that reference them. No other
// package is allowed to allocate or free either type; everyone else
// holds non-owning pointers.
package token

import "sync"

// Token is one search hypothesis: a state reached at a particular
// frame, with the best-known forward cost to reach it.
type Token struct {
	TotalCost   float64
	ExtraCost   float64
	Links       *ForwardLink
	Next        *Token
	Backpointer *Token
}

// ForwardLink is one retained arc from a source token to a destination
// token. The lattice is reconstructed entirely from these.
type ForwardLink struct {
	DstTok       *Token
	ILabel       int32
	OLabel       int32
	GraphCost    float64
	AcousticCost float64
	Next         *ForwardLink
}

// List is one frame's slot in the token network: the head of that
// frame's token list plus the dirty flags that drive incremental
// pruning.
type List struct {
	Head                  *Token
	MustPruneForwardLinks bool
	MustPruneTokens       bool
}

// NewList returns a frame slot with both dirty flags set, matching
// the original decoder's default of always considering a fresh frame
// prunable until proven otherwise.
func NewList() *List {
	return &List{MustPruneForwardLinks: true, MustPruneTokens: true}
}

// Store owns allocation and destruction of every Token and
// ForwardLink. Allocation is pool-backed; deletion is explicit
// because these objects form a graph with shared destinations and are
// not reference counted — liveness is controlled entirely by the
// pruner.
type Store struct {
	tokenPool sync.Pool
	linkPool  sync.Pool
	numToks   int
}

// NewStore returns an empty, ready-to-use Store.
func NewStore() *Store {
	s := &Store{}
	s.tokenPool.New = func() interface{} { return new(Token) }
	s.linkPool.New = func() interface{} { return new(ForwardLink) }
	return s
}

// NewToken allocates a token, links it into the caller-supplied frame
// list via `next`, and returns it. It does not touch num_toks — the
// caller increments that once the token is also indexed, matching
// FindOrAddToken's contract in the original decoder.
func (s *Store) NewToken(totalCost, extraCost float64, links *ForwardLink, next, backpointer *Token) *Token {
	t := s.tokenPool.Get().(*Token)
	t.TotalCost = totalCost
	t.ExtraCost = extraCost
	t.Links = links
	t.Next = next
	t.Backpointer = backpointer
	return t
}

// DeleteToken deletes a token's outgoing links then returns the token
// itself to the pool. Callers are responsible for unlinking it from
// whatever frame list it belonged to.
func (s *Store) DeleteToken(t *Token) {
	s.DeleteLinksFrom(t)
	*t = Token{}
	s.tokenPool.Put(t)
}

// NewLink allocates a forward link.
func (s *Store) NewLink(dst *Token, ilabel, olabel int32, graphCost, acousticCost float64, next *ForwardLink) *ForwardLink {
	l := s.linkPool.Get().(*ForwardLink)
	l.DstTok = dst
	l.ILabel = ilabel
	l.OLabel = olabel
	l.GraphCost = graphCost
	l.AcousticCost = acousticCost
	l.Next = next
	return l
}

// DeleteLink returns a single link to the pool.
func (s *Store) DeleteLink(l *ForwardLink) {
	*l = ForwardLink{}
	s.linkPool.Put(l)
}

// DeleteLinksFrom deletes every outgoing link of tok and clears its
// link list. Used both on teardown and by the non-emitting expander,
// which must regenerate a revisited token's links from scratch.
func (s *Store) DeleteLinksFrom(tok *Token) {
	for l := tok.Links; l != nil; {
		next := l.Next
		s.DeleteLink(l)
		l = next
	}
	tok.Links = nil
}

// Clear deletes every token (and its links) reachable from any of the
// supplied frame lists, then resets num_toks to zero. Used on
// InitDecoding and on Store teardown.
func (s *Store) Clear(lists []*List) {
	for _, fl := range lists {
		for tok := fl.Head; tok != nil; {
			next := tok.Next
			s.DeleteToken(tok)
			tok = next
		}
		fl.Head = nil
	}
	s.numToks = 0
}

// NumToks returns the number of live tokens tracked by the store.
func (s *Store) NumToks() int { return s.numToks }

// IncToks and DecToks let callers (FindOrAddToken, PruneTokenList)
// keep num_toks in sync with the frame lists, since the store itself
// does not walk them on every mutation.
func (s *Store) IncToks() { s.numToks++ }
func (s *Store) DecToks() { s.numToks-- }
