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

// Package activeindex maps a search state to the unique live token at
// the current frame. It supports O(1) find/insert and a bulk Clear
// that hands back an iterable, order-preserving snapshot of what was
// just cleared — the previous frame's active set, consumed by the
// cutoff computer and the emitting/non-emitting expanders.
package activeindex

import "github.com/loqalabs/loqa-decoder/internal/token"

// Entry is one active-index record: the search state it was inserted
// under, the token it maps to, and a link to the next-oldest entry so
// a Clear() snapshot can be walked without touching the map.
type Entry struct {
	State uint64
	Tok   *token.Token
	Tail  *Entry
}

// Index is a hash-list: O(1) lookup via the map, insertion order
// preserved via the Entry.Tail chain so Clear() can return a
// snapshot cheaply.
type Index struct {
	m    map[uint64]*Entry
	head *Entry
	size int
}

// New returns an empty index.
func New() *Index {
	return &Index{m: make(map[uint64]*Entry)}
}

// SetSize resizes the underlying table's hint. Go maps grow on their
// own, so this only pre-reserves capacity to avoid rehashing during a
// frame's insert burst — same intent as the original's PossiblyResizeHash.
func (ix *Index) SetSize(n int) {
	if n <= len(ix.m) {
		return
	}
	grown := make(map[uint64]*Entry, n)
	for k, v := range ix.m {
		grown[k] = v
	}
	ix.m = grown
	if n > ix.size {
		ix.size = n
	}
}

// Size reports the current table capacity hint used by hash_ratio
// resizing decisions.
func (ix *Index) Size() int { return ix.size }

// Find returns the entry for state, or nil.
func (ix *Index) Find(state uint64) *Entry {
	return ix.m[state]
}

// Insert adds state -> tok to the index and prepends it to the
// snapshot chain.
func (ix *Index) Insert(state uint64, tok *token.Token) *Entry {
	e := &Entry{State: state, Tok: tok, Tail: ix.head}
	ix.head = e
	ix.m[state] = e
	if len(ix.m) > ix.size {
		ix.size = len(ix.m)
	}
	return e
}

// List returns the head of the currently live entry chain without
// clearing the index, for callers that need to enumerate the active
// set in place (the non-emitting expander's work-queue seed).
func (ix *Index) List() *Entry {
	return ix.head
}

// Clear empties the table and returns the head of the detached
// snapshot chain (walk via Entry.Tail). The index is empty and ready
// for the next frame's inserts immediately after this call.
func (ix *Index) Clear() *Entry {
	head := ix.head
	ix.head = nil
	ix.m = make(map[uint64]*Entry, len(ix.m))
	return head
}

// Delete releases a snapshot entry's storage. It is a no-op beyond
// bookkeeping since Go entries are garbage collected once
// unreferenced; kept as an explicit call so callers mirror the
// original decoder's release-as-you-go traversal.
func (ix *Index) Delete(e *Entry) {
	e.Tok = nil
	e.Tail = nil
}
