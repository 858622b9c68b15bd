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

import "github.com/loqalabs/loqa-decoder/internal/graphfst"

// SearchState is either a plain WFST state id, or a composed
// (la_state, lm_state) pair when an LM-diff oracle is in play. It
// must hash well and be recoverable into its two halves; both fit in
// 32 bits so they are packed into one uint64.
type SearchState = uint64

// ComposeState packs a graph state and an LM-diff state into one
// hashable SearchState. When no LM-diff oracle is composed, callers
// pass lm = 0.
func ComposeState(la, lm graphfst.State) SearchState {
	return uint64(uint32(la))<<32 | uint64(uint32(lm))
}

// SplitState recovers the two halves of a composed SearchState.
func SplitState(s SearchState) (la, lm graphfst.State) {
	return graphfst.State(int32(s >> 32)), graphfst.State(int32(s))
}
