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

// Package acoustic exposes the likelihood oracle: acoustic
// log-likelihoods for (frame, input-label) pairs, and how many
// frames of audio are currently available. Feature extraction and
// neural-network evaluation live behind this interface; the only
// implementation carried here is a matrix-backed one for tests and
// offline decoding, fed incrementally by internal/framewire for
// streaming callers. A live neural acoustic model plugs in by
// implementing Likelihood; none is wired into this tree.
package acoustic

// Likelihood is the acoustic collaborator. Frame indexing is
// zero-based. The decoder negates LogLikelihood to obtain an acoustic
// cost.
type Likelihood interface {
	NumFramesReady() int
	IsLastFrame(frame int) bool
	LogLikelihood(frame int, ilabel int32) float64
}

// MatrixLikelihood serves precomputed per-frame, per-label
// log-likelihoods from a dense matrix. Column 0 (ilabel 0) is never
// queried since ilabel 0 denotes epsilon; it exists purely so ilabel
// can be used as a direct column index.
type MatrixLikelihood struct {
	frames [][]float64
	last   bool
}

// NewMatrixLikelihood wraps frames, a [][]float64 indexed
// [frame][ilabel]. last marks whether frames already contains the
// entire utterance (true) or more frames may still be appended via
// Append (false, for a streaming source).
func NewMatrixLikelihood(frames [][]float64, last bool) *MatrixLikelihood {
	return &MatrixLikelihood{frames: frames, last: last}
}

// Append adds one more frame's log-likelihood row, for a streaming
// caller that discovers frames incrementally (see internal/framewire).
func (m *MatrixLikelihood) Append(row []float64) {
	m.frames = append(m.frames, row)
}

// MarkLast records that no further frames will be appended.
func (m *MatrixLikelihood) MarkLast() { m.last = true }

func (m *MatrixLikelihood) NumFramesReady() int { return len(m.frames) }

func (m *MatrixLikelihood) IsLastFrame(frame int) bool {
	return m.last && frame == len(m.frames)-1
}

func (m *MatrixLikelihood) LogLikelihood(frame int, ilabel int32) float64 {
	return m.frames[frame][ilabel]
}
