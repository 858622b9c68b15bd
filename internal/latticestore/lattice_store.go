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

package latticestore

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/loqalabs/loqa-decoder/internal/decoder"
)

// zstdCodec identifies the compression scheme recorded alongside a
// stored lattice blob, so a future codec change can be detected.
const zstdCodec = "zstd"

// Stats is the per-utterance summary stored next to a lattice.
type Stats struct {
	NumFramesDecoded  int
	FinalRelativeCost float64
	ReachedFinal      bool
	DecodeDuration    time.Duration
	CreatedAt         time.Time
}

// Store persists finalized lattices and their decode statistics.
type Store struct {
	db *Database
}

// NewStore wraps an already-open Database.
func NewStore(db *Database) *Store {
	return &Store{db: db}
}

// SaveFinalLattice serializes lat, compresses it with zstd, and
// upserts it and stats under sessionID.
func (s *Store) SaveFinalLattice(sessionID string, lat *decoder.Lattice, stats Stats) error {
	raw, err := lat.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal lattice: %w", err)
	}

	compressed, err := compress(raw)
	if err != nil {
		return fmt.Errorf("failed to compress lattice: %w", err)
	}

	tx, err := s.db.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	reachedFinal := 0
	if stats.ReachedFinal {
		reachedFinal = 1
	}

	if _, err := tx.Exec(`
		INSERT INTO utterances (session_id, num_frames, final_relative_cost, reached_final, decode_duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			num_frames = excluded.num_frames,
			final_relative_cost = excluded.final_relative_cost,
			reached_final = excluded.reached_final,
			decode_duration_ms = excluded.decode_duration_ms,
			created_at = excluded.created_at`,
		sessionID, stats.NumFramesDecoded, stats.FinalRelativeCost, reachedFinal,
		stats.DecodeDuration.Milliseconds(), stats.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert utterance stats: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO lattice_blobs (session_id, codec, data)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET codec = excluded.codec, data = excluded.data`,
		sessionID, zstdCodec, compressed,
	); err != nil {
		return fmt.Errorf("failed to upsert lattice blob: %w", err)
	}

	return tx.Commit()
}

// LoadFinalLattice reverses SaveFinalLattice.
func (s *Store) LoadFinalLattice(sessionID string) (*decoder.Lattice, Stats, error) {
	var stats Stats
	var reachedFinal int
	var decodeDurationMs, createdAtUnix int64

	row := s.db.DB().QueryRow(`
		SELECT num_frames, final_relative_cost, reached_final, decode_duration_ms, created_at
		FROM utterances WHERE session_id = ?`, sessionID)
	if err := row.Scan(&stats.NumFramesDecoded, &stats.FinalRelativeCost, &reachedFinal, &decodeDurationMs, &createdAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, Stats{}, fmt.Errorf("no lattice stored for session %q", sessionID)
		}
		return nil, Stats{}, fmt.Errorf("failed to load utterance stats: %w", err)
	}
	stats.ReachedFinal = reachedFinal != 0
	stats.DecodeDuration = time.Duration(decodeDurationMs) * time.Millisecond
	stats.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	var codec string
	var compressed []byte
	if err := s.db.DB().QueryRow(`SELECT codec, data FROM lattice_blobs WHERE session_id = ?`, sessionID).Scan(&codec, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, Stats{}, fmt.Errorf("no lattice blob stored for session %q", sessionID)
		}
		return nil, Stats{}, fmt.Errorf("failed to load lattice blob: %w", err)
	}
	if codec != zstdCodec {
		return nil, Stats{}, fmt.Errorf("unsupported lattice codec %q", codec)
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to decompress lattice: %w", err)
	}

	lat := &decoder.Lattice{}
	if err := lat.UnmarshalBinary(raw); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to unmarshal lattice: %w", err)
	}
	return lat, stats, nil
}

// DeleteUtterance removes a session's stats and lattice blob.
func (s *Store) DeleteUtterance(sessionID string) error {
	_, err := s.db.DB().Exec(`DELETE FROM utterances WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete utterance: %w", err)
	}
	return nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
