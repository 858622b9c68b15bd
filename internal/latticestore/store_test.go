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
	"math"
	"testing"
	"time"

	"github.com/loqalabs/loqa-decoder/internal/decoder"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewInMemoryDatabase()
	if err != nil {
		t.Fatalf("NewInMemoryDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestSaveAndLoadFinalLattice_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	lat := &decoder.Lattice{
		Start: 0,
		States: []decoder.LatticeState{
			{Final: math.Inf(1), Arcs: []decoder.LatticeArc{{ILabel: 1, OLabel: 7, GraphCost: 0.5, AcousticCost: 1.5, Dst: 1}}},
			{Final: 0.0},
		},
	}
	stats := Stats{
		NumFramesDecoded:  42,
		FinalRelativeCost: 0,
		ReachedFinal:      true,
		DecodeDuration:    250 * time.Millisecond,
		CreatedAt:         time.Unix(1700000000, 0).UTC(),
	}

	if err := store.SaveFinalLattice("session-1", lat, stats); err != nil {
		t.Fatalf("SaveFinalLattice() error = %v", err)
	}

	got, gotStats, err := store.LoadFinalLattice("session-1")
	if err != nil {
		t.Fatalf("LoadFinalLattice() error = %v", err)
	}

	if got.Start != lat.Start || len(got.States) != len(lat.States) {
		t.Fatalf("lattice mismatch: got %+v, want %+v", got, lat)
	}
	if len(got.States[0].Arcs) != 1 || got.States[0].Arcs[0].OLabel != 7 {
		t.Fatalf("arc mismatch: got %+v", got.States[0].Arcs)
	}
	if gotStats.NumFramesDecoded != stats.NumFramesDecoded || !gotStats.ReachedFinal {
		t.Fatalf("stats mismatch: got %+v, want %+v", gotStats, stats)
	}
	if gotStats.DecodeDuration != stats.DecodeDuration {
		t.Fatalf("decode duration mismatch: got %v, want %v", gotStats.DecodeDuration, stats.DecodeDuration)
	}
}

func TestSaveFinalLattice_UpsertsOnRepeatedSessionID(t *testing.T) {
	store := newTestStore(t)
	lat := &decoder.Lattice{States: []decoder.LatticeState{{Final: 0}}}

	if err := store.SaveFinalLattice("s", lat, Stats{NumFramesDecoded: 1, CreatedAt: time.Unix(1, 0)}); err != nil {
		t.Fatalf("first save error = %v", err)
	}
	if err := store.SaveFinalLattice("s", lat, Stats{NumFramesDecoded: 2, CreatedAt: time.Unix(2, 0)}); err != nil {
		t.Fatalf("second save error = %v", err)
	}

	_, stats, err := store.LoadFinalLattice("s")
	if err != nil {
		t.Fatalf("LoadFinalLattice() error = %v", err)
	}
	if stats.NumFramesDecoded != 2 {
		t.Fatalf("NumFramesDecoded = %d, want 2 (upsert should replace)", stats.NumFramesDecoded)
	}
}

func TestLoadFinalLattice_MissingSessionErrors(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.LoadFinalLattice("does-not-exist"); err == nil {
		t.Fatalf("LoadFinalLattice() = nil error, want error for missing session")
	}
}
