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

package framewire

import "testing"

func TestFrameRoundTrip(t *testing.T) {
	payload := EncodeLoglikes([]float32{-1.5, 0, 3.25})
	f := NewFrame(FrameTypeLoglikes, 42, 7, 123456789, payload)

	raw, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := DeserializeFrame(raw)
	if err != nil {
		t.Fatalf("DeserializeFrame() error = %v", err)
	}
	if got.Type != f.Type || got.SessionID != f.SessionID || got.Sequence != f.Sequence || got.Timestamp != f.Timestamp {
		t.Fatalf("round-tripped frame header mismatch: got %+v, want %+v", got, f)
	}

	vals, err := DecodeLoglikes(got.Data)
	if err != nil {
		t.Fatalf("DecodeLoglikes() error = %v", err)
	}
	want := []float32{-1.5, 0, 3.25}
	if len(vals) != len(want) {
		t.Fatalf("DecodeLoglikes() len = %d, want %d", len(vals), len(want))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("DecodeLoglikes()[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
}

func TestValidateFrame_RejectsBadPayloadAndSession(t *testing.T) {
	cases := []struct {
		name string
		f    *Frame
	}{
		{"zero session id", NewFrame(FrameTypeEnd, 0, 0, 0, nil)},
		{"misaligned loglikes payload", NewFrame(FrameTypeLoglikes, 1, 0, 0, []byte{1, 2, 3})},
		{"unknown type", NewFrame(FrameType(0xFF), 1, 0, 0, nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateFrame(tc.f); err == nil {
				t.Fatalf("ValidateFrame() = nil, want error")
			}
		})
	}
}

func TestValidateFrame_AcceptsWellFormedFrames(t *testing.T) {
	f := NewFrame(FrameTypeAck, 9, 3, 99, EncodeAck(3, -12.5))
	if err := ValidateFrame(f); err != nil {
		t.Fatalf("ValidateFrame() error = %v", err)
	}
}

func TestAckRoundTrip(t *testing.T) {
	data := EncodeAck(17, -8.25)
	frame, cutoff, err := DecodeAck(data)
	if err != nil {
		t.Fatalf("DecodeAck() error = %v", err)
	}
	if frame != 17 || cutoff != -8.25 {
		t.Fatalf("DecodeAck() = (%d, %v), want (17, -8.25)", frame, cutoff)
	}
}

func TestDeserializeFrame_RejectsBadMagic(t *testing.T) {
	f := NewFrame(FrameTypeEnd, 1, 0, 0, nil)
	raw, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	raw[0] ^= 0xFF
	if _, err := DeserializeFrame(raw); err == nil {
		t.Fatalf("DeserializeFrame() = nil error, want magic mismatch")
	}
}
