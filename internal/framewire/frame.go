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

// Package framewire is the binary wire protocol a streaming decoding
// session speaks: acoustic log-likelihood vectors flow in one frame
// per audio chunk, an end-of-utterance marker closes the stream, and
// the decoder acknowledges each processed frame with its resulting
// pruning cutoff.
package framewire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// FrameType identifies the payload carried by a Frame.
type FrameType uint8

const (
	// FrameTypeLoglikes carries one frame's acoustic log-likelihood
	// vector as big-endian float32 samples, one per input label.
	FrameTypeLoglikes FrameType = 0x01
	// FrameTypeEnd marks the end of the utterance; no further
	// FrameTypeLoglikes frames follow on this session.
	FrameTypeEnd FrameType = 0x02
	// FrameTypeAck is sent back by the decoder after each processed
	// frame, carrying the frame index and the pruning cutoff it used.
	FrameTypeAck FrameType = 0x10
)

// Frame is one message on the wire.
type Frame struct {
	Type      FrameType
	SessionID uint32
	Sequence  uint32
	Timestamp uint64
	Data      []byte
}

// FrameHeader is the fixed-size (24 byte) frame header.
type FrameHeader struct {
	Magic     uint32
	Type      FrameType
	Reserved  uint8
	Length    uint16
	SessionID uint32
	Sequence  uint32
	Timestamp uint64
}

const (
	// FrameMagic identifies this protocol on the wire ("LOQD").
	FrameMagic = 0x4C4F5144

	// MaxFrameSize bounds a single frame, header included.
	MaxFrameSize = 65536
	HeaderSize   = 24
	MaxDataSize  = MaxFrameSize - HeaderSize
)

// Serialize converts a frame to binary format.
func (f *Frame) Serialize() ([]byte, error) {
	if len(f.Data) > MaxDataSize {
		return nil, fmt.Errorf("frame data too large: %d bytes (max %d)", len(f.Data), MaxDataSize)
	}

	header := FrameHeader{
		Magic:     FrameMagic,
		Type:      f.Type,
		Reserved:  0,
		Length:    uint16(len(f.Data)), //nolint:gosec // bounds checked above
		SessionID: f.SessionID,
		Sequence:  f.Sequence,
		Timestamp: f.Timestamp,
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write frame header: %w", err)
	}
	if len(f.Data) > 0 {
		if _, err := buf.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write frame data: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DeserializeFrame converts binary data back to a Frame.
func DeserializeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame too small: %d bytes (min %d)", len(data), HeaderSize)
	}

	buf := bytes.NewReader(data)
	var header FrameHeader
	if err := binary.Read(buf, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	if header.Magic != FrameMagic {
		return nil, fmt.Errorf("invalid frame magic: 0x%08X (expected 0x%08X)", header.Magic, uint32(FrameMagic))
	}

	expectedSize := HeaderSize + int(header.Length)
	if len(data) != expectedSize {
		return nil, fmt.Errorf("frame size mismatch: got %d bytes, expected %d", len(data), expectedSize)
	}

	frame := &Frame{
		Type:      header.Type,
		SessionID: header.SessionID,
		Sequence:  header.Sequence,
		Timestamp: header.Timestamp,
	}
	if header.Length > 0 {
		frame.Data = make([]byte, header.Length)
		if _, err := io.ReadFull(buf, frame.Data); err != nil {
			return nil, fmt.Errorf("failed to read frame data: %w", err)
		}
	}
	return frame, nil
}

// NewFrame constructs a frame with the given fields.
func NewFrame(frameType FrameType, sessionID, sequence uint32, timestamp uint64, data []byte) *Frame {
	return &Frame{Type: frameType, SessionID: sessionID, Sequence: sequence, Timestamp: timestamp, Data: data}
}

// ValidateFrame rejects structurally unsound frames before they reach
// a decoding session.
func ValidateFrame(f *Frame) error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if len(f.Data) > MaxDataSize {
		return fmt.Errorf("frame data too large: %d bytes (max %d)", len(f.Data), MaxDataSize)
	}
	if !isValidFrameType(f.Type) {
		return fmt.Errorf("invalid frame type: 0x%02X", uint8(f.Type))
	}
	if f.SessionID == 0 {
		return fmt.Errorf("invalid session id: cannot be zero")
	}
	if f.Type == FrameTypeLoglikes && len(f.Data)%4 != 0 {
		return fmt.Errorf("loglikes payload length %d is not a multiple of 4 (float32 samples)", len(f.Data))
	}
	return nil
}

func isValidFrameType(t FrameType) bool {
	switch t {
	case FrameTypeLoglikes, FrameTypeEnd, FrameTypeAck:
		return true
	default:
		return false
	}
}

// EncodeLoglikes packs one frame's log-likelihood vector as
// FrameTypeLoglikes payload bytes.
func EncodeLoglikes(vals []float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeLoglikes reverses EncodeLoglikes.
func DecodeLoglikes(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("loglikes payload length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeAck packs a decoder acknowledgement: the frame index it just
// processed, followed by the pruning cutoff it computed for that
// frame.
func EncodeAck(frameIndex uint32, nextCutoff float64) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], frameIndex)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(nextCutoff))
	return buf
}

// DecodeAck reverses EncodeAck.
func DecodeAck(data []byte) (frameIndex uint32, nextCutoff float64, err error) {
	if len(data) != 12 {
		return 0, 0, fmt.Errorf("ack payload length %d, want 12", len(data))
	}
	frameIndex = binary.BigEndian.Uint32(data[0:4])
	nextCutoff = math.Float64frombits(binary.BigEndian.Uint64(data[4:12]))
	return frameIndex, nextCutoff, nil
}

// Size returns the total serialized size of the frame.
func (f *Frame) Size() int {
	return HeaderSize + len(f.Data)
}
