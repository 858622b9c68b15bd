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

// Command decode runs one utterance through the beam-search decoder:
// it loads a static decoding graph from JSON, reads acoustic
// log-likelihood frames from stdin as framewire frames, and decodes
// to completion, persisting the resulting lattice and publishing the
// outcome. Loading a real, determinized WFST is out of scope here;
// this driver exists to exercise the decoder end to end, not to
// replace a production graph-compilation pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/loqalabs/loqa-decoder/internal/acoustic"
	"github.com/loqalabs/loqa-decoder/internal/config"
	"github.com/loqalabs/loqa-decoder/internal/decoder"
	"github.com/loqalabs/loqa-decoder/internal/framewire"
	"github.com/loqalabs/loqa-decoder/internal/graphfst"
	"github.com/loqalabs/loqa-decoder/internal/latticestore"
	"github.com/loqalabs/loqa-decoder/internal/logging"
	"github.com/loqalabs/loqa-decoder/internal/messaging"
	"github.com/loqalabs/loqa-decoder/internal/session"
)

// ackSessionID identifies this process's single decode session on the
// framewire ack channel. A CLI run decodes one utterance at a time, so
// a fixed id is sufficient; a server fielding concurrent sessions
// would assign one per connection instead.
const ackSessionID = 1

// graphArc mirrors graphfst.Arc for JSON decoding.
type graphArc struct {
	Src    int32   `json:"src"`
	ILabel int32   `json:"ilabel"`
	OLabel int32   `json:"olabel"`
	Weight float64 `json:"weight"`
	Dst    int32   `json:"dst"`
}

type graphFile struct {
	Start  int32              `json:"start"`
	Arcs   []graphArc         `json:"arcs"`
	Finals map[string]float64 `json:"finals"`
}

// graphCacheSize bounds the number of states whose arc fan-out
// CachedGraph keeps warm; a small JSON graph never needs more, and a
// larger compiled one would size this from its state count instead.
const graphCacheSize = 4096

func main() {
	if err := logging.Initialize(); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	graphPath := getEnv("DECODER_GRAPH_PATH", "")
	if graphPath == "" {
		log.Fatalf("DECODER_GRAPH_PATH must name a JSON graph file")
	}
	g, err := loadStaticGraph(graphPath)
	if err != nil {
		log.Fatalf("failed to load graph: %v", err)
	}
	cachedGraph := graphfst.NewCachedGraph(g, graphCacheSize)

	dec, err := decoder.New(cachedGraph, nil, cfg.Decoder)
	if err != nil {
		log.Fatalf("failed to construct decoder: %v", err)
	}

	lik, err := readLoglikesFromStdin()
	if err != nil {
		log.Fatalf("failed to read acoustic frames: %v", err)
	}

	db, err := latticestore.NewDatabase(latticestore.DatabaseConfig{Path: cfg.Decoder.DBPath})
	var store *latticestore.Store
	if err != nil {
		logging.LogError(err, "lattice persistence disabled: failed to open database")
	} else {
		defer db.Close()
		store = latticestore.NewStore(db)
	}

	var pub *messaging.Publisher
	candidate := messaging.NewPublisher(cfg.Decoder.NATSURL)
	if err := candidate.Connect(); err != nil {
		logging.LogError(err, "event publishing disabled: failed to connect to nats")
	} else {
		defer candidate.Close()
		pub = candidate
	}

	sess := session.New(dec, lik, store, pub, cfg.Decoder.LogEveryNFrames)
	sess.OnFrameAdvance = writeAckFrame
	result, err := sess.Run(context.Background())
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}

	// Ack frames share stdout with this summary line; keep the summary
	// off the wire by writing it to stderr instead.
	fmt.Fprintf(os.Stderr, "session=%s frames=%d reached_final=%t final_relative_cost=%v duration=%s\n",
		result.SessionID, result.NumFramesDecoded, result.ReachedFinal,
		result.FinalRelativeCost, result.DecodeDuration)
}

func loadStaticGraph(path string) (*graphfst.StaticGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse graph json: %w", err)
	}

	g := graphfst.NewStaticGraph(graphfst.State(gf.Start))
	for _, a := range gf.Arcs {
		g.AddArc(graphfst.State(a.Src), graphfst.Arc{
			ILabel: a.ILabel, OLabel: a.OLabel, Weight: a.Weight, Dst: graphfst.State(a.Dst),
		})
	}
	for stateStr, cost := range gf.Finals {
		var state int32
		if _, err := fmt.Sscanf(stateStr, "%d", &state); err != nil {
			return nil, fmt.Errorf("invalid final-state key %q: %w", stateStr, err)
		}
		g.SetFinal(graphfst.State(state), cost)
	}
	return g, nil
}

// readLoglikesFromStdin reads framewire frames until FrameTypeEnd,
// decoding each FrameTypeLoglikes payload into one row of a
// MatrixLikelihood.
func readLoglikesFromStdin() (*acoustic.MatrixLikelihood, error) {
	lik := acoustic.NewMatrixLikelihood(nil, false)
	header := make([]byte, framewire.HeaderSize)

	for {
		if _, err := io.ReadFull(os.Stdin, header); err != nil {
			if err == io.EOF {
				lik.MarkLast()
				return lik, nil
			}
			return nil, fmt.Errorf("failed to read frame header: %w", err)
		}
		frame, err := readRemainingFrame(header)
		if err != nil {
			return nil, err
		}

		switch frame.Type {
		case framewire.FrameTypeLoglikes:
			vals, err := framewire.DecodeLoglikes(frame.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode loglikes frame: %w", err)
			}
			row := make([]float64, len(vals))
			for i, v := range vals {
				row[i] = float64(v)
			}
			lik.Append(row)
		case framewire.FrameTypeEnd:
			lik.MarkLast()
			return lik, nil
		}
	}
}

func readRemainingFrame(header []byte) (*framewire.Frame, error) {
	lengthHi := header[6]
	lengthLo := header[7]
	length := int(lengthHi)<<8 | int(lengthLo)

	buf := make([]byte, framewire.HeaderSize+length)
	copy(buf, header)
	if length > 0 {
		if _, err := io.ReadFull(os.Stdin, buf[framewire.HeaderSize:]); err != nil {
			return nil, fmt.Errorf("failed to read frame payload: %w", err)
		}
	}
	return framewire.DeserializeFrame(buf)
}

// writeAckFrame serializes a FrameTypeAck frame carrying frame and
// cutoff and writes it to stdout, acknowledging the processed frame
// back over the same wire the acoustic loglikes arrived on.
func writeAckFrame(frame int, cutoff float64) {
	payload := framewire.EncodeAck(uint32(frame), cutoff)
	f := framewire.NewFrame(framewire.FrameTypeAck, ackSessionID, uint32(frame), uint64(time.Now().UnixNano()), payload)
	data, err := f.Serialize()
	if err != nil {
		logging.LogError(err, "failed to serialize ack frame")
		return
	}
	if _, err := os.Stdout.Write(data); err != nil {
		logging.LogError(err, "failed to write ack frame")
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
