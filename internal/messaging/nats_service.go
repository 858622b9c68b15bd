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

// Package messaging announces decode outcomes over NATS so other
// services (transcript stores, dashboards) don't need to poll
// internal/latticestore directly.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-decoder/internal/logging"
)

// Publisher announces decode completion and search-collapse events.
type Publisher struct {
	conn *nats.Conn
	url  string
}

// CompletedEvent is published when a session finalizes with at least
// one surviving token.
type CompletedEvent struct {
	SessionID         string  `json:"session_id"`
	NumFramesDecoded  int     `json:"num_frames_decoded"`
	FinalRelativeCost float64 `json:"final_relative_cost"`
	ReachedFinal      bool    `json:"reached_final"`
	DecodeDurationMs  int64   `json:"decode_duration_ms"`
	Timestamp         int64   `json:"timestamp"`
}

// CollapsedEvent is published the first time a session's active set
// empties out mid-utterance.
type CollapsedEvent struct {
	SessionID string `json:"session_id"`
	Frame     int    `json:"frame"`
	Timestamp int64  `json:"timestamp"`
}

// NATS subjects for decode lifecycle events.
const (
	SubjectDecodeCompleted = "loqa.decode.completed"
	SubjectDecodeCollapsed = "loqa.decode.collapsed"
)

// NewPublisher returns a Publisher configured to dial url once
// Connect is called.
func NewPublisher(url string) *Publisher {
	if url == "" {
		url = "nats://localhost:4222"
	}
	return &Publisher{url: url}
}

// Connect establishes the NATS connection, retrying indefinitely on
// disconnect.
func (p *Publisher) Connect() error {
	opts := []nats.Option{
		nats.Name("loqa-decoder"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if logging.Logger != nil {
				logging.Logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if logging.Logger != nil {
				logging.Logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}
		}),
	}

	conn, err := nats.Connect(p.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	p.conn = conn
	return nil
}

// PublishCompleted announces that a session finished decoding.
func (p *Publisher) PublishCompleted(event CompletedEvent) error {
	if p.conn == nil {
		return fmt.Errorf("nats connection not established")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completed event: %w", err)
	}
	if err := p.conn.Publish(SubjectDecodeCompleted, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectDecodeCompleted, err)
	}
	return nil
}

// PublishCollapsed announces that a session's search collapsed.
func (p *Publisher) PublishCollapsed(event CollapsedEvent) error {
	if p.conn == nil {
		return fmt.Errorf("nats connection not established")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal collapsed event: %w", err)
	}
	if err := p.conn.Publish(SubjectDecodeCollapsed, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectDecodeCollapsed, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// IsConnected reports whether the publisher currently holds a live
// connection.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
