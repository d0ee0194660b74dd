/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process broadcast events to NATS.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix prefixes the NATS subject of every forwarded event.
const SubjectPrefix = "sessioncast.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "sessioncast",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// publisher is the subset of *nats.Conn used by the bridge.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge subscribes to every event type on the in-process bus and
// republishes each payload on SubjectPrefix + event type.
type NATSBridge struct {
	bus    *events.Bus
	conn   *nats.Conn
	pub    publisher
	nodeID string
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	wg   sync.WaitGroup
}

// NewNATSBridge connects to NATS.
func NewNATSBridge(cfg NATSConfig, bus *events.Bus, logger zerolog.Logger) (*NATSBridge, error) {
	logger = logger.With().Str("component", "nats").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := newBridge(conn, bus, logger)
	b.conn = conn
	return b, nil
}

func newBridge(pub publisher, bus *events.Bus, logger zerolog.Logger) *NATSBridge {
	return &NATSBridge{
		bus:    bus,
		pub:    pub,
		nodeID: generateNodeID(),
		logger: logger,
		subs:   make(map[events.EventType]events.Subscriber),
	}
}

// Run forwards events until ctx is cancelled, then unsubscribes.
func (b *NATSBridge) Run(ctx context.Context) error {
	b.mu.Lock()
	for _, eventType := range events.AllTypes {
		sub := b.bus.Subscribe(eventType)
		b.subs[eventType] = sub
		b.wg.Add(1)
		go b.forward(eventType, sub)
	}
	b.mu.Unlock()

	b.logger.Info().Int("event_types", len(events.AllTypes)).Msg("forwarding events to nats")
	<-ctx.Done()

	b.mu.Lock()
	for eventType, sub := range b.subs {
		b.bus.Unsubscribe(eventType, sub)
		delete(b.subs, eventType)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return ctx.Err()
}

func (b *NATSBridge) forward(eventType events.EventType, sub events.Subscriber) {
	defer b.wg.Done()
	subject := SubjectPrefix + string(eventType)
	for payload := range sub {
		data, err := marshalNATSMessage(eventType, payload, b.nodeID)
		if err != nil {
			b.logger.Warn().Err(err).Str("event", string(eventType)).Msg("marshal event")
			continue
		}
		if err := b.pub.Publish(subject, data); err != nil {
			b.logger.Warn().Err(err).Str("subject", subject).Msg("publish event")
		}
	}
}

// Close flushes and closes the NATS connection.
func (b *NATSBridge) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// marshalNATSMessage converts payload to NATS message format.
func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

// unmarshalNATSMessage parses a NATS message.
func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "sessioncast"
	}
	return host + "-" + uuid.NewString()[:8]
}
