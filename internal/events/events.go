// Package events publishes catalog and account change notifications to a
// message broker. Delivery is best effort: callers log publish failures and
// carry on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	ProductCreated  = "product.created"
	ProductUpdated  = "product.updated"
	ProductDeleted  = "product.deleted"
	UserCreated     = "user.created"
	UserUpdated     = "user.updated"
	UserDeleted     = "user.deleted"
	CatalogExported = "catalog.exported"
)

// Event is the JSON envelope written to the broker.
type Event struct {
	Type       string          `json:"type"`
	EntityID   string          `json:"entityId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event, encoding data as its payload.
func NewEvent(eventType, entityID string, data any, at time.Time) (Event, error) {
	ev := Event{Type: eventType, EntityID: entityID, OccurredAt: at.UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Handler processes one decoded event. Returning an error asks the broker
// to redeliver it.
type Handler func(ctx context.Context, ev Event) error

// Transport moves events over one broker. Implementations encode on send
// and decode on receive; undecodable deliveries are discarded, never
// redelivered.
type Transport interface {
	Send(ctx context.Context, channel string, ev Event) (string, error)
	Receive(ctx context.Context, channel string, fn Handler) error
	Close() error
}

// Publisher sends events to one channel of a transport. A Publisher without
// a transport drops everything.
type Publisher struct {
	transport Transport
	channel   string
}

func NewPublisher(transport Transport, channel string) *Publisher {
	return &Publisher{transport: transport, channel: channel}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.transport != nil
}

// Publish sends ev, returning the broker message ID.
func (p *Publisher) Publish(ctx context.Context, ev Event) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	id, err := p.transport.Send(ctx, p.channel, ev)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return id, nil
}

// Subscribe passes every event on the channel to fn until ctx is cancelled.
func (p *Publisher) Subscribe(ctx context.Context, fn Handler) error {
	if !p.Enabled() {
		return fmt.Errorf("events backend is not configured")
	}
	return p.transport.Receive(ctx, p.channel, fn)
}

// Close releases the transport connection.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.transport.Close()
}

// settlement is what a transport does with a delivery after dispatch.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDiscard
)

func encode(ev Event) ([]byte, error) {
	if ev.Type == "" {
		return nil, errors.New("event type is required")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return body, nil
}

// decode parses a delivery body. typeHint comes from broker metadata and
// fills in a body that omits its type.
func decode(body []byte, typeHint string) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		ev.Type = typeHint
	}
	if ev.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return ev, nil
}

// dispatch decodes a delivery and runs fn on it.
func dispatch(ctx context.Context, body []byte, typeHint string, fn Handler) settlement {
	ev, err := decode(body, typeHint)
	if err != nil {
		return settleDiscard
	}
	if err := fn(ctx, ev); err != nil {
		return settleRequeue
	}
	return settleAck
}
