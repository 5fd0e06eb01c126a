// Package events publishes domain events to NATS.
//
// Events are published to subjects of the form:
//
//	tradetally.{type}
//
// for example tradetally.trade.created. Publishing is best effort; callers
// log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubjectPrefix is prepended to every event type.
const SubjectPrefix = "tradetally."

// Event types.
const (
	TypeTradeCreated      = "trade.created"
	TypeTradeDeleted      = "trade.deleted"
	TypeMembershipChanged = "membership.changed"
)

// Event is the JSON envelope published for every domain change.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	UserID     string          `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh ID. data is marshaled to JSON.
func New(eventType, userID string, data any) (Event, error) {
	e := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal event data: %w", err)
		}
		e.Data = raw
	}
	return e, nil
}

// Subject returns the NATS subject for e.
func (e Event) Subject() string {
	return SubjectPrefix + e.Type
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() {}

var _ Publisher = NopPublisher{}
