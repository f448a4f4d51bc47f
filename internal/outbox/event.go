// Package outbox implements the append-only event log and the per-consumer
// delivery rows that realize at-least-once, multi-consumer event delivery
// (the transactional outbox pattern).
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an append-only record in the event log. Payload is opaque JSON;
// callers deserialize it against a registered constructor keyed by EventType.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`

	// DeliveryID is populated only on events returned from a claim; it is
	// not a column of the events table.
	DeliveryID uuid.UUID `json:"delivery_id,omitempty"`
}

// DeliveryStatus is the lifecycle state of one (event, consumer_group) row.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusClaimed   DeliveryStatus = "claimed"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusSkipped   DeliveryStatus = "skipped"
)

// IsTerminal reports whether no further transitions are expected.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Delivery is one row representing "this event, for this consumer group".
type Delivery struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	ConsumerGroup string
	Status        DeliveryStatus
	RoutingKey    *string
	RetryCount    int
	ClaimedAt     *time.Time
	DeliveredAt   *time.Time
	UpdatedAt     time.Time
	DeliveryError *string
}

// NewEvent builds an Event ready for persistence. Payload must already be a
// JSON-serializable value; callers typically pass a domain event struct.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}
