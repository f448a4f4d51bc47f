package outbox

import (
	"context"

	"github.com/google/uuid"
)

// EventLog is a thin read-only view over the event changefeed: list/count/
// get, with no claim or delivery bookkeeping. It exists for callers that
// only ever read events (an audit trail or a federation export) and have no
// business touching delivery state, so they depend on a narrower surface
// than the full Outbox.
type EventLog struct {
	repo Repository
}

// NewEventLog builds an EventLog over repo.
func NewEventLog(repo Repository) *EventLog {
	return &EventLog{repo: repo}
}

// ListEvents returns a cursor-paginated slice of the changefeed.
func (l *EventLog) ListEvents(ctx context.Context, limit int, afterCursor *uuid.UUID, types []string, newestFirst bool) ([]Event, error) {
	return l.repo.ListEvents(ctx, limit, afterCursor, types, newestFirst)
}

// Count returns the number of persisted events, optionally filtered by type.
func (l *EventLog) Count(ctx context.Context, types []string) (int, error) {
	return l.repo.Count(ctx, types)
}

// Get returns the event with the given id, or ErrEventNotFound if none
// exists.
func (l *EventLog) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	return l.repo.GetByID(ctx, id)
}
