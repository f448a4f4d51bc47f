package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Executor is satisfied by both *sql.DB and *sql.Tx. SaveWithDeliveries
// accepts one explicitly so a handler's event emission can share the same
// transaction as the business write that triggered it (the transactional
// outbox pattern) when called through a bound UnitOfWork, or run against the
// bare pool when called from startup/scheduler code with no surrounding
// transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository persists events and their per-consumer-group delivery rows.
// ClaimDeliveries, the ack operations, and ResetStaleDeliveries each run in
// their own short, self-contained transaction (per §5's "one claim or one
// ack per transaction"): a claim commits as soon as the rows are marked
// claimed, so a worker that dies mid-handler leaves a durably "claimed" row
// for the janitor to recover, rather than one a dropped connection silently
// rolls back. SaveWithDeliveries is the exception: it takes an explicit
// Executor so it can join the caller's own transaction.
type Repository interface {
	// SaveWithDeliveries inserts the event row and one pending delivery row
	// per consumer group against exec. An empty consumerGroups persists the
	// event with zero delivery rows (audit-only).
	SaveWithDeliveries(ctx context.Context, exec Executor, event Event, consumerGroups []string, routingKey *string) error

	// ClaimDeliveries selects up to limit pending, eligible delivery rows for
	// consumerGroup among eventTypes, locks them with FOR UPDATE SKIP LOCKED,
	// marks them claimed, and commits before returning. Returns the claimed
	// events (each carrying its DeliveryID) and the claim timestamp applied.
	// routingKey, when non-nil, restricts the claim to deliveries whose
	// routing_key matches exactly, used by handlers that share an event type
	// but sub-partition by backend, e.g. vector vs keyword indexing.
	ClaimDeliveries(ctx context.Context, consumerGroup string, eventTypes []string, routingKey *string, limit int) ([]Event, time.Time, error)

	// MarkDeliveryStatus sets a terminal status on a single delivery. status
	// must be one of delivered|failed|skipped.
	MarkDeliveryStatus(ctx context.Context, deliveryID uuid.UUID, status DeliveryStatus, deliveryErr *string) error

	// MarkFailedWithRetry either re-queues the delivery (status=pending,
	// retry_count+1, claimed_at cleared) or marks it terminally failed once
	// retry_count+1 reaches maxRetries.
	MarkFailedWithRetry(ctx context.Context, deliveryID uuid.UUID, deliveryErr string, maxRetries int) error

	// ResetStaleDeliveries bulk-resets claimed deliveries whose claimed_at is
	// older than timeout back to pending, returning the count reset.
	ResetStaleDeliveries(ctx context.Context, timeout time.Duration) (int, error)

	// GetByID returns the event with the given id, or ErrEventNotFound if
	// none exists.
	GetByID(ctx context.Context, id uuid.UUID) (Event, error)

	// FindLatestByType returns the most recently created event of the given
	// type, or ErrEventNotFound if none exists.
	FindLatestByType(ctx context.Context, eventType string) (Event, error)

	// FindLatestByTypeAndField returns the most recent event of the given
	// type whose JSON payload has field == value (value is matched against
	// the field's unquoted text, e.g. `abc` for the JSON string "abc";
	// MemoryRepository matches string-valued fields only).
	FindLatestByTypeAndField(ctx context.Context, eventType, field, value string) (Event, error)

	// ListEvents returns a cursor-paginated slice of the changefeed.
	ListEvents(ctx context.Context, limit int, afterCursor *uuid.UUID, types []string, newestFirst bool) ([]Event, error)

	// Count returns the number of events, optionally filtered by type.
	Count(ctx context.Context, types []string) (int, error)
}
