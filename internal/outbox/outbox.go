package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outbox is the domain-facing entry point over Repository: it resolves
// subscribers through a Registry before persisting, so callers never pass
// consumer groups by hand. It is the thing handlers and the worker pool
// actually depend on; Repository stays an implementation seam for Postgres
// vs. in-memory storage.
type Outbox struct {
	repo Repository
	reg  *Registry
}

// New builds an Outbox over repo, resolving subscribers through reg.
func New(repo Repository, reg *Registry) *Outbox {
	return &Outbox{repo: repo, reg: reg}
}

// Append persists event and fans it out to every consumer group currently
// subscribed to its type. exec lets the call join a caller's transaction
// (the transactional outbox pattern); pass nil to run against the pool.
func (o *Outbox) Append(ctx context.Context, exec Executor, event Event, routingKey *string) error {
	groups := o.reg.SubscribersOf(event.EventType)
	return o.repo.SaveWithDeliveries(ctx, exec, event, groups, routingKey)
}

// Claim pulls up to limit eligible deliveries for consumerGroup among
// eventTypes, optionally restricted to a single routing key.
func (o *Outbox) Claim(ctx context.Context, consumerGroup string, eventTypes []string, routingKey *string, limit int) ([]Event, time.Time, error) {
	return o.repo.ClaimDeliveries(ctx, consumerGroup, eventTypes, routingKey, limit)
}

// MarkDelivered records a successful handler invocation.
func (o *Outbox) MarkDelivered(ctx context.Context, deliveryID uuid.UUID) error {
	return o.repo.MarkDeliveryStatus(ctx, deliveryID, StatusDelivered, nil)
}

// MarkFailed records a terminal, non-retryable handler failure.
func (o *Outbox) MarkFailed(ctx context.Context, deliveryID uuid.UUID, cause string) error {
	return o.repo.MarkDeliveryStatus(ctx, deliveryID, StatusFailed, &cause)
}

// MarkSkipped records a permanent business-rule skip (HandlerOutcome Skip).
func (o *Outbox) MarkSkipped(ctx context.Context, deliveryID uuid.UUID, reason string) error {
	return o.repo.MarkDeliveryStatus(ctx, deliveryID, StatusSkipped, &reason)
}

// MarkFailedWithRetry records a transient failure, requeuing the delivery
// unless maxRetries has been exhausted.
func (o *Outbox) MarkFailedWithRetry(ctx context.Context, deliveryID uuid.UUID, cause string, maxRetries int) error {
	return o.repo.MarkFailedWithRetry(ctx, deliveryID, cause, maxRetries)
}

// FindLatest returns the most recent event of eventType, optionally filtered
// by a top-level JSON payload field.
func (o *Outbox) FindLatest(ctx context.Context, eventType string, field, value *string) (Event, error) {
	if field != nil {
		return o.repo.FindLatestByTypeAndField(ctx, eventType, *field, *value)
	}
	return o.repo.FindLatestByType(ctx, eventType)
}

// ListEvents exposes the changefeed for read APIs and diagnostics.
func (o *Outbox) ListEvents(ctx context.Context, limit int, afterCursor *uuid.UUID, types []string, newestFirst bool) ([]Event, error) {
	return o.repo.ListEvents(ctx, limit, afterCursor, types, newestFirst)
}

// Count returns the number of persisted events, optionally filtered by type.
func (o *Outbox) Count(ctx context.Context, types []string) (int, error) {
	return o.repo.Count(ctx, types)
}

// ResetStaleClaims reclaims deliveries stuck in claimed status past timeout,
// called periodically by the worker pool's janitor.
func (o *Outbox) ResetStaleClaims(ctx context.Context, timeout time.Duration) (int, error) {
	return o.repo.ResetStaleDeliveries(ctx, timeout)
}
