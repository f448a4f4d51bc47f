package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository on top of database/sql with the
// lib/pq driver: no ORM, explicit FOR UPDATE SKIP LOCKED, and each
// repository method owning its transaction boundary.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an already-open, migrated database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) SaveWithDeliveries(ctx context.Context, exec Executor, event Event, consumerGroups []string, routingKey *string) error {
	if exec == nil {
		exec = r.db
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO events (id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, event.ID, event.EventType, []byte(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("outbox: insert event: %w", err)
	}

	for _, group := range consumerGroups {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO deliveries (id, event_id, consumer_group, status, routing_key, retry_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
		`, uuid.New(), event.ID, group, StatusPending, routingKey, event.CreatedAt)
		if err != nil {
			return fmt.Errorf("outbox: insert delivery for %s: %w", group, err)
		}
	}
	return nil
}

func (r *PostgresRepository) ClaimDeliveries(ctx context.Context, consumerGroup string, eventTypes []string, routingKey *string, limit int) ([]Event, time.Time, error) {
	if limit <= 0 {
		return nil, time.Time{}, nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("outbox: begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	claimedAt := time.Now().UTC()

	rows, err := tx.QueryContext(ctx, `
		SELECT d.id, e.id, e.event_type, e.payload, e.created_at
		FROM deliveries d
		JOIN events e ON e.id = d.event_id
		WHERE d.consumer_group = $1
		  AND d.status = $2
		  AND e.event_type = ANY($3)
		  AND ($6::text IS NULL OR d.routing_key = $6)
		  AND (
		        d.retry_count = 0
		        OR d.updated_at <= $4 - (LEAST(30, POWER(5, d.retry_count)) * INTERVAL '1 second')
		      )
		ORDER BY e.created_at ASC
		LIMIT $5
		FOR UPDATE OF d SKIP LOCKED
	`, consumerGroup, StatusPending, pq.Array(eventTypes), claimedAt, limit, routingKey)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("outbox: select claimable deliveries: %w", err)
	}

	type claimed struct {
		deliveryID uuid.UUID
		event      Event
	}
	var batch []claimed
	for rows.Next() {
		var c claimed
		var payload []byte
		if err := rows.Scan(&c.deliveryID, &c.event.ID, &c.event.EventType, &payload, &c.event.CreatedAt); err != nil {
			rows.Close()
			return nil, time.Time{}, fmt.Errorf("outbox: scan claimable delivery: %w", err)
		}
		c.event.Payload = json.RawMessage(payload)
		c.event.DeliveryID = c.deliveryID
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, time.Time{}, fmt.Errorf("outbox: iterate claimable deliveries: %w", err)
	}
	rows.Close()

	if len(batch) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, time.Time{}, fmt.Errorf("outbox: commit empty claim: %w", err)
		}
		return nil, claimedAt, nil
	}

	ids := make([]uuid.UUID, len(batch))
	for i, c := range batch {
		ids[i] = c.deliveryID
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE deliveries SET status = $1, claimed_at = $2, updated_at = $2
		WHERE id = ANY($3)
	`, StatusClaimed, claimedAt, pq.Array(ids))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("outbox: mark claimed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, time.Time{}, fmt.Errorf("outbox: commit claim: %w", err)
	}

	events := make([]Event, len(batch))
	for i, c := range batch {
		events[i] = c.event
	}
	return events, claimedAt, nil
}

func (r *PostgresRepository) MarkDeliveryStatus(ctx context.Context, deliveryID uuid.UUID, status DeliveryStatus, deliveryErr *string) error {
	switch status {
	case StatusDelivered, StatusFailed, StatusSkipped:
	default:
		return fmt.Errorf("outbox: MarkDeliveryStatus: invalid terminal status %q", status)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, delivered_at = $2, updated_at = $2, delivery_error = $3
		WHERE id = $4
	`, status, time.Now().UTC(), deliveryErr, deliveryID)
	if err != nil {
		return fmt.Errorf("outbox: mark delivery status: %w", err)
	}
	return checkRowsAffected(res)
}

func (r *PostgresRepository) MarkFailedWithRetry(ctx context.Context, deliveryID uuid.UUID, deliveryErr string, maxRetries int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("outbox: begin retry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var retryCount int
	err = tx.QueryRowContext(ctx, `SELECT retry_count FROM deliveries WHERE id = $1 FOR UPDATE`, deliveryID).Scan(&retryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeliveryNotFound
	}
	if err != nil {
		return fmt.Errorf("outbox: load retry count: %w", err)
	}

	now := time.Now().UTC()
	if retryCount+1 < maxRetries {
		_, err = tx.ExecContext(ctx, `
			UPDATE deliveries
			SET status = $1, retry_count = retry_count + 1, claimed_at = NULL,
			    delivery_error = $2, updated_at = $3
			WHERE id = $4
		`, StatusPending, deliveryErr, now, deliveryID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE deliveries
			SET status = $1, retry_count = retry_count + 1,
			    delivery_error = $2, updated_at = $3
			WHERE id = $4
		`, StatusFailed, deliveryErr, now, deliveryID)
	}
	if err != nil {
		return fmt.Errorf("outbox: apply retry/fail: %w", err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) ResetStaleDeliveries(ctx context.Context, timeout time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = $1, claimed_at = NULL, updated_at = $2
		WHERE status = $3 AND claimed_at IS NOT NULL AND claimed_at <= $2 - $4::interval
	`, StatusPending, time.Now().UTC(), StatusClaimed, fmt.Sprintf("%d seconds", int(timeout.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("outbox: reset stale deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("outbox: rows affected: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Event, error) {
	return scanOneEvent(r.db.QueryRowContext(ctx, `
		SELECT id, event_type, payload, created_at FROM events
		WHERE id = $1
	`, id))
}

func (r *PostgresRepository) FindLatestByType(ctx context.Context, eventType string) (Event, error) {
	return scanOneEvent(r.db.QueryRowContext(ctx, `
		SELECT id, event_type, payload, created_at FROM events
		WHERE event_type = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, eventType))
}

func (r *PostgresRepository) FindLatestByTypeAndField(ctx context.Context, eventType, field, value string) (Event, error) {
	return scanOneEvent(r.db.QueryRowContext(ctx, `
		SELECT id, event_type, payload, created_at FROM events
		WHERE event_type = $1 AND payload ->> $2 = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, eventType, field, value))
}

func (r *PostgresRepository) ListEvents(ctx context.Context, limit int, afterCursor *uuid.UUID, types []string, newestFirst bool) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, event_type, payload, created_at FROM events
		WHERE ($1::uuid IS NULL OR id > $1)
		  AND (cardinality($2::text[]) = 0 OR event_type = ANY($2))
		ORDER BY created_at %s
		LIMIT $3
	`, order)

	var cursor any
	if afterCursor != nil {
		cursor = *afterCursor
	}

	rows, err := r.db.QueryContext(ctx, query, cursor, pq.Array(types), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context, types []string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM events
		WHERE cardinality($1::text[]) = 0 OR event_type = ANY($1)
	`, pq.Array(types)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("outbox: count events: %w", err)
	}
	return n, nil
}

func scanOneEvent(row *sql.Row) (Event, error) {
	var e Event
	var payload []byte
	if err := row.Scan(&e.ID, &e.EventType, &payload, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("outbox: scan event: %w", err)
	}
	e.Payload = json.RawMessage(payload)
	return e, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox: rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}
