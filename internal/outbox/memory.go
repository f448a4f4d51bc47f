package outbox

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and by
// single-node embedders that run without Postgres. It reproduces the same
// claim/ack/retry semantics as PostgresRepository, including SKIP LOCKED
// disjointness under concurrent claims, using a mutex-guarded map instead of
// row locks.
type MemoryRepository struct {
	mu         sync.Mutex
	events     map[uuid.UUID]Event
	order      []uuid.UUID
	deliveries map[uuid.UUID]*Delivery
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:     make(map[uuid.UUID]Event),
		deliveries: make(map[uuid.UUID]*Delivery),
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) SaveWithDeliveries(_ context.Context, _ Executor, event Event, consumerGroups []string, routingKey *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[event.ID] = event
	m.order = append(m.order, event.ID)

	now := time.Now().UTC()
	for _, group := range consumerGroups {
		d := &Delivery{
			ID:            uuid.New(),
			EventID:       event.ID,
			ConsumerGroup: group,
			Status:        StatusPending,
			RoutingKey:    routingKey,
			UpdatedAt:     now,
		}
		m.deliveries[d.ID] = d
	}
	return nil
}

func (m *MemoryRepository) ClaimDeliveries(_ context.Context, consumerGroup string, eventTypes []string, routingKey *string, limit int) ([]Event, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		allowed[t] = struct{}{}
	}

	now := time.Now().UTC()

	var candidates []*Delivery
	for _, eid := range m.order {
		for _, d := range m.deliveries {
			if d.EventID != eid || d.ConsumerGroup != consumerGroup || d.Status != StatusPending {
				continue
			}
			if routingKey != nil && (d.RoutingKey == nil || *d.RoutingKey != *routingKey) {
				continue
			}
			event := m.events[eid]
			if _, ok := allowed[event.EventType]; !ok {
				continue
			}
			if d.RetryCount > 0 && now.Sub(d.UpdatedAt) < backoffWindow(d.RetryCount) {
				continue
			}
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return m.events[candidates[i].EventID].CreatedAt.Before(m.events[candidates[j].EventID].CreatedAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	events := make([]Event, 0, len(candidates))
	for _, d := range candidates {
		d.Status = StatusClaimed
		claimedAt := now
		d.ClaimedAt = &claimedAt
		d.UpdatedAt = now
		event := m.events[d.EventID]
		event.DeliveryID = d.ID
		events = append(events, event)
	}
	return events, now, nil
}

func (m *MemoryRepository) MarkDeliveryStatus(_ context.Context, deliveryID uuid.UUID, status DeliveryStatus, deliveryErr *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deliveries[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}
	now := time.Now().UTC()
	d.Status = status
	d.DeliveredAt = &now
	d.UpdatedAt = now
	d.DeliveryError = deliveryErr
	return nil
}

func (m *MemoryRepository) MarkFailedWithRetry(_ context.Context, deliveryID uuid.UUID, deliveryErr string, maxRetries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deliveries[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}
	now := time.Now().UTC()
	errCopy := deliveryErr
	if d.RetryCount+1 < maxRetries {
		d.Status = StatusPending
		d.RetryCount++
		d.ClaimedAt = nil
		d.DeliveryError = &errCopy
		d.UpdatedAt = now
	} else {
		d.Status = StatusFailed
		d.RetryCount++
		d.DeliveryError = &errCopy
		d.UpdatedAt = now
	}
	return nil
}

func (m *MemoryRepository) ResetStaleDeliveries(_ context.Context, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for _, d := range m.deliveries {
		if d.Status != StatusClaimed || d.ClaimedAt == nil {
			continue
		}
		if now.Sub(*d.ClaimedAt) > timeout {
			d.Status = StatusPending
			d.ClaimedAt = nil
			d.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return e, nil
}

func (m *MemoryRepository) FindLatestByType(_ context.Context, eventType string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest Event
	var found bool
	for _, id := range m.order {
		e := m.events[id]
		if e.EventType != eventType {
			continue
		}
		if !found || e.CreatedAt.After(latest.CreatedAt) {
			latest, found = e, true
		}
	}
	if !found {
		return Event{}, ErrEventNotFound
	}
	return latest, nil
}

func (m *MemoryRepository) FindLatestByTypeAndField(_ context.Context, eventType, field, value string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest Event
	var found bool
	for _, id := range m.order {
		e := m.events[id]
		if e.EventType != eventType {
			continue
		}
		if !jsonFieldEquals(e.Payload, field, value) {
			continue
		}
		if !found || e.CreatedAt.After(latest.CreatedAt) {
			latest, found = e, true
		}
	}
	if !found {
		return Event{}, ErrEventNotFound
	}
	return latest, nil
}

func (m *MemoryRepository) ListEvents(_ context.Context, limit int, afterCursor *uuid.UUID, types []string, newestFirst bool) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}

	var afterSeen bool
	out := make([]Event, 0, limit)
	for _, id := range m.order {
		if afterCursor != nil && !afterSeen {
			if id == *afterCursor {
				afterSeen = true
			}
			continue
		}
		e := m.events[id]
		if len(allowed) > 0 {
			if _, ok := allowed[e.EventType]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	if newestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Count(_ context.Context, types []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(types) == 0 {
		return len(m.events), nil
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	n := 0
	for _, e := range m.events {
		if _, ok := allowed[e.EventType]; ok {
			n++
		}
	}
	return n, nil
}

func jsonFieldEquals(payload []byte, field, value string) bool {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	v, ok := m[field]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == value
}
