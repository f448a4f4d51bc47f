package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogGetReturnsAppendedEvent(t *testing.T) {
	repo := NewMemoryRepository()
	reg := NewRegistry()
	box := New(repo, reg)
	log := NewEventLog(repo)

	ctx := context.Background()
	ev := dummyEvent(t)
	require.NoError(t, box.Append(ctx, nil, ev, nil))

	got, err := log.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.EventType, got.EventType)
}

func TestEventLogGetMissingReturnsErrEventNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	log := NewEventLog(repo)

	ev := dummyEvent(t)
	_, err := log.Get(context.Background(), ev.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventLogListAndCountMatchOutbox(t *testing.T) {
	repo := NewMemoryRepository()
	reg := NewRegistry()
	box := New(repo, reg)
	log := NewEventLog(repo)

	ctx := context.Background()
	require.NoError(t, box.Append(ctx, nil, dummyEvent(t), nil))
	require.NoError(t, box.Append(ctx, nil, dummyEvent(t), nil))

	count, err := log.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	events, err := log.ListEvents(ctx, 10, nil, nil, false)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
