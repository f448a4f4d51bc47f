package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/logging"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

func newTestEventsHandler(t *testing.T) (http.Handler, outbox.Event) {
	t.Helper()
	repo := outbox.NewMemoryRepository()
	reg := outbox.NewRegistry()
	box := outbox.New(repo, reg)

	ev, err := outbox.NewEvent("DummyEvent", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, box.Append(context.Background(), nil, ev, nil))

	return NewEventsHandler(outbox.NewEventLog(repo), logging.NewDefault("test")), ev
}

func TestEventsHandlerListReturnsAppendedEvent(t *testing.T) {
	handler, ev := newTestEventsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []outbox.Event `json:"events"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Events, 1)
	assert.Equal(t, ev.ID, body.Events[0].ID)
}

func TestEventsHandlerGetByIDReturnsEvent(t *testing.T) {
	handler, ev := newTestEventsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/events/"+ev.ID.String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got outbox.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ev.ID, got.ID)
}

func TestEventsHandlerGetByIDMissingReturns404(t *testing.T) {
	handler, _ := newTestEventsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/events/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsHandlerGetByIDInvalidUUIDReturns400(t *testing.T) {
	handler, _ := newTestEventsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/events/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
