package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
)

func TestVectorIndexHandlerIngestsBatch(t *testing.T) {
	scope, _ := newFakeScope()
	backend := &fakeIndexBackend{name: "vector"}
	deps := Dependencies{Indexes: ports.NewIndexRegistry(map[string]ports.IndexBackend{"vector": backend})}

	h := vectorIndexHandlerRegistration(deps).New(scope).(handlers.BatchHandler)

	ev, err := outbox.NewEvent(EventIndexRecord, IndexRecordPayload{
		BackendName: "vector",
		RecordSRN:   "urn:osa:n1.example.org:rec:dep000000000000001@1",
		Metadata:    json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	outcome := h.HandleBatch(context.Background(), []outbox.Event{ev})
	assert.Equal(t, 0, int(outcome.Kind))
	assert.Len(t, backend.ingested, 1)
}

func TestVectorIndexHandlerSkipsWhenNoBackendRegistered(t *testing.T) {
	scope, _ := newFakeScope()
	deps := Dependencies{Indexes: ports.NewIndexRegistry(nil)}
	h := vectorIndexHandlerRegistration(deps).New(scope).(handlers.BatchHandler)

	ev, err := outbox.NewEvent(EventIndexRecord, IndexRecordPayload{BackendName: "vector"})
	require.NoError(t, err)

	outcome := h.HandleBatch(context.Background(), []outbox.Event{ev})
	assert.Equal(t, 1, int(outcome.Kind)) // SkipKind
}
