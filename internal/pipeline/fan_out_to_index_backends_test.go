package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
)

func TestFanOutToIndexBackendsEmitsOnePerBackend(t *testing.T) {
	scope, reg := newFakeScope()
	reg.Subscribe(EventIndexRecord, "VectorIndexHandler")
	reg.Subscribe(EventIndexRecord, "KeywordIndexHandler")

	indexes := ports.NewIndexRegistry(map[string]ports.IndexBackend{
		"vector":  &fakeIndexBackend{name: "vector"},
		"keyword": &fakeIndexBackend{name: "keyword"},
	})

	deps := Dependencies{Indexes: indexes}
	h := fanOutToIndexBackendsRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventRecordPublished, RecordPublishedPayload{
		RecordSRN: "urn:osa:n1.example.org:rec:dep000000000000001@1",
		Metadata:  json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	require.Equal(t, 0, int(outcome.Kind))

	count, err := scope.Outbox().Count(context.Background(), []string{EventIndexRecord})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
