package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/domain/convention"
	"github.com/opensciencearchive/server-sub000/internal/domain/source"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/srn"
	"github.com/opensciencearchive/server-sub000/internal/store"
)

func testConventionSRN(t *testing.T) srn.SRN {
	t.Helper()
	s, err := srn.New("n1.example.org", srn.TypeConvention, "conv00000000000001", "1.0.0")
	require.NoError(t, err)
	return s
}

func seedConvention(t *testing.T, convSRN srn.SRN, src *source.Definition) *store.MemoryConventionRepository {
	t.Helper()
	schemaSRN, err := srn.New("n1.example.org", srn.TypeSchema, "schema0000000001", "1.0.0")
	require.NoError(t, err)
	conv := convention.New(convSRN, schemaSRN, "Test Convention", convention.FileRequirements{MinCount: 1}, nil, src, time.Now())
	conventions := store.NewMemoryConventionRepository()
	require.NoError(t, conventions.Save(context.Background(), nil, conv))
	return conventions
}

func TestPullFromSourceEmitsRecordReadyAndCompleted(t *testing.T) {
	scope, reg := newFakeScope()
	reg.Subscribe(EventSourceRecordReady, "CreateDepositionFromSource")
	reg.Subscribe(EventSourceRunCompleted, "ObserveRuns")

	convSRN := testConventionSRN(t)
	conventions := seedConvention(t, convSRN, &source.Definition{Image: "img", Digest: "sha256:abc"})

	runner := &fakeSourceRunner{result: ports.RunResult{
		Records: []ports.SourceRecord{{SourceID: "rec-1", Metadata: map[string]any{"title": "x"}}},
	}}

	deps := Dependencies{
		Conventions:  conventions,
		Files:        &fakeFileStorage{},
		SourceRunner: runner,
		Clock:        fixedClock(time.Unix(0, 0)),
	}

	h := pullFromSourceRegistration(deps).New(scope)
	ev, err := outbox.NewEvent(EventSourceRequested, SourceRequestedPayload{ConventionSRN: convSRN.String()})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 0, int(outcome.Kind))

	count, err := scope.Outbox().Count(context.Background(), []string{EventSourceRecordReady})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = scope.Outbox().Count(context.Background(), []string{EventSourceRunCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPullFromSourceFailsWithoutSourceConfigured(t *testing.T) {
	scope, _ := newFakeScope()
	convSRN := testConventionSRN(t)
	conventions := seedConvention(t, convSRN, nil)

	deps := Dependencies{
		Conventions:  conventions,
		Files:        &fakeFileStorage{},
		SourceRunner: &fakeSourceRunner{},
	}

	h := pullFromSourceRegistration(deps).New(scope)
	ev, err := outbox.NewEvent(EventSourceRequested, SourceRequestedPayload{ConventionSRN: convSRN.String()})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 2, int(outcome.Kind)) // FailKind
}
