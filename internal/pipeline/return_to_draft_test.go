package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
	"github.com/opensciencearchive/server-sub000/internal/store"
)

func TestReturnToDraftReopensInValidationDeposition(t *testing.T) {
	scope, _ := newFakeScope()

	depSRN, err := srn.New("n1.example.org", srn.TypeDeposition, "dep000000000000001", "")
	require.NoError(t, err)
	convSRN := testConventionSRN(t)

	d := deposition.New(depSRN, convSRN, "owner-1", time.Now())
	require.NoError(t, d.AddFile(deposition.File{Name: "a.csv"}, time.Now()))
	require.NoError(t, d.Submit(1, time.Now()))

	depositions := store.NewMemoryDepositionRepository()
	require.NoError(t, depositions.Save(context.Background(), nil, d))

	deps := Dependencies{Depositions: depositions, Clock: fixedClock(time.Unix(0, 0))}
	h := returnToDraftRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventValidationFailed, ValidationFailedPayload{
		DepositionSRN: depSRN.String(),
		Reasons:       []string{"schema-check: failed"},
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	require.Equal(t, 0, int(outcome.Kind))

	updated, err := depositions.Get(context.Background(), nil, depSRN)
	require.NoError(t, err)
	assert.Equal(t, deposition.StatusDraft, updated.Status)
}

func TestReturnToDraftNoOpsWhenDepositionMissing(t *testing.T) {
	scope, _ := newFakeScope()
	depositions := store.NewMemoryDepositionRepository()
	deps := Dependencies{Depositions: depositions}
	h := returnToDraftRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventValidationFailed, ValidationFailedPayload{
		DepositionSRN: "urn:osa:n1.example.org:dep:dep000000000000099",
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 0, int(outcome.Kind))
}
