package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

func TestValidateDepositionEmitsCompletedWhenAllHooksPass(t *testing.T) {
	scope, reg := newFakeScope()
	reg.Subscribe(EventValidationCompleted, "AutoApproveCuration")

	deps := Dependencies{HookRunner: &fakeHookRunner{}}
	h := validateDepositionRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventDepositionSubmitted, DepositionSubmittedPayload{
		DepositionSRN: "urn:osa:n1.example.org:dep:dep000000000000001",
		Hooks:         []hook.Snapshot{{Name: "schema-check"}},
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 0, int(outcome.Kind))

	count, err := scope.Outbox().Count(context.Background(), []string{EventValidationCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidateDepositionEmitsFailedWhenAHookFails(t *testing.T) {
	scope, reg := newFakeScope()
	reg.Subscribe(EventValidationFailed, "ReturnToDraft")

	deps := Dependencies{HookRunner: &fakeHookRunner{
		results: map[string]hook.Result{
			"schema-check": {HookName: "schema-check", Status: "failed", Reasons: []string{"missing column"}},
		},
	}}
	h := validateDepositionRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventDepositionSubmitted, DepositionSubmittedPayload{
		DepositionSRN: "urn:osa:n1.example.org:dep:dep000000000000001",
		Hooks:         []hook.Snapshot{{Name: "schema-check"}},
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 0, int(outcome.Kind))

	count, err := scope.Outbox().Count(context.Background(), []string{EventValidationFailed})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
