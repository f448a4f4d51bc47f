package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// validateDeposition runs every hook a DepositionSubmitted event carries
// against the deposition's files directory, then emits ValidationCompleted
// or ValidationFailed depending on the combined result.
type validateDeposition struct {
	scope handlers.Scope
	deps  Dependencies
}

func validateDepositionRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventDepositionSubmitted,
			ConsumerGroup: "ValidateDeposition",
			BatchSize:     1,
			BatchTimeout:  5 * time.Minute,
			PollInterval:  2 * time.Second,
			MaxRetries:    3,
			ClaimTimeout:  10 * time.Minute,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &validateDeposition{scope: scope, deps: deps}
		},
	}
}

func (h *validateDeposition) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload DepositionSubmittedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	results := make([]hook.Result, 0, len(payload.Hooks))
	for _, snap := range payload.Hooks {
		result, err := h.deps.HookRunner.Run(ctx, snap, payload.FilesDir)
		if err != nil {
			return handlers.OutcomeFail(fmt.Errorf("validate deposition: run hook %s: %w", snap.Name, err))
		}
		results = append(results, result)
	}

	var reasons []string
	for _, r := range results {
		if r.Failed() {
			reasons = append(reasons, fmt.Sprintf("%s: %s", r.HookName, r.Status))
			reasons = append(reasons, r.Reasons...)
		}
	}

	box := h.scope.Outbox()
	if len(reasons) > 0 {
		next, err := outbox.NewEvent(EventValidationFailed, ValidationFailedPayload{
			DepositionSRN: payload.DepositionSRN,
			Reasons:       reasons,
		})
		if err != nil {
			return handlers.OutcomeFail(err)
		}
		if err := box.Append(ctx, h.scope.Exec(), next, nil); err != nil {
			return handlers.OutcomeFail(err)
		}
		return handlers.OutcomeOk()
	}

	next, err := outbox.NewEvent(EventValidationCompleted, ValidationCompletedPayload{
		DepositionSRN: payload.DepositionSRN,
		ConventionSRN: payload.ConventionSRN,
		Status:        "completed",
		Metadata:      nil,
		Hooks:         payload.Hooks,
		FilesDir:      payload.FilesDir,
	})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := box.Append(ctx, h.scope.Exec(), next, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
