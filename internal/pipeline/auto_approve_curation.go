package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// autoApproveCuration approves every ValidationCompleted deposition whose
// convention does not require manual curation. v1 conventions never do, so
// today this handler always approves; the branch exists for when a future
// convention schema version can require a human curator instead.
type autoApproveCuration struct {
	scope handlers.Scope
	deps  Dependencies
}

func autoApproveCurationRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventValidationCompleted,
			ConsumerGroup: "AutoApproveCuration",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &autoApproveCuration{scope: scope, deps: deps}
		},
	}
}

func (h *autoApproveCuration) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload ValidationCompletedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}
	if payload.Status != "completed" {
		return handlers.OutcomeOk()
	}

	conventionSRN, err := srn.ParseAs(payload.ConventionSRN, srn.TypeConvention)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	convention, err := h.deps.Conventions.Get(ctx, h.scope.Exec(), conventionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("auto approve curation: load convention: %w", err))
	}
	if convention.RequiresManualCuration() {
		return handlers.OutcomeOk()
	}

	next, err := outbox.NewEvent(EventDepositionApproved, DepositionApprovedPayload{
		DepositionSRN: payload.DepositionSRN,
		ConventionSRN: payload.ConventionSRN,
		Metadata:      payload.Metadata,
		Hooks:         payload.Hooks,
		FilesDir:      payload.FilesDir,
	})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.scope.Outbox().Append(ctx, h.scope.Exec(), next, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
