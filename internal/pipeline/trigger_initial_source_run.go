package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// triggerInitialSourceRun kicks off a convention's first automatic pull once
// its feature tables are ready, if it declares a source with an initial_run.
type triggerInitialSourceRun struct {
	scope handlers.Scope
	deps  Dependencies
}

func triggerInitialSourceRunRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventConventionReady,
			ConsumerGroup: "TriggerInitialSourceRun",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &triggerInitialSourceRun{scope: scope, deps: deps}
		},
	}
}

func (h *triggerInitialSourceRun) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload ConventionReadyPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	conventionSRN, err := srn.ParseAs(payload.ConventionSRN, srn.TypeConvention)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	convention, err := h.deps.Conventions.Get(ctx, h.scope.Exec(), conventionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("trigger initial source run: load convention: %w", err))
	}
	if convention.Source == nil || convention.Source.InitialRun == nil {
		return handlers.OutcomeOk()
	}

	next, err := outbox.NewEvent(EventSourceRequested, SourceRequestedPayload{
		ConventionSRN: payload.ConventionSRN,
		Offset:        0,
		Limit:         convention.Source.InitialRun.Limit,
	})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.scope.Outbox().Append(ctx, h.scope.Exec(), next, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
