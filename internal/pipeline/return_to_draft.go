package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
	"github.com/opensciencearchive/server-sub000/internal/store"
)

// returnToDraft reopens a deposition for editing after a failed validation
// run. A deposition that no longer exists (already resubmitted and
// converted past it, or deleted) is treated as a no-op rather than an error.
type returnToDraft struct {
	scope handlers.Scope
	deps  Dependencies
}

func returnToDraftRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventValidationFailed,
			ConsumerGroup: "ReturnToDraft",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &returnToDraft{scope: scope, deps: deps}
		},
	}
}

func (h *returnToDraft) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload ValidationFailedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	depositionSRN, err := srn.ParseAs(payload.DepositionSRN, srn.TypeDeposition)
	if err != nil {
		return handlers.OutcomeFail(err)
	}

	d, err := h.deps.Depositions.Get(ctx, h.scope.Exec(), depositionSRN)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return handlers.OutcomeOk()
		}
		return handlers.OutcomeFail(fmt.Errorf("return to draft: load deposition: %w", err))
	}

	if err := d.ReturnToDraft(h.deps.now()); err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.deps.Depositions.Save(ctx, h.scope.Exec(), d); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
