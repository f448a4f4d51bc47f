package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/domain/record"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// convertDepositionToRecord mints version 1 of a Record from an approved
// Deposition, accepts the deposition, and announces the publication.
type convertDepositionToRecord struct {
	scope handlers.Scope
	deps  Dependencies
}

func convertDepositionToRecordRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventDepositionApproved,
			ConsumerGroup: "ConvertDepositionToRecord",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &convertDepositionToRecord{scope: scope, deps: deps}
		},
	}
}

func (h *convertDepositionToRecord) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload DepositionApprovedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	depositionSRN, err := srn.ParseAs(payload.DepositionSRN, srn.TypeDeposition)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	d, err := h.deps.Depositions.Get(ctx, h.scope.Exec(), depositionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("convert deposition to record: load deposition: %w", err))
	}

	recordSRN, err := srn.New(depositionSRN.Domain(), srn.TypeRecord, "rec-"+uuid.New().String(), "1")
	if err != nil {
		return handlers.OutcomeFail(err)
	}

	now := h.deps.now()
	rec := record.New(recordSRN, depositionSRN, payload.Metadata, now)
	if err := h.deps.Records.Save(ctx, h.scope.Exec(), rec); err != nil {
		return handlers.OutcomeFail(err)
	}

	if err := d.Accept(recordSRN, now); err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.deps.Depositions.Save(ctx, h.scope.Exec(), d); err != nil {
		return handlers.OutcomeFail(err)
	}

	next, err := outbox.NewEvent(EventRecordPublished, RecordPublishedPayload{
		RecordSRN:     recordSRN.String(),
		DepositionSRN: payload.DepositionSRN,
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
