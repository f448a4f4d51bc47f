package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// createDepositionFromSource turns one SourceRecordReady event into a fresh
// draft deposition, under the System identity: attach metadata, move the
// staged files into the deposition's canonical directory, then submit.
type createDepositionFromSource struct {
	scope handlers.Scope
	deps  Dependencies
}

func createDepositionFromSourceRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventSourceRecordReady,
			ConsumerGroup: "CreateDepositionFromSource",
			BatchSize:     1,
			BatchTimeout:  15 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  60 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &createDepositionFromSource{scope: scope, deps: deps}
		},
	}
}

func (h *createDepositionFromSource) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload SourceRecordReadyPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	conventionSRN, err := srn.ParseAs(payload.ConventionSRN, srn.TypeConvention)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	convention, err := h.deps.Conventions.Get(ctx, h.scope.Exec(), conventionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("create deposition from source: load convention: %w", err))
	}

	depSRN, err := srn.New(conventionSRN.Domain(), srn.TypeDeposition, "dep-"+uuid.New().String(), "")
	if err != nil {
		return handlers.OutcomeFail(err)
	}

	now := h.deps.now()
	metadataJSON, err := json.Marshal(payload.Metadata)
	if err != nil {
		return handlers.OutcomeFail(err)
	}

	d := deposition.New(depSRN, conventionSRN, "system", now)
	if err := d.SetMetadata(metadataJSON, now); err != nil {
		return handlers.OutcomeFail(err)
	}

	for _, path := range payload.FilePaths {
		file, err := h.deps.Files.MoveToDeposition(ctx, path, depSRN, filepath.Base(path))
		if err != nil {
			return handlers.OutcomeFail(fmt.Errorf("create deposition from source: move %s: %w", path, err))
		}
		if err := d.AddFile(file, now); err != nil {
			return handlers.OutcomeFail(err)
		}
	}

	if err := d.Submit(convention.FileRequirements.MinCount, now); err != nil {
		return handlers.OutcomeFail(err)
	}

	if err := h.deps.Depositions.Save(ctx, h.scope.Exec(), d); err != nil {
		return handlers.OutcomeFail(err)
	}

	next, err := outbox.NewEvent(EventDepositionSubmitted, DepositionSubmittedPayload{
		DepositionSRN: depSRN.String(),
		ConventionSRN: payload.ConventionSRN,
		Hooks:         convention.HookSnapshots(),
		FilesDir:      h.deps.Files.FilesDir(depSRN),
	})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.scope.Outbox().Append(ctx, h.scope.Exec(), next, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
