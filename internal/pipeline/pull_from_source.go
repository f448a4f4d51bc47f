package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// pullFromSource invokes the OCI runner port against a source's
// image/digest/config and turns the resulting record stream into
// SourceRecordReady events, chaining a continuation SourceRequested when the
// runner reports more pages.
type pullFromSource struct {
	scope handlers.Scope
	deps  Dependencies
}

func pullFromSourceRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventSourceRequested,
			ConsumerGroup: "PullFromSource",
			BatchSize:     1,
			BatchTimeout:  30 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  90 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New:  func(scope handlers.Scope) handlers.Handler { return &pullFromSource{scope: scope, deps: deps} },
	}
}

func (h *pullFromSource) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload SourceRequestedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	conventionSRN, err := srn.ParseAs(payload.ConventionSRN, srn.TypeConvention)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	convention, err := h.deps.Conventions.Get(ctx, h.scope.Exec(), conventionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("pull from source: load convention: %w", err))
	}
	if convention.Source == nil {
		return handlers.OutcomeFail(fmt.Errorf("pull from source: %s has no source configured", payload.ConventionSRN))
	}

	runID := uuid.New().String()
	stagingDir := h.deps.Files.StagingDir(conventionSRN.LocalID(), runID)
	workDir := h.deps.Files.OutputDir(conventionSRN.LocalID(), runID)

	result, err := h.deps.SourceRunner.Run(ctx, convention.Source.Image, convention.Source.Digest, ports.RunnerInputs{
		Config: convention.Source.Config,
		Since:   payload.Since,
		Limit:   payload.Limit,
		Offset:  payload.Offset,
		Session: payload.Session,
	}, stagingDir, workDir)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("pull from source: runner: %w", err))
	}

	box := h.scope.Outbox()
	for _, rec := range result.Records {
		next, err := outbox.NewEvent(EventSourceRecordReady, SourceRecordReadyPayload{
			ConventionSRN: payload.ConventionSRN,
			SourceID:      rec.SourceID,
			Metadata:      rec.Metadata,
			FilePaths:     rec.FilePaths,
			StagingDir:    stagingDir,
		})
		if err != nil {
			return handlers.OutcomeFail(err)
		}
		if err := box.Append(ctx, h.scope.Exec(), next, nil); err != nil {
			return handlers.OutcomeFail(err)
		}
	}

	if result.Session != nil && len(result.Records) > 0 {
		cont, err := outbox.NewEvent(EventSourceRequested, SourceRequestedPayload{
			ConventionSRN: payload.ConventionSRN,
			Offset:        payload.Offset + len(result.Records),
			Limit:         payload.Limit,
			Since:         payload.Since,
			Session:       result.Session,
		})
		if err != nil {
			return handlers.OutcomeFail(err)
		}
		if err := box.Append(ctx, h.scope.Exec(), cont, nil); err != nil {
			return handlers.OutcomeFail(err)
		}
	}

	isFinal := result.Session == nil || len(result.Records) == 0
	done, err := outbox.NewEvent(EventSourceRunCompleted, SourceRunCompletedPayload{
		ConventionSRN: payload.ConventionSRN,
		IsFinalChunk:  isFinal,
	})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := box.Append(ctx, h.scope.Exec(), done, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
