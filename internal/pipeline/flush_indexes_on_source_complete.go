package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// flushIndexesOnSourceComplete flushes every registered index backend once
// a source run's final chunk completes, so buffered records land before the
// run is considered fully done.
type flushIndexesOnSourceComplete struct {
	scope handlers.Scope
	deps  Dependencies
}

func flushIndexesOnSourceCompleteRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventSourceRunCompleted,
			ConsumerGroup: "FlushIndexesOnSourceComplete",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &flushIndexesOnSourceComplete{scope: scope, deps: deps}
		},
	}
}

func (h *flushIndexesOnSourceComplete) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload SourceRunCompletedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}
	if !payload.IsFinalChunk {
		return handlers.OutcomeOk()
	}

	for name, backend := range h.deps.Indexes.Items() {
		if err := backend.Flush(ctx); err != nil {
			return handlers.OutcomeFail(fmt.Errorf("flush indexes on source complete: flush %s: %w", name, err))
		}
	}
	return handlers.OutcomeOk()
}
