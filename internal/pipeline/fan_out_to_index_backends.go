package pipeline

import (
	"context"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// fanOutToIndexBackends emits one IndexRecord event per registered backend,
// routed by backend name so VectorIndexHandler and KeywordIndexHandler each
// only claim their own.
type fanOutToIndexBackends struct {
	scope handlers.Scope
	deps  Dependencies
}

func fanOutToIndexBackendsRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventRecordPublished,
			ConsumerGroup: "FanOutToIndexBackends",
			BatchSize:     1,
			BatchTimeout:  10 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &fanOutToIndexBackends{scope: scope, deps: deps}
		},
	}
}

func (h *fanOutToIndexBackends) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload RecordPublishedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	box := h.scope.Outbox()
	for name := range h.deps.Indexes.Items() {
		backendName := name
		next, err := outbox.NewEvent(EventIndexRecord, IndexRecordPayload{
			BackendName: backendName,
			RecordSRN:   payload.RecordSRN,
			Metadata:    payload.Metadata,
		})
		if err != nil {
			return handlers.OutcomeFail(err)
		}
		if err := box.Append(ctx, h.scope.Exec(), next, &backendName); err != nil {
			return handlers.OutcomeFail(err)
		}
	}
	return handlers.OutcomeOk()
}
