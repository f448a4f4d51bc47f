package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
)

const vectorBackendName = "vector"

// vectorIndexHandler drains its claimed batch into one IngestBatch call
// against the registered "vector" backend. If no such backend is registered
// (the deployment runs without vector search), the whole batch is skipped
// rather than retried forever.
type vectorIndexHandler struct {
	scope handlers.Scope
	deps  Dependencies
}

func vectorIndexHandlerRegistration(deps Dependencies) handlers.Registration {
	routingKey := vectorBackendName
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventIndexRecord,
			ConsumerGroup: "VectorIndexHandler",
			RoutingKey:    &routingKey,
			BatchSize:     100,
			BatchTimeout:  5 * time.Second,
			PollInterval:  1 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &vectorIndexHandler{scope: scope, deps: deps}
		},
	}
}

func (h *vectorIndexHandler) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	return h.HandleBatch(ctx, []outbox.Event{ev})
}

func (h *vectorIndexHandler) HandleBatch(ctx context.Context, events []outbox.Event) handlers.Outcome {
	backend, ok := h.deps.Indexes.Get(vectorBackendName)
	if !ok {
		ids := make([]uuid.UUID, len(events))
		for i, ev := range events {
			ids[i] = ev.DeliveryID
		}
		return handlers.OutcomeSkip(ids, "no vector backend registered")
	}

	items := make([]ports.IndexItem, 0, len(events))
	for _, ev := range events {
		var payload IndexRecordPayload
		if err := decodePayload(ev, &payload); err != nil {
			return handlers.OutcomeFail(err)
		}
		items = append(items, ports.IndexItem{SRN: payload.RecordSRN, Metadata: payload.Metadata})
	}

	if err := backend.IngestBatch(ctx, items); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
