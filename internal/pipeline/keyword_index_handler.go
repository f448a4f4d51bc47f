package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

const keywordBackendName = "keyword"

// keywordIndexHandler ingests one record at a time into the "keyword"
// backend. Unlike vectorIndexHandler it processes single events: keyword
// backends in this deployment don't expose a batch ingest path worth
// exercising.
type keywordIndexHandler struct {
	scope handlers.Scope
	deps  Dependencies
}

func keywordIndexHandlerRegistration(deps Dependencies) handlers.Registration {
	routingKey := keywordBackendName
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventIndexRecord,
			ConsumerGroup: "KeywordIndexHandler",
			RoutingKey:    &routingKey,
			BatchSize:     1,
			BatchTimeout:  5 * time.Second,
			PollInterval:  1 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  30 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &keywordIndexHandler{scope: scope, deps: deps}
		},
	}
}

func (h *keywordIndexHandler) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	backend, ok := h.deps.Indexes.Get(keywordBackendName)
	if !ok {
		return handlers.OutcomeSkip([]uuid.UUID{ev.DeliveryID}, "no keyword backend registered")
	}

	var payload IndexRecordPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := backend.Ingest(ctx, payload.RecordSRN, payload.Metadata); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}
