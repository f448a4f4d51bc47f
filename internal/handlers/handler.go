package handlers

import (
	"context"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// Config is the declarative per-handler configuration. It is immutable
// after construction and fully determines how the owning Worker polls.
type Config struct {
	// EventType is the event type name this handler subscribes to.
	EventType string
	// ConsumerGroup is this handler's identity when claiming deliveries.
	// Every registration sets it; Validate rejects an empty value.
	ConsumerGroup string
	// RoutingKey optionally restricts claims to deliveries carrying this
	// routing key (used by per-backend index handlers).
	RoutingKey *string
	BatchSize    int
	BatchTimeout time.Duration
	PollInterval time.Duration
	MaxRetries   int
	ClaimTimeout time.Duration
}

// Validate enforces the config invariants: batch_size>=1, batch_timeout>0,
// poll_interval>0, max_retries>=0, claim_timeout>batch_timeout.
func (c Config) Validate() error {
	if c.EventType == "" {
		return errConfig("event_type must not be empty")
	}
	if c.ConsumerGroup == "" {
		return errConfig("consumer_group must not be empty")
	}
	if c.BatchSize < 1 {
		return errConfig("batch_size must be >= 1")
	}
	if c.BatchTimeout <= 0 {
		return errConfig("batch_timeout must be > 0")
	}
	if c.PollInterval <= 0 {
		return errConfig("poll_interval must be > 0")
	}
	if c.MaxRetries < 0 {
		return errConfig("max_retries must be >= 0")
	}
	if c.ClaimTimeout <= c.BatchTimeout {
		return errConfig("claim_timeout must be > batch_timeout")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "handlers: invalid config: " + string(e) }
func errConfig(msg string) error    { return configError(msg) }

// Handler is the single-event shape: used whenever Config.BatchSize == 1.
type Handler interface {
	Handle(ctx context.Context, event outbox.Event) Outcome
}

// BatchHandler is the batch shape: used whenever Config.BatchSize > 1. A
// Handler that does not also implement BatchHandler gets one synthesized as
// a loop over Handle.
type BatchHandler interface {
	HandleBatch(ctx context.Context, events []outbox.Event) Outcome
}

// HandleBatch dispatches to h's own HandleBatch if implemented, otherwise
// synthesizes one by looping Handle and merging outcomes: a Fail returns
// immediately without handling the remaining events, while Skip ids are
// collected across the whole loop into one Skip outcome, so the Worker can
// still apply mark_failed_with_retry/mark_skipped per-delivery.
func HandleBatch(ctx context.Context, h Handler, events []outbox.Event) Outcome {
	if bh, ok := h.(BatchHandler); ok {
		return bh.HandleBatch(ctx, events)
	}

	var skipped SkipDetail
	for _, ev := range events {
		outcome := h.Handle(ctx, ev)
		switch outcome.Kind {
		case Ok:
			continue
		case SkipKind:
			skipped.IDs = append(skipped.IDs, outcome.Skip.IDs...)
			if skipped.Reason == "" {
				skipped.Reason = outcome.Skip.Reason
			}
		case FailKind:
			return outcome
		}
	}
	if len(skipped.IDs) > 0 {
		return Outcome{Kind: SkipKind, Skip: skipped}
	}
	return OutcomeOk()
}
