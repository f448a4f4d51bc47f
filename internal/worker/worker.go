package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/logging"
	"github.com/opensciencearchive/server-sub000/internal/metrics"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

var allStatuses = []string{string(StatusIdle), string(StatusClaiming), string(StatusProcessing), string(StatusStopping)}

// Scope is what a Worker needs from a unit of work beyond what a handler
// constructor sees: the ability to settle the transaction the handler's
// business writes and appended events ran under.
type Scope interface {
	handlers.Scope
	Commit() error
	Rollback() error
}

// Factory opens a fresh Scope per poll cycle. internal/uow.Factory satisfies
// this through the WorkerFactory adapter in internal/uow/adapter.go; tests use
// an in-memory one instead.
type Factory interface {
	Begin(ctx context.Context) (Scope, error)
}

// Worker runs the poll loop for a single Registration: claim a batch,
// dispatch it to the handler, resolve the outcome against the outbox, and
// commit or roll back the unit of work the handler ran in.
type Worker struct {
	reg     handlers.Registration
	factory Factory
	logger  *logging.Logger
	state   *State

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Worker over reg, claiming through factory-produced units of
// work.
func New(reg handlers.Registration, factory Factory, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewDefault("worker." + reg.Config.ConsumerGroup)
	}
	return &Worker{
		reg:     reg,
		factory: factory,
		logger:  logger,
		state:   newState(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// State returns a live handle to the worker's observable state.
func (w *Worker) State() *State { return w.state }

// setStatus updates the in-process state and mirrors it onto the status
// gauge so a scrape reflects the worker's current phase.
func (w *Worker) setStatus(s Status) {
	w.state.setStatus(s)
	metrics.SetWorkerStatus(w.reg.Config.ConsumerGroup, string(s), allStatuses)
}

// Run is the main loop: poll, and when a poll finds no work, sleep
// poll_interval before trying again. The cooperative shutdown flag is
// checked at the top of every iteration so a Stop lets the current batch, if
// any, finish before the loop exits.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		n, err := w.pollOnce(ctx)
		if err != nil {
			w.logger.WithField("error", err.Error()).WithField("consumer_group", w.reg.Config.ConsumerGroup).
				Error("worker: poll cycle failed")
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-time.After(w.reg.Config.PollInterval):
			}
		}
	}
}

// Stop asks the loop to exit after its current iteration. It does not
// interrupt a batch already being handled.
func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.doneCh
}

// pollOnce executes one claim-dispatch-settle cycle. It returns the number
// of deliveries claimed (0 means idle) and any error from opening or
// settling the unit of work itself — handler outcomes never escape as an
// error, they are resolved into delivery status updates instead.
func (w *Worker) pollOnce(ctx context.Context) (int, error) {
	cfg := w.reg.Config
	start := time.Now()
	defer func() { metrics.RecordPoll(cfg.ConsumerGroup, time.Since(start)) }()

	// Step 1: open a fresh unit-of-work scope.
	w.setStatus(StatusClaiming)
	scope, err := w.factory.Begin(ctx)
	if err != nil {
		w.setStatus(StatusIdle)
		return 0, fmt.Errorf("worker: begin unit of work: %w", err)
	}
	defer func() { _ = scope.Rollback() }()

	// Step 2: resolve the Outbox and the handler instance from the scope.
	box := scope.Outbox()
	handler := w.reg.New(scope)

	// Step 3: claim.
	batchCtx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout)
	defer cancel()
	events, claimedAt, err := box.Claim(batchCtx, cfg.ConsumerGroup, []string{cfg.EventType}, cfg.RoutingKey, cfg.BatchSize)
	if err != nil {
		w.setStatus(StatusIdle)
		return 0, fmt.Errorf("worker: claim: %w", err)
	}

	// Step 4: nothing claimed, idle and return.
	if len(events) == 0 {
		w.setStatus(StatusIdle)
		if err := scope.Commit(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(events))
	oldest := claimedAt.Sub(events[0].CreatedAt)
	for _, e := range events {
		ids = append(ids, e.DeliveryID)
		if age := claimedAt.Sub(e.CreatedAt); age > oldest {
			oldest = age
		}
	}
	metrics.RecordClaim(cfg.ConsumerGroup, len(events), oldest)
	w.state.setBatch(ids, claimedAt)
	w.setStatus(StatusProcessing)

	// Steps 5-6: dispatch to the handler, single-event or batch shape
	// according to the configured batch size.
	var outcome handlers.Outcome
	if cfg.BatchSize == 1 {
		outcome = handler.Handle(batchCtx, events[0])
	} else {
		outcome = handlers.HandleBatch(batchCtx, handler, events)
	}

	// Steps 7-9: resolve the outcome into per-delivery status updates.
	switch outcome.Kind {
	case handlers.Ok:
		w.markAllDelivered(ctx, box, events)
	case handlers.SkipKind:
		w.applySkip(ctx, box, events, outcome.Skip)
	default:
		w.applyFailure(ctx, box, events, cfg.MaxRetries, outcome.FailErr)
	}

	w.state.clearBatch()
	w.setStatus(StatusIdle)

	// Step 10: close the scope. The transaction commits; the business
	// writes a handler made through this same scope and the events it
	// appended land together or not at all. The claim and the delivery
	// status updates above ran in the repository's own short transactions.
	if err := scope.Commit(); err != nil {
		return len(events), fmt.Errorf("worker: commit unit of work: %w", err)
	}
	return len(events), nil
}

func (w *Worker) markAllDelivered(ctx context.Context, box *outbox.Outbox, events []outbox.Event) {
	group := w.reg.Config.ConsumerGroup
	for _, e := range events {
		if err := box.MarkDelivered(ctx, e.DeliveryID); err != nil {
			w.logger.WithField("error", err.Error()).Error("worker: mark delivered failed")
			continue
		}
		w.state.recordProcessed(1)
		metrics.RecordSettlement(group, "delivered")
	}
}

func (w *Worker) applySkip(ctx context.Context, box *outbox.Outbox, events []outbox.Event, skip handlers.SkipDetail) {
	group := w.reg.Config.ConsumerGroup
	skipped := make(map[uuid.UUID]bool, len(skip.IDs))
	for _, id := range skip.IDs {
		skipped[id] = true
	}
	for _, e := range events {
		var err error
		if skipped[e.DeliveryID] {
			err = box.MarkSkipped(ctx, e.DeliveryID, skip.Reason)
		} else {
			err = box.MarkDelivered(ctx, e.DeliveryID)
			w.state.recordProcessed(1)
		}
		if err != nil {
			w.logger.WithField("error", err.Error()).Error("worker: resolve skip outcome failed")
			continue
		}
		if skipped[e.DeliveryID] {
			metrics.RecordSettlement(group, "skipped")
		} else {
			metrics.RecordSettlement(group, "delivered")
		}
	}
}

func (w *Worker) applyFailure(ctx context.Context, box *outbox.Outbox, events []outbox.Event, maxRetries int, cause error) {
	msg := "handler failed"
	if cause != nil {
		msg = cause.Error()
	}
	group := w.reg.Config.ConsumerGroup
	for _, e := range events {
		if err := box.MarkFailedWithRetry(ctx, e.DeliveryID, msg, maxRetries); err != nil {
			w.logger.WithField("error", err.Error()).Error("worker: mark failed with retry failed")
			continue
		}
		w.state.recordFailure(cause)
		metrics.RecordSettlement(group, "failed")
	}
}
