package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/logging"
	"github.com/opensciencearchive/server-sub000/internal/metrics"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// Schedule pairs a cron expression with the job it triggers — typically a
// SourceDefinition's cron_schedule driving a pull, but also the janitor's
// own sweep if the caller prefers it cron-driven over ticker-driven.
type Schedule struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

const circuitTripThreshold = 5

// Pool owns every registered Worker plus the cron scheduler for source
// pulls and the janitor that reclaims stale claims. It implements
// system.Service so it composes into internal/system.Manager alongside the
// rest of the application's long-running services.
type Pool struct {
	workers  []*Worker
	schedule []Schedule

	box             *outbox.Outbox
	janitorInterval time.Duration
	claimTimeout    time.Duration
	logger          *logging.Logger

	cron   *cron.Cron
	stopCh chan struct{}
	doneCh chan struct{}

	mu          sync.Mutex
	failStreaks map[string]int
}

// PoolConfig bounds the pool-wide janitor cadence. The janitor's stale-claim
// timeout is not part of this config: BuildPool derives it from the
// registrations themselves (see claimTimeoutFloor), since any value shorter
// than a slow handler's own ClaimTimeout would let the janitor reclaim a
// delivery its worker is still legitimately processing.
type PoolConfig struct {
	JanitorInterval time.Duration
}

// BuildPool validates every registration (a missing authorization gate or
// malformed Config is a startup error, not a runtime one), builds one
// Worker per registration, and wires in the cron schedules for source
// pulls.
func BuildPool(registrations []handlers.Registration, factory Factory, box *outbox.Outbox, schedules []Schedule, cfg PoolConfig, logger *logging.Logger) (*Pool, error) {
	if logger == nil {
		logger = logging.NewDefault("worker.pool")
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = time.Minute
	}

	workers := make([]*Worker, 0, len(registrations))
	for _, reg := range registrations {
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("worker: pool: %w", err)
		}
		workers = append(workers, New(reg, factory, logger))
	}

	return &Pool{
		workers:         workers,
		schedule:        schedules,
		box:             box,
		janitorInterval: cfg.JanitorInterval,
		claimTimeout:    claimTimeoutFloor(registrations),
		logger:          logger,
		cron:            cron.New(),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		failStreaks:     make(map[string]int),
	}, nil
}

// claimTimeoutFloor returns the largest ClaimTimeout declared by any
// registration, falling back to 5 minutes if none declare one. Any smaller
// janitor threshold risks reclaiming a delivery its original worker is
// still within its own timeout to finish, letting a second worker claim and
// process it concurrently.
func claimTimeoutFloor(registrations []handlers.Registration) time.Duration {
	floor := 5 * time.Minute
	for _, reg := range registrations {
		if reg.Config.ClaimTimeout > floor {
			floor = reg.Config.ClaimTimeout
		}
	}
	return floor
}

// Name satisfies system.Service.
func (p *Pool) Name() string { return "worker-pool" }

// Start emits a one-shot startup event, launches every Worker, arms the
// cron scheduler, and starts the stale-claim janitor.
func (p *Pool) Start(ctx context.Context) error {
	event, err := outbox.NewEvent("ServerStarted", json.RawMessage(`{}`))
	if err == nil && p.box != nil {
		if err := p.box.Append(ctx, nil, event, nil); err != nil {
			p.logger.WithField("error", err.Error()).Warn("worker: pool: failed to emit ServerStarted")
		}
	}

	for _, sched := range p.schedule {
		name := sched.Name
		run := sched.Run
		if _, err := p.cron.AddFunc(sched.Spec, func() { p.runScheduled(ctx, name, run) }); err != nil {
			return fmt.Errorf("worker: pool: schedule %s: %w", name, err)
		}
	}
	p.cron.Start()

	go p.runJanitor(ctx)

	for _, w := range p.workers {
		go w.Run(ctx)
	}
	return nil
}

// Stop asks every worker to finish its in-flight batch and exit, stops the
// scheduler, and waits for the janitor to return.
func (p *Pool) Stop(ctx context.Context) error {
	close(p.stopCh)
	cronCtx := p.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	for _, w := range p.workers {
		w.Stop()
	}
	for _, w := range p.workers {
		w.Wait()
	}

	select {
	case <-p.doneCh:
	case <-ctx.Done():
	}
	return nil
}

func (p *Pool) runScheduled(ctx context.Context, name string, run func(context.Context) error) {
	err := run(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failStreaks[name]++
		entry := p.logger.WithField("schedule", name).WithField("error", err.Error())
		if p.failStreaks[name] >= circuitTripThreshold {
			entry.WithField("circuit", "tripped").Error("worker: pool: scheduled run failed repeatedly")
		} else {
			entry.Warn("worker: pool: scheduled run failed")
		}
		return
	}
	p.failStreaks[name] = 0
}

func (p *Pool) runJanitor(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.box == nil {
				continue
			}
			n, err := p.box.ResetStaleClaims(ctx, p.claimTimeout)
			if err != nil {
				p.logger.WithField("error", err.Error()).Error("worker: pool: janitor sweep failed")
				continue
			}
			if n > 0 {
				p.logger.WithField("reset_count", n).Info("worker: pool: janitor reclaimed stale claims")
				metrics.RecordJanitorReclaim("all", n)
			}
		}
	}
}
