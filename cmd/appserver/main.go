package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/api"
	"github.com/opensciencearchive/server-sub000/internal/config"
	"github.com/opensciencearchive/server-sub000/internal/fsstore"
	"github.com/opensciencearchive/server-sub000/internal/logging"
	"github.com/opensciencearchive/server-sub000/internal/metrics"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/pipeline"
	"github.com/opensciencearchive/server-sub000/internal/platform/database"
	"github.com/opensciencearchive/server-sub000/internal/platform/migrations"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/store"
	"github.com/opensciencearchive/server-sub000/internal/system"
	"github.com/opensciencearchive/server-sub000/internal/uow"
	"github.com/opensciencearchive/server-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault("appserver").WithField("error", err.Error()).Fatal("appserver: load config")
	}
	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.ConnMaxLifetimeDuration())
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: open database")
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			logger.WithField("error", err.Error()).Fatal("appserver: apply migrations")
		}
	}

	files, err := fsstore.New(cfg.FilesRoot)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: init file store")
	}

	deps := pipeline.Dependencies{
		Depositions: store.NewPostgresDepositionRepository(db),
		Conventions: store.NewPostgresConventionRepository(db),
		Records:     store.NewPostgresRecordRepository(db),
		Files:       files,
		// No vector/keyword backend is wired by default: VectorIndexHandler
		// and KeywordIndexHandler skip their batch rather than retry forever
		// when their named backend isn't registered here. Operators add
		// backends by constructing this registry with real adapters before
		// calling BuildRegistrations.
		Indexes:      ports.NewIndexRegistry(map[string]ports.IndexBackend{}),
		SourceRunner: ports.UnconfiguredOCIRunner{},
		HookRunner:   ports.UnconfiguredHookRunner{},
	}
	registrations := pipeline.BuildRegistrations(deps)

	eventRepo := outbox.NewPostgresRepository(db)
	registry := outbox.NewRegistry()
	for _, reg := range registrations {
		registry.Subscribe(reg.Config.EventType, reg.Config.ConsumerGroup)
	}

	uowFactory := uow.NewFactory(db, eventRepo, registry)
	box := outbox.New(eventRepo, registry)
	eventLog := outbox.NewEventLog(eventRepo)

	schedules, err := buildSourceSchedules(ctx, deps.Conventions, uowFactory)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: build source schedules")
	}

	pool, err := worker.BuildPool(registrations, uow.NewWorkerFactory(uowFactory), box, schedules, worker.PoolConfig{
		JanitorInterval: time.Duration(cfg.Scheduler.JanitorIntervalSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: build worker pool")
	}

	manager := system.NewManager()
	if err := manager.Register(pool); err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: register worker pool")
	}
	if err := manager.Register(newMetricsServer(cfg.Metrics.Addr, logger, eventLog)); err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: register metrics server")
	}

	if err := manager.Start(ctx); err != nil {
		logger.WithField("error", err.Error()).Fatal("appserver: start")
	}
	logger.Info("appserver: started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("appserver: shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := manager.Stop(stopCtx); err != nil {
		logger.WithField("error", err.Error()).Error("appserver: stop")
	}
}

// buildSourceSchedules loads every convention with an active cron-scheduled
// source at startup and turns each into a worker.Schedule that, on its own
// cadence, opens a fresh unit of work and appends a SourceRequested event
// continuing that source's pull from offset 0.
func buildSourceSchedules(ctx context.Context, conventions store.ConventionRepository, factory *uow.Factory) ([]worker.Schedule, error) {
	convs, err := conventions.ListWithActiveSources(ctx, nil)
	if err != nil {
		return nil, err
	}

	schedules := make([]worker.Schedule, 0, len(convs))
	for _, c := range convs {
		conventionSRN := c.SRN.String()
		limit := 0
		if c.Source.InitialRun != nil {
			limit = c.Source.InitialRun.Limit
		}
		cronSpec := c.Source.CronSchedule

		schedules = append(schedules, worker.Schedule{
			Name: "source-pull:" + conventionSRN,
			Spec: cronSpec,
			Run: func(ctx context.Context) error {
				scope, err := factory.Begin(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = scope.Rollback() }()

				ev, err := outbox.NewEvent(pipeline.EventSourceRequested, pipeline.SourceRequestedPayload{
					ConventionSRN: conventionSRN,
					Offset:        0,
					Limit:         limit,
				})
				if err != nil {
					return err
				}
				if err := scope.Outbox().Append(ctx, scope.Exec(), ev, nil); err != nil {
					return err
				}
				return scope.Commit()
			},
		})
	}
	return schedules, nil
}

// metricsServer exposes the Prometheus handler and a liveness endpoint as a
// system.Service, so it starts and stops alongside the worker pool under
// the same lifecycle manager.
type metricsServer struct {
	addr     string
	logger   *logging.Logger
	eventLog *outbox.EventLog
	srv      *http.Server
}

func newMetricsServer(addr string, logger *logging.Logger, eventLog *outbox.EventLog) *metricsServer {
	return &metricsServer{addr: addr, logger: logger, eventLog: eventLog}
}

func (m *metricsServer) Name() string { return "metrics-server" }

func (m *metricsServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", api.NewEventsHandler(m.eventLog, m.logger))
	m.srv = &http.Server{Addr: m.addr, Handler: mux}
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.WithField("error", err.Error()).Error("metrics-server: listen failed")
		}
	}()
	return nil
}

func (m *metricsServer) Stop(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

var _ system.Service = (*metricsServer)(nil)
