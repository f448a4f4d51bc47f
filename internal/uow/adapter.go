package uow

import (
	"context"

	"github.com/opensciencearchive/server-sub000/internal/worker"
)

// WorkerFactory adapts Factory to worker.Factory: Begin's concrete
// *UnitOfWork return type doesn't itself satisfy the worker.Scope-returning
// interface method, so this thin wrapper bridges the two.
type WorkerFactory struct {
	f *Factory
}

// NewWorkerFactory wraps f for use as a worker.Factory.
func NewWorkerFactory(f *Factory) WorkerFactory {
	return WorkerFactory{f: f}
}

func (a WorkerFactory) Begin(ctx context.Context) (worker.Scope, error) {
	return a.f.Begin(ctx)
}

var _ worker.Factory = WorkerFactory{}
