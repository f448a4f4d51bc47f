// Package uow implements an explicit per-poll-cycle Unit of Work: a fresh
// *sql.Tx, a System identity, and an Outbox bound to that transaction,
// constructed once per Worker.pollOnce invocation.
package uow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// System is the identity Worker-driven handler invocations act as: a
// privileged internal principal for background work. It satisfies any
// Authorization policy (see internal/handlers).
type System struct {
	Name string
}

// DefaultSystem is the identity used by all worker-driven unit-of-work
// scopes unless a test overrides it.
var DefaultSystem = System{Name: "system"}

// Role reports the System identity's authorization level. It is always the
// highest role so worker-driven handler invocations satisfy any
// handlers.Authorization gate without a special case in the executor.
func (s System) Role() handlers.Role { return handlers.RoleAdmin }

var _ handlers.Identity = System{}

// UnitOfWork bundles a transaction, the acting identity, and an Outbox bound
// to that transaction so event emission and business writes commit or roll
// back together.
type UnitOfWork struct {
	Tx     *sql.Tx
	System System
	Box    *outbox.Outbox

	committed bool
}

// Identity returns the acting System identity, satisfying handlers.Scope.
func (u *UnitOfWork) Identity() handlers.Identity { return u.System }

// Outbox returns the Outbox bound to this unit of work's transaction,
// satisfying handlers.Scope.
func (u *UnitOfWork) Outbox() *outbox.Outbox { return u.Box }

// Exec returns the transaction itself as an outbox.Executor, so a handler's
// aggregate writes land in the same transaction as its event emission.
func (u *UnitOfWork) Exec() outbox.Executor { return u.Tx }

var _ handlers.Scope = (*UnitOfWork)(nil)

// Factory builds a fresh UnitOfWork per poll cycle against db, sharing reg
// (the subscription registry) and repo (the event
// repository) across every scope it creates.
type Factory struct {
	db   *sql.DB
	repo outbox.Repository
	reg  *outbox.Registry
}

// NewFactory builds a Factory over db, repo, and reg.
func NewFactory(db *sql.DB, repo outbox.Repository, reg *outbox.Registry) *Factory {
	return &Factory{db: db, repo: repo, reg: reg}
}

// Begin opens a fresh transaction and wraps it in a UnitOfWork.
func (f *Factory) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("uow: begin: %w", err)
	}
	txRepo := &txScopedRepository{Repository: f.repo, tx: tx}
	return &UnitOfWork{
		Tx:     tx,
		System: DefaultSystem,
		Box:    outbox.New(txRepo, f.reg),
	}, nil
}

// Commit commits the underlying transaction. Safe to call at most once.
func (u *UnitOfWork) Commit() error {
	u.committed = true
	if err := u.Tx.Commit(); err != nil {
		return fmt.Errorf("uow: commit: %w", err)
	}
	return nil
}

// Rollback rolls back the underlying transaction. A no-op if Commit already
// succeeded, matching the common defer-rollback-after-commit idiom.
func (u *UnitOfWork) Rollback() error {
	if u.committed {
		return nil
	}
	if err := u.Tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("uow: rollback: %w", err)
	}
	return nil
}

// txScopedRepository pins Append's SaveWithDeliveries to this UoW's
// transaction regardless of what Executor a caller passes (or omits),
// guaranteeing the transactional-outbox property without requiring every
// handler to thread the *sql.Tx through by hand.
type txScopedRepository struct {
	outbox.Repository
	tx *sql.Tx
}

func (r *txScopedRepository) SaveWithDeliveries(ctx context.Context, _ outbox.Executor, event outbox.Event, consumerGroups []string, routingKey *string) error {
	return r.Repository.SaveWithDeliveries(ctx, r.tx, event, consumerGroups, routingKey)
}
