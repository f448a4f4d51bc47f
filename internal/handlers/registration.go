package handlers

import "github.com/opensciencearchive/server-sub000/internal/outbox"

// Registration pairs a handler's Config and Authorization gate with its
// constructor. The constructor takes a Scope — minimal interface the
// internal/uow.UnitOfWork satisfies — rather than importing internal/uow
// directly, so this package stays a leaf the uow package itself can import
// (uow.System implements Identity).
type Registration struct {
	Config Config
	Auth   Authorization
	New    func(Scope) Handler
}

// Scope is what a handler constructor needs from the enclosing unit of
// work: the bound Outbox to emit further events through, an Executor bound
// to the same transaction for the handler's own aggregate writes, and the
// acting Identity for any inline authorization checks a handler performs on
// commands it issues to other services.
type Scope interface {
	Identity() Identity
	Outbox() *outbox.Outbox
	Exec() outbox.Executor
}

// Validate checks a Registration is well-formed before the pool starts: a
// missing authorization or a missing event type is a startup error.
func (r Registration) Validate() error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if !r.Auth.Declared() {
		return errConfig("handler for " + r.Config.EventType + " is missing an authorization gate")
	}
	if r.New == nil {
		return errConfig("handler for " + r.Config.EventType + " is missing a constructor")
	}
	return nil
}
