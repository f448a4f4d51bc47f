// Package system provides the lifecycle-manager pattern the WorkerPool and
// its owned components (scheduler, janitor) compose into.
package system

import "context"

// Service is a lifecycle-managed component: the worker Pool and the
// metrics server implement it.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
