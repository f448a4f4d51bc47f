package ports

import (
	"context"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
)

// HookRunner invokes one validation/feature-extraction hook container
// against a deposition's files. Kept distinct from OCIRunner because a hook
// run's result (pass/fail/rejected) has a different shape than a source
// pull's record stream.
type HookRunner interface {
	Run(ctx context.Context, snapshot hook.Snapshot, filesDir string) (hook.Result, error)
}
