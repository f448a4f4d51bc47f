package ports

import (
	"context"
	"fmt"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
)

// UnconfiguredOCIRunner satisfies OCIRunner when no container runtime
// adapter has been wired in. Every call fails with a descriptive error
// rather than panicking, so a deployment that hasn't configured a runner
// yet still starts; source-pull deliveries simply retry and eventually
// land in failed, visible on the metrics endpoint.
type UnconfiguredOCIRunner struct{}

func (UnconfiguredOCIRunner) Run(ctx context.Context, image, digest string, inputs RunnerInputs, filesDir, workDir string) (RunResult, error) {
	return RunResult{}, fmt.Errorf("ports: no OCI runner configured (image=%s digest=%s)", image, digest)
}

var _ OCIRunner = UnconfiguredOCIRunner{}

// UnconfiguredHookRunner satisfies HookRunner the same way, for
// deployments that haven't wired a hook execution backend.
type UnconfiguredHookRunner struct{}

func (UnconfiguredHookRunner) Run(ctx context.Context, snapshot hook.Snapshot, filesDir string) (hook.Result, error) {
	return hook.Result{}, fmt.Errorf("ports: no hook runner configured (hook=%s image=%s)", snapshot.Name, snapshot.Image)
}

var _ HookRunner = UnconfiguredHookRunner{}
