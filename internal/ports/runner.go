package ports

import (
	"context"
	"encoding/json"
)

// RunnerInputs carries the parameters passed to one OCI runner invocation,
// shared between source pulls (PullFromSource) and hook runs (validation).
type RunnerInputs struct {
	Config map[string]any
	Since  *string
	Limit  int
	Offset int
	// Session is the opaque continuation token a prior run returned, used to
	// resume paginated source pulls. Nil means "no continuation state".
	Session json.RawMessage
}

// SourceRecord is one record surfaced by a source container run.
type SourceRecord struct {
	SourceID  string
	Metadata  map[string]any
	FilePaths []string
}

// RunResult is what one OCI runner invocation returns. A non-nil Session
// signals the run is paginated and PullFromSource should emit a
// continuation SourceRequested.
type RunResult struct {
	Records  []SourceRecord
	Session  json.RawMessage
	FilesDir string
}

// OCIRunner invokes a containerized source puller or hook. Concrete
// implementations (Docker, containerd, Kubernetes Jobs) live outside this
// module; only the port is specified here.
type OCIRunner interface {
	Run(ctx context.Context, image, digest string, inputs RunnerInputs, filesDir, workDir string) (RunResult, error)
}
