package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

type fakeIdentity struct{}

func (fakeIdentity) Role() handlers.Role { return handlers.RoleAdmin }

type fakeScope struct {
	box *outbox.Outbox
}

func (s fakeScope) Identity() handlers.Identity { return fakeIdentity{} }
func (s fakeScope) Outbox() *outbox.Outbox      { return s.box }
func (s fakeScope) Exec() outbox.Executor       { return nil }

func newFakeScope() (fakeScope, *outbox.Registry) {
	reg := outbox.NewRegistry()
	box := outbox.New(outbox.NewMemoryRepository(), reg)
	return fakeScope{box: box}, reg
}

// fakeFileStorage is an in-memory ports.FileStorage: it never touches disk,
// it just records which files moved where.
type fakeFileStorage struct {
	moved []string
}

func (f *fakeFileStorage) SaveFile(context.Context, srn.SRN, string, io.Reader, int64) (deposition.File, error) {
	return deposition.File{}, nil
}
func (f *fakeFileStorage) GetFile(context.Context, srn.SRN, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("fakeFileStorage: GetFile not supported")
}
func (f *fakeFileStorage) DeleteFile(context.Context, srn.SRN, string) error { return nil }
func (f *fakeFileStorage) FilesDir(depositionSRN srn.SRN) string {
	return "/data/depositions/" + depositionSRN.LocalID()
}
func (f *fakeFileStorage) StagingDir(conventionLocalID, runID string) string {
	return "/data/staging/" + conventionLocalID + "/" + runID
}
func (f *fakeFileStorage) OutputDir(conventionLocalID, runID string) string {
	return "/data/output/" + conventionLocalID + "/" + runID
}
func (f *fakeFileStorage) MoveToDeposition(_ context.Context, stagedPath string, depositionSRN srn.SRN, filename string) (deposition.File, error) {
	f.moved = append(f.moved, stagedPath+"->"+depositionSRN.String()+"/"+filename)
	return deposition.File{Name: filename, Size: 10, SHA256: "deadbeef", UploadedAt: time.Now()}, nil
}
func (f *fakeFileStorage) HookFeaturesPath(depositionSRN srn.SRN, hookName string) string {
	return "/data/depositions/" + depositionSRN.LocalID() + "/features/" + hookName + ".json"
}

var _ ports.FileStorage = (*fakeFileStorage)(nil)

// fakeSourceRunner returns a canned RunResult, or an error if set.
type fakeSourceRunner struct {
	result ports.RunResult
	err    error
}

func (r *fakeSourceRunner) Run(_ context.Context, _, _ string, _ ports.RunnerInputs, filesDir, _ string) (ports.RunResult, error) {
	if r.err != nil {
		return ports.RunResult{}, r.err
	}
	out := r.result
	out.FilesDir = filesDir
	return out, nil
}

var _ ports.OCIRunner = (*fakeSourceRunner)(nil)

// fakeHookRunner returns a fixed hook.Result per hook name.
type fakeHookRunner struct {
	results map[string]hook.Result
	err     error
}

func (r *fakeHookRunner) Run(_ context.Context, snap hook.Snapshot, _ string) (hook.Result, error) {
	if r.err != nil {
		return hook.Result{}, r.err
	}
	if res, ok := r.results[snap.Name]; ok {
		return res, nil
	}
	return hook.Result{HookName: snap.Name, Status: "passed"}, nil
}

var _ ports.HookRunner = (*fakeHookRunner)(nil)

// fakeIndexBackend records what it was asked to ingest.
type fakeIndexBackend struct {
	name       string
	ingested   []ports.IndexItem
	err        error
	flushCalls int
	flushErr   error
}

func (b *fakeIndexBackend) Name() string { return b.name }
func (b *fakeIndexBackend) Ingest(_ context.Context, srn string, metadata json.RawMessage) error {
	if b.err != nil {
		return b.err
	}
	b.ingested = append(b.ingested, ports.IndexItem{SRN: srn, Metadata: metadata})
	return nil
}
func (b *fakeIndexBackend) IngestBatch(_ context.Context, items []ports.IndexItem) error {
	if b.err != nil {
		return b.err
	}
	b.ingested = append(b.ingested, items...)
	return nil
}
func (b *fakeIndexBackend) Delete(context.Context, string) error { return nil }
func (b *fakeIndexBackend) Query(context.Context, string, int) (ports.QueryResult, error) {
	return ports.QueryResult{}, nil
}
func (b *fakeIndexBackend) Health(context.Context) bool      { return true }
func (b *fakeIndexBackend) Count(context.Context) (int, error) { return len(b.ingested), nil }
func (b *fakeIndexBackend) Flush(context.Context) error {
	b.flushCalls++
	return b.flushErr
}

var _ ports.IndexBackend = (*fakeIndexBackend)(nil)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type testError string

func (e testError) Error() string { return string(e) }

var errBoom = testError("boom")
