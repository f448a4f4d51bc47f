package ports

import (
	"context"
	"io"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// FileStorage is the deposition file adapter: save/fetch/delete bytes keyed
// by deposition SRN, plus path helpers handlers use to stage and move files
// between a source run's staging area and a deposition's canonical dir.
type FileStorage interface {
	SaveFile(ctx context.Context, depositionSRN srn.SRN, filename string, content io.Reader, size int64) (deposition.File, error)
	GetFile(ctx context.Context, depositionSRN srn.SRN, filename string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, depositionSRN srn.SRN, filename string) error
	FilesDir(depositionSRN srn.SRN) string

	// StagingDir and OutputDir return the per-run scratch paths a source
	// pull writes into before its records are turned into depositions.
	StagingDir(conventionLocalID, runID string) string
	OutputDir(conventionLocalID, runID string) string

	// MoveToDeposition relocates a staged file into its owning deposition's
	// canonical directory, used by CreateDepositionFromSource.
	MoveToDeposition(ctx context.Context, stagedPath string, depositionSRN srn.SRN, filename string) (deposition.File, error)

	// HookFeaturesPath returns the path a hook writes its extracted feature
	// rows to, read back by InsertRecordFeatures.
	HookFeaturesPath(depositionSRN srn.SRN, hookName string) string
}
