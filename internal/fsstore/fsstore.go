// Package fsstore implements the on-disk deposition/source/hook file layout,
// with filename validation against path traversal.
package fsstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// Store implements ports.FileStorage rooted at a base directory.
type Store struct {
	baseDir string
}

// New returns a Store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

var _ ports.FileStorage = (*Store)(nil)

// validateFilename rejects path traversal and absolute paths: no "..", no
// leading "/".
func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("fsstore: filename cannot be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("fsstore: filename %q cannot contain '..'", name)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("fsstore: filename %q cannot be absolute", name)
	}
	return nil
}

func depositionDirName(s srn.SRN) string {
	return fmt.Sprintf("%s_%s", s.Domain(), s.LocalID())
}

// FilesDir returns the canonical directory for a deposition's files.
func (s *Store) FilesDir(depositionSRN srn.SRN) string {
	return filepath.Join(s.baseDir, "depositions", depositionDirName(depositionSRN))
}

// StagingDir returns the per-run staging directory a source pull writes
// into before records become depositions.
func (s *Store) StagingDir(conventionLocalID, runID string) string {
	return filepath.Join(s.baseDir, "sources", conventionLocalID, runID, "staging")
}

// OutputDir returns the per-run output directory (records.jsonl, session.json).
func (s *Store) OutputDir(conventionLocalID, runID string) string {
	return filepath.Join(s.baseDir, "sources", conventionLocalID, runID, "output")
}

// HookFeaturesPath returns the path a hook writes its extracted feature rows
// to: hooks/{deposition_srn}/{hook_name}/features.json under the base
// directory, outside the deposition's own files dir.
func (s *Store) HookFeaturesPath(depositionSRN srn.SRN, hookName string) string {
	return filepath.Join(s.baseDir, "hooks", depositionSRN.String(), hookName, "features.json")
}

// SaveFile writes content under the deposition's canonical dir and returns
// the resulting file metadata, computing a SHA-256 checksum as it streams.
func (s *Store) SaveFile(ctx context.Context, depositionSRN srn.SRN, filename string, content io.Reader, size int64) (deposition.File, error) {
	if err := validateFilename(filename); err != nil {
		return deposition.File{}, err
	}
	dir := s.FilesDir(depositionSRN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}

	dest := filepath.Join(dir, filename)
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: open %s: %w", dest, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), content)
	if err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: write %s: %w", dest, err)
	}

	return deposition.File{
		Name:       filename,
		Size:       n,
		SHA256:     hex.EncodeToString(h.Sum(nil)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// GetFile opens a deposition file for reading.
func (s *Store) GetFile(ctx context.Context, depositionSRN srn.SRN, filename string) (io.ReadCloser, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	path := filepath.Join(s.FilesDir(depositionSRN), filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fsstore: open %s: %w", path, err)
	}
	return f, nil
}

// DeleteFile removes a deposition file. Missing files are not an error
// (idempotent delete).
func (s *Store) DeleteFile(ctx context.Context, depositionSRN srn.SRN, filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	path := filepath.Join(s.FilesDir(depositionSRN), filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsstore: remove %s: %w", path, err)
	}
	return nil
}

// MoveToDeposition relocates a staged file produced by a source run into its
// owning deposition's canonical directory.
func (s *Store) MoveToDeposition(ctx context.Context, stagedPath string, depositionSRN srn.SRN, filename string) (deposition.File, error) {
	if err := validateFilename(filename); err != nil {
		return deposition.File{}, err
	}
	dir := s.FilesDir(depositionSRN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}
	dest := filepath.Join(dir, filename)

	src, err := os.Open(stagedPath)
	if err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: open staged file %s: %w", stagedPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return deposition.File{}, fmt.Errorf("fsstore: stat staged file %s: %w", stagedPath, err)
	}

	f, err := s.SaveFile(ctx, depositionSRN, filename, src, info.Size())
	if err != nil {
		return deposition.File{}, err
	}
	_ = os.Remove(stagedPath)
	_ = dest
	return f, nil
}
