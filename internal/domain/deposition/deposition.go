// Package deposition models the Deposition aggregate: a user's (or
// source-ingested) submission-in-progress, which owns files and metadata
// until it is converted into an immutable Record.
package deposition

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// Status is the Deposition lifecycle state.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusInValidation Status = "in_validation"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
)

var (
	// ErrNotDraft is returned when a draft-only mutation targets a
	// deposition in any other status.
	ErrNotDraft = errors.New("deposition: mutation requires draft status")
	// ErrNotInValidation is returned when return_to_draft targets a
	// deposition that is not currently in_validation.
	ErrNotInValidation = errors.New("deposition: return_to_draft requires in_validation status")
	// ErrInsufficientFiles is returned when submit is called before the
	// convention's minimum file count is met.
	ErrInsufficientFiles = errors.New("deposition: insufficient files to submit")
)

// File is one uploaded artifact. The byte content lives on disk, keyed by
// deposition SRN (internal/fsstore); only metadata is carried on the
// aggregate.
type File struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType string    `json:"content_type,omitempty"`
}

// Deposition is the mutable pre-publication aggregate.
type Deposition struct {
	SRN           srn.SRN         `json:"srn"`
	Status        Status          `json:"status"`
	Metadata      json.RawMessage `json:"metadata"`
	Files         []File          `json:"files"`
	ConventionSRN srn.SRN         `json:"convention_srn"`
	OwnerID       string          `json:"owner_id"`
	RecordSRN     *srn.SRN        `json:"record_srn,omitempty"`
	Provenance    json.RawMessage `json:"provenance,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// New constructs a fresh draft deposition owned by ownerID under
// conventionSRN, identified by depositionSRN.
func New(depositionSRN, conventionSRN srn.SRN, ownerID string, now time.Time) *Deposition {
	return &Deposition{
		SRN:           depositionSRN,
		Status:        StatusDraft,
		Metadata:      json.RawMessage(`{}`),
		ConventionSRN: conventionSRN,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetMetadata replaces the metadata blob. Only permitted while draft.
func (d *Deposition) SetMetadata(metadata json.RawMessage, now time.Time) error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: status=%s", ErrNotDraft, d.Status)
	}
	d.Metadata = metadata
	d.UpdatedAt = now
	return nil
}

// AddFile appends a file. Only permitted while draft.
func (d *Deposition) AddFile(f File, now time.Time) error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: status=%s", ErrNotDraft, d.Status)
	}
	d.Files = append(d.Files, f)
	d.UpdatedAt = now
	return nil
}

// RemoveFile drops the named file. Only permitted while draft. A missing
// filename is a no-op, matching upsert-style idempotent handler semantics.
func (d *Deposition) RemoveFile(name string, now time.Time) error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: status=%s", ErrNotDraft, d.Status)
	}
	out := d.Files[:0]
	for _, f := range d.Files {
		if f.Name != name {
			out = append(out, f)
		}
	}
	d.Files = out
	d.UpdatedAt = now
	return nil
}

// RemoveAllFiles clears the file list, used when re-staging a
// source-ingested deposition.
func (d *Deposition) RemoveAllFiles(now time.Time) {
	d.Files = nil
	d.UpdatedAt = now
}

// Submit transitions draft -> in_validation, requiring at least minFiles
// files to already be attached (the convention's file_requirements.min_count).
func (d *Deposition) Submit(minFiles int, now time.Time) error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: status=%s", ErrNotDraft, d.Status)
	}
	if len(d.Files) < minFiles {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFiles, len(d.Files), minFiles)
	}
	d.Status = StatusInValidation
	d.UpdatedAt = now
	return nil
}

// Accept transitions in_validation -> accepted and records the published
// record's SRN.
func (d *Deposition) Accept(recordSRN srn.SRN, now time.Time) error {
	if d.Status != StatusInValidation {
		return fmt.Errorf("%w: status=%s", ErrNotInValidation, d.Status)
	}
	d.Status = StatusAccepted
	d.RecordSRN = &recordSRN
	d.UpdatedAt = now
	return nil
}

// ReturnToDraft transitions in_validation -> draft after a validation
// failure.
func (d *Deposition) ReturnToDraft(now time.Time) error {
	if d.Status != StatusInValidation {
		return fmt.Errorf("%w: status=%s", ErrNotInValidation, d.Status)
	}
	d.Status = StatusDraft
	d.UpdatedAt = now
	return nil
}

// Reject transitions in_validation -> rejected.
func (d *Deposition) Reject(now time.Time) error {
	if d.Status != StatusInValidation {
		return fmt.Errorf("%w: status=%s", ErrNotInValidation, d.Status)
	}
	d.Status = StatusRejected
	d.UpdatedAt = now
	return nil
}
