// Package record models the immutable, published artifact created from an
// approved Deposition.
package record

import (
	"encoding/json"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// IndexState tracks one backend's ingestion status for a Record.
type IndexState struct {
	ExternalID string     `json:"external_id"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
}

// Record is the immutable published aggregate. Once constructed it is never
// mutated in place; re-indexing replaces the relevant Indexes entry via a
// fresh copy written back by the repository.
type Record struct {
	SRN           srn.SRN               `json:"srn"`
	DepositionSRN srn.SRN               `json:"deposition_srn"`
	Metadata      json.RawMessage       `json:"metadata"`
	Indexes       map[string]IndexState `json:"indexes"`
	PublishedAt   time.Time             `json:"published_at"`
}

// New mints version 1 of a record from an accepted deposition. Each call
// allocates a fresh SRN local id upstream (in ConvertDepositionToRecord); a
// retried conversion therefore produces a distinct record rather than
// colliding with the first.
func New(recordSRN, depositionSRN srn.SRN, metadata json.RawMessage, now time.Time) Record {
	return Record{
		SRN:           recordSRN,
		DepositionSRN: depositionSRN,
		Metadata:      metadata,
		Indexes:       make(map[string]IndexState),
		PublishedAt:   now,
	}
}

// WithIndexed returns a copy with backend marked indexed at now under
// externalID.
func (r Record) WithIndexed(backend, externalID string, now time.Time) Record {
	out := r
	out.Indexes = make(map[string]IndexState, len(r.Indexes)+1)
	for k, v := range r.Indexes {
		out.Indexes[k] = v
	}
	t := now
	out.Indexes[backend] = IndexState{ExternalID: externalID, IndexedAt: &t}
	return out
}
