// Package convention models the immutable, versioned template describing a
// deposition kind's schema, file requirements, hooks, and optional source.
package convention

import (
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/domain/source"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// FileRequirements bounds what a Deposition under this convention may
// attach.
type FileRequirements struct {
	AcceptedTypes []string `json:"accepted_types,omitempty"`
	MinCount      int      `json:"min_count"`
	MaxCount      int      `json:"max_count"`
	MaxFileSize   int64    `json:"max_file_size"`
}

// Convention is the immutable template aggregate.
type Convention struct {
	SRN              srn.SRN            `json:"srn"`
	Title            string             `json:"title"`
	SchemaSRN        srn.SRN            `json:"schema_srn"`
	FileRequirements FileRequirements   `json:"file_requirements"`
	Hooks            []hook.Definition  `json:"hooks"`
	Source           *source.Definition `json:"source,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// New constructs a Convention. Conventions carry no mutators: a new version
// is a new SRN with a new value, never an in-place edit.
func New(conventionSRN, schemaSRN srn.SRN, title string, reqs FileRequirements, hooks []hook.Definition, src *source.Definition, now time.Time) Convention {
	return Convention{
		SRN:              conventionSRN,
		Title:            title,
		SchemaSRN:        schemaSRN,
		FileRequirements: reqs,
		Hooks:            hooks,
		Source:           src,
		CreatedAt:        now,
	}
}

// HookSnapshots compacts every declared hook to its event-carried form, in
// declaration order.
func (c Convention) HookSnapshots() []hook.Snapshot {
	out := make([]hook.Snapshot, len(c.Hooks))
	for i, h := range c.Hooks {
		out[i] = h.ToSnapshot()
	}
	return out
}

// RequiresManualCuration reports whether an accepted validation run still
// needs a human curator before the deposition can be converted to a record.
// v1 conventions never require manual curation (AutoApproveCuration always
// proceeds); the method exists so a future convention schema version can flip
// it without touching the handler.
func (c Convention) RequiresManualCuration() bool {
	return false
}
