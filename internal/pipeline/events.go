// Package pipeline implements the deposition lifecycle as a chain of
// handlers: each subscribes to one event type, does its work, and emits the
// next event(s) in the chain through the Outbox bound to its unit of work.
package pipeline

import (
	"encoding/json"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
)

// Event type name constants, used both as Config.EventType and as the
// string literal passed to outbox.NewEvent.
const (
	EventSourceRequested      = "SourceRequested"
	EventSourceRecordReady    = "SourceRecordReady"
	EventSourceRunCompleted   = "SourceRunCompleted"
	EventDepositionSubmitted  = "DepositionSubmitted"
	EventValidationCompleted  = "ValidationCompleted"
	EventValidationFailed     = "ValidationFailed"
	EventDepositionApproved   = "DepositionApproved"
	EventRecordPublished      = "RecordPublished"
	EventIndexRecord          = "IndexRecord"
	EventConventionRegistered = "ConventionRegistered"
	EventConventionReady      = "ConventionReady"
	EventServerStarted        = "ServerStarted"
)

// SourceRequestedPayload triggers one OCI runner invocation against a
// source's image/digest/config, optionally resuming a prior paginated run.
type SourceRequestedPayload struct {
	ConventionSRN string          `json:"convention_srn"`
	Offset        int             `json:"offset"`
	Limit         int             `json:"limit,omitempty"`
	Since         *string         `json:"since,omitempty"`
	Session       json.RawMessage `json:"session,omitempty"`
}

// SourceRecordReadyPayload carries one record surfaced by a source pull,
// ready to become a deposition.
type SourceRecordReadyPayload struct {
	ConventionSRN string         `json:"convention_srn"`
	SourceID      string         `json:"source_id"`
	Metadata      map[string]any `json:"metadata"`
	FilePaths     []string       `json:"file_paths"`
	StagingDir    string         `json:"staging_dir"`
}

// SourceRunCompletedPayload marks the end of one OCI runner invocation,
// whether or not it will be followed by a continuation SourceRequested.
type SourceRunCompletedPayload struct {
	ConventionSRN string `json:"convention_srn"`
	IsFinalChunk  bool   `json:"is_final_chunk"`
}

// DepositionSubmittedPayload is emitted when a deposition moves from draft
// to in_validation, carrying everything ValidateDeposition needs without a
// re-fetch.
type DepositionSubmittedPayload struct {
	DepositionSRN string          `json:"deposition_srn"`
	ConventionSRN string          `json:"convention_srn"`
	Hooks         []hook.Snapshot `json:"hooks"`
	FilesDir      string          `json:"files_dir"`
}

// ValidationCompletedPayload is emitted after every declared hook passes
// (or there were none to run).
type ValidationCompletedPayload struct {
	DepositionSRN string          `json:"deposition_srn"`
	ConventionSRN string          `json:"convention_srn"`
	Status        string          `json:"status"`
	Metadata      json.RawMessage `json:"metadata"`
	Hooks         []hook.Snapshot `json:"hooks"`
	FilesDir      string          `json:"files_dir"`
}

// ValidationFailedPayload is emitted when at least one hook result was
// failed or rejected.
type ValidationFailedPayload struct {
	DepositionSRN string   `json:"deposition_srn"`
	Reasons       []string `json:"reasons"`
}

// DepositionApprovedPayload is emitted once curation is auto-approved,
// carrying enough state for ConvertDepositionToRecord to proceed without a
// re-fetch.
type DepositionApprovedPayload struct {
	DepositionSRN string          `json:"deposition_srn"`
	ConventionSRN string          `json:"convention_srn"`
	Metadata      json.RawMessage `json:"metadata"`
	Hooks         []hook.Snapshot `json:"hooks"`
	FilesDir      string          `json:"files_dir"`
}

// RecordPublishedPayload is emitted once a Deposition has been converted
// into a Record.
type RecordPublishedPayload struct {
	RecordSRN     string          `json:"record_srn"`
	DepositionSRN string          `json:"deposition_srn"`
	Metadata      json.RawMessage `json:"metadata"`
	Hooks         []hook.Snapshot `json:"hooks"`
	FilesDir      string          `json:"files_dir"`
}

// IndexRecordPayload targets one backend with one record to ingest; fanned
// out once per registered backend by FanOutToIndexBackends.
type IndexRecordPayload struct {
	BackendName string          `json:"backend_name"`
	RecordSRN   string          `json:"record_srn"`
	Metadata    json.RawMessage `json:"metadata"`
}

// ConventionRegisteredPayload triggers feature-table creation for a newly
// registered convention's hooks.
type ConventionRegisteredPayload struct {
	ConventionSRN string `json:"convention_srn"`
}

// ConventionReadyPayload follows successful feature-table creation.
type ConventionReadyPayload struct {
	ConventionSRN string `json:"convention_srn"`
}
