// Package hook models containerized validators/feature-extractors declared
// by a Convention and invoked during deposition validation.
package hook

// ResourceLimits bounds a hook container's resource consumption.
type ResourceLimits struct {
	CPUMillis int `json:"cpu_millis,omitempty"`
	MemoryMB  int `json:"memory_mb,omitempty"`
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Column is one feature-table column derived from a hook's feature schema.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// FeatureSchema describes the table a hook's extracted features are inserted
// into, one row per record, keyed by record_srn.
type FeatureSchema struct {
	Columns []Column `json:"columns"`
}

// Manifest declares what a hook produces: its name, the schema of records it
// targets, how many times it may fire per validation run, and its feature
// table shape.
type Manifest struct {
	Name              string        `json:"name"`
	TargetRecordSchema string       `json:"target_record_schema,omitempty"`
	Cardinality       string        `json:"cardinality,omitempty"`
	FeatureSchema     FeatureSchema `json:"feature_schema"`
}

// Definition is the full hook declaration carried on a Convention.
type Definition struct {
	Image     string          `json:"image"`
	Digest    string          `json:"digest"`
	Runner    string          `json:"runner"`
	Config    map[string]any  `json:"config,omitempty"`
	Limits    ResourceLimits  `json:"limits,omitempty"`
	Manifest  Manifest        `json:"manifest"`
}

// Name is a convenience accessor mirroring the manifest's name, since event
// payloads and feature-table naming key off it directly.
func (d Definition) Name() string { return d.Manifest.Name }

// Snapshot is the compact form of a hook carried on pipeline events: enough
// to run validation/feature-extraction without re-fetching the convention.
type Snapshot struct {
	Name          string        `json:"name"`
	Image         string        `json:"image"`
	Digest        string        `json:"digest"`
	FeatureSchema FeatureSchema `json:"feature_schema"`
	Config        map[string]any `json:"config,omitempty"`
}

// ToSnapshot compacts a full Definition down to its event-carried form.
func (d Definition) ToSnapshot() Snapshot {
	return Snapshot{
		Name:          d.Manifest.Name,
		Image:         d.Image,
		Digest:        d.Digest,
		FeatureSchema: d.Manifest.FeatureSchema,
		Config:        d.Config,
	}
}

// Result is the outcome of running one hook against a deposition's files.
type Result struct {
	HookName string   `json:"hook_name"`
	Status   string   `json:"status"` // passed | failed | rejected
	Reasons  []string `json:"reasons,omitempty"`
}

// Failed reports whether this result should fail the owning validation run.
func (r Result) Failed() bool {
	return r.Status == "failed" || r.Status == "rejected"
}
