package catalog

import "time"

// SchemaVersion is the registry document schema version. Bump only on
// incompatible changes to the persisted shape.
const SchemaVersion = "1"

// Metadata is an open key-value map of caller-supplied descriptive fields.
// The registry records it verbatim and never interprets it; domain-specific
// callers layer their own typed views on top.
type Metadata map[string]any

// Workflow returns the free-form "workflow" metadata field, used by List
// filtering. Empty when absent or not a string.
func (m Metadata) Workflow() string {
	if m == nil {
		return ""
	}
	w, _ := m["workflow"].(string)
	return w
}

// Artifact is one registered pipeline output. Artifacts are created exactly
// once, at registration, and are immutable afterwards except for being named
// in later artifacts' InputArtifacts.
type Artifact struct {
	Name           string    `yaml:"name" json:"name"`
	Type           string    `yaml:"type" json:"type"`
	FilePath       string    `yaml:"file_path" json:"file_path"`
	ContentHash    string    `yaml:"content_hash" json:"content_hash"`
	SizeBytes      int64     `yaml:"size_bytes" json:"size_bytes"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
	InputArtifacts []string  `yaml:"input_artifacts,omitempty" json:"input_artifacts,omitempty"`
	Metadata       Metadata  `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Registration carries the validated inputs for a Register call. ContentHash
// and SizeBytes are computed by the caller (the domain never reads files).
type Registration struct {
	Name           string
	Type           string
	FilePath       string
	ContentHash    string
	SizeBytes      int64
	CreatedAt      time.Time
	InputArtifacts []string
	Metadata       Metadata
}
