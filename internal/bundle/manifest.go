package bundle

import (
	"time"

	domain "github.com/zjrosen/reliq/internal/domain/catalog"
)

// ManifestSchemaVersion is the manifest document schema version.
const ManifestSchemaVersion = "1"

// ManifestFileName is the manifest's path inside the archive.
const ManifestFileName = "manifest.yaml"

// Manifest describes a release bundle: which artifacts it contains, where
// each lives inside the archive, and the provenance edges between them.
type Manifest struct {
	Name          string          `yaml:"name"`
	ID            string          `yaml:"id"`
	SchemaVersion string          `yaml:"schema_version"`
	CreatedAt     time.Time       `yaml:"created_at"`
	Artifacts     []ManifestEntry `yaml:"artifacts"`
}

// ManifestEntry is one bundled artifact.
type ManifestEntry struct {
	Name           string          `yaml:"name"`
	Type           string          `yaml:"type"`
	OriginalPath   string          `yaml:"original_path"`
	ArchivePath    string          `yaml:"archive_path"`
	ContentHash    string          `yaml:"content_hash"`
	SizeBytes      int64           `yaml:"size_bytes"`
	CreatedAt      time.Time       `yaml:"created_at"`
	InputArtifacts []string        `yaml:"input_artifacts,omitempty"`
	Metadata       domain.Metadata `yaml:"metadata,omitempty"`
}
