// Package registryfile persists the artifact catalog as a single YAML
// document with atomic replace semantics and an optimistic concurrency
// check. The file stays human-readable and diffable; artifacts are stored
// as an ordered sequence because insertion order drives List ordering and
// Latest tie-breaks.
package registryfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/log"
)

// document is the on-disk shape of the registry file.
type document struct {
	Version        string             `yaml:"version"`
	Revision       int64              `yaml:"revision"`
	LastModifiedAt time.Time          `yaml:"last_modified_at"`
	Artifacts      []catalog.Artifact `yaml:"artifacts"`
}

// Store reads and writes the registry file at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store for the given registry file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the registry file path.
func (s *Store) Path() string { return s.path }

// Load reads the registry from disk. A missing file is not an error: it
// yields an empty registry at revision 0, so the first save creates the
// file. A file that exists but does not parse is CorruptRegistryError;
// the store never silently replaces a corrupt registry.
func (s *Store) Load() (catalog.Registry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		log.Debug(log.CatStore, "registry file missing, starting empty", "path", s.path)
		return catalog.New(), nil
	}
	if err != nil {
		return catalog.Registry{}, fmt.Errorf("reading registry: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return catalog.Registry{}, &CorruptRegistryError{Path: s.path, Err: err}
	}

	reg, err := catalog.FromArtifacts(doc.Version, doc.Revision, doc.LastModifiedAt, doc.Artifacts)
	if err != nil {
		return catalog.Registry{}, &CorruptRegistryError{Path: s.path, Err: err}
	}
	return reg, nil
}

// Save writes the registry to disk atomically: encode to a temp file in the
// destination directory, fsync, then rename over the destination. Readers
// see either the old complete document or the new complete document, never
// a partial write.
//
// Save enforces optimistic concurrency: the registry carries the revision
// observed at Load, and if the on-disk revision has moved since then the
// write is rejected with ConcurrentModificationError. On success the saved
// document carries revision+1, and the returned registry reflects it.
func (s *Store) Save(reg catalog.Registry) (catalog.Registry, error) {
	if found, err := s.diskRevision(); err != nil {
		return catalog.Registry{}, err
	} else if found != reg.Revision() {
		return catalog.Registry{}, &ConcurrentModificationError{
			Path:   s.path,
			Loaded: reg.Revision(),
			Found:  found,
		}
	}

	next := reg.WithRevision(reg.Revision() + 1)
	doc := document{
		Version:        next.Version(),
		Revision:       next.Revision(),
		LastModifiedAt: next.LastModifiedAt(),
		Artifacts:      next.Artifacts(),
	}

	data, err := marshalDocument(doc)
	if err != nil {
		return catalog.Registry{}, fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return catalog.Registry{}, fmt.Errorf("creating registry directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".registry.yaml.tmp.*")
	if err != nil {
		return catalog.Registry{}, fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return catalog.Registry{}, fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return catalog.Registry{}, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return catalog.Registry{}, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return catalog.Registry{}, fmt.Errorf("renaming temp file: %w", err)
	}

	log.Debug(log.CatStore, "registry saved", "path", s.path, "revision", next.Revision(), "artifacts", next.Len())
	return next, nil
}

// diskRevision reads only the revision field of the current on-disk
// document. Missing file means revision 0, matching what Load reports.
// A corrupt file fails here too: a save must not clobber a document a
// human needs to inspect.
func (s *Store) diskRevision() (int64, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading registry: %w", err)
	}

	var header struct {
		Revision int64 `yaml:"revision"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return 0, &CorruptRegistryError{Path: s.path, Err: err}
	}
	return header.Revision, nil
}

func marshalDocument(doc document) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return nil, err
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}
