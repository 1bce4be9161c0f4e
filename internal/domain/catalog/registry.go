package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Registry errors for conditions that carry no per-artifact detail.
var (
	ErrEmptyName = errors.New("artifact name cannot be empty")
)

// Registry is the full artifact catalog. The zero value is not usable; call
// New or construct via FromArtifacts.
//
// Registry has value semantics: Register and Prune return a new Registry and
// never mutate the receiver. Insertion order is preserved and is load-bearing
// for List ordering and Latest tie-breaks.
type Registry struct {
	version        string
	revision       int64
	lastModifiedAt time.Time

	byName map[string]Artifact
	order  []string
}

// New returns an empty registry at the current schema version.
func New() Registry {
	return Registry{
		version: SchemaVersion,
		byName:  make(map[string]Artifact),
	}
}

// FromArtifacts reconstructs a registry from a persisted document. Artifacts
// must be in insertion order; a duplicate name is a corrupt document and
// returns an error rather than silently keeping one of the two.
func FromArtifacts(version string, revision int64, lastModifiedAt time.Time, artifacts []Artifact) (Registry, error) {
	r := Registry{
		version:        version,
		revision:       revision,
		lastModifiedAt: lastModifiedAt,
		byName:         make(map[string]Artifact, len(artifacts)),
		order:          make([]string, 0, len(artifacts)),
	}
	for _, a := range artifacts {
		if err := validateName(a.Name); err != nil {
			return Registry{}, fmt.Errorf("invalid artifact name in persisted registry: %w", err)
		}
		if _, exists := r.byName[a.Name]; exists {
			return Registry{}, fmt.Errorf("duplicate artifact name %q in persisted registry", a.Name)
		}
		r.byName[a.Name] = a
		r.order = append(r.order, a.Name)
	}
	return r, nil
}

// Version returns the schema version string.
func (r Registry) Version() string { return r.version }

// Revision returns the persistence revision counter observed at load time.
// It increments on every successful save and anchors the optimistic
// concurrency check in the registry store.
func (r Registry) Revision() int64 { return r.revision }

// LastModifiedAt returns the timestamp of the most recent mutation.
func (r Registry) LastModifiedAt() time.Time { return r.lastModifiedAt }

// Len returns the number of registered artifacts.
func (r Registry) Len() int { return len(r.order) }

// Artifacts returns all artifacts in insertion order.
func (r Registry) Artifacts() []Artifact {
	out := make([]Artifact, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Get returns the artifact with the given name.
func (r Registry) Get(name string) (Artifact, error) {
	a, ok := r.byName[name]
	if !ok {
		return Artifact{}, &ArtifactNotFoundError{Name: name}
	}
	return a, nil
}

// Has reports whether an artifact with the given name is registered.
func (r Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Register validates the registration against the current catalog state and
// returns a new Registry with the artifact appended. The receiver is never
// modified: on any validation failure the registry the caller holds is
// exactly the registry it held before.
//
// Validation order: name present, type allowed, name unique, every
// input_artifacts entry already registered. Input references can only point
// at existing artifacts, which keeps the provenance graph acyclic by
// construction.
func (r Registry) Register(reg Registration, allowedTypes []string) (Registry, error) {
	if err := validateName(reg.Name); err != nil {
		return Registry{}, err
	}
	if !slices.Contains(allowedTypes, reg.Type) {
		return Registry{}, &UnknownTypeError{Name: reg.Name, Type: reg.Type, Allowed: allowedTypes}
	}
	if _, exists := r.byName[reg.Name]; exists {
		return Registry{}, &DuplicateNameError{Name: reg.Name}
	}
	for _, input := range reg.InputArtifacts {
		if _, exists := r.byName[input]; !exists {
			return Registry{}, &ArtifactNotFoundError{Name: input, ReferencedBy: reg.Name}
		}
	}

	createdAt := reg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	artifact := Artifact{
		Name:           reg.Name,
		Type:           reg.Type,
		FilePath:       reg.FilePath,
		ContentHash:    reg.ContentHash,
		SizeBytes:      reg.SizeBytes,
		CreatedAt:      createdAt.UTC(),
		InputArtifacts: slices.Clone(reg.InputArtifacts),
		Metadata:       maps.Clone(reg.Metadata),
	}

	next := r.clone()
	next.byName[artifact.Name] = artifact
	next.order = append(next.order, artifact.Name)
	next.lastModifiedAt = artifact.CreatedAt
	return next, nil
}

// validateName rejects names that cannot serve as a single path segment.
// Artifact names become directory entries in bundle archives, so a
// separator or dot segment would let an artifact escape its staging tree.
func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Type matches the artifact type tag exactly.
	Type string
	// Workflow matches the free-form "workflow" metadata field.
	Workflow string
}

// List returns artifacts matching the filter, in insertion order.
func (r Registry) List(f Filter) []Artifact {
	out := make([]Artifact, 0)
	for _, name := range r.order {
		a := r.byName[name]
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Workflow != "" && a.Metadata.Workflow() != f.Workflow {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Latest returns the artifact of the given type with the greatest recorded
// CreatedAt; ties are broken by insertion order, later insertion winning.
// Only the recorded timestamp is consulted, never filesystem metadata, so
// the result is reproducible across machines and filesystem copies.
func (r Registry) Latest(artifactType string) (Artifact, error) {
	var (
		best  Artifact
		found bool
	)
	for _, name := range r.order {
		a := r.byName[name]
		if a.Type != artifactType {
			continue
		}
		// >= so a later insertion wins a timestamp tie.
		if !found || !a.CreatedAt.Before(best.CreatedAt) {
			best = a
			found = true
		}
	}
	if !found {
		return Artifact{}, &ArtifactNotFoundError{Type: artifactType}
	}
	return best, nil
}

// clone returns a copy with fresh map and slice backing, so mutations on
// the copy cannot reach the receiver.
func (r Registry) clone() Registry {
	next := Registry{
		version:        r.version,
		revision:       r.revision,
		lastModifiedAt: r.lastModifiedAt,
		byName:         make(map[string]Artifact, len(r.byName)+1),
		order:          make([]string, len(r.order), len(r.order)+1),
	}
	for name, a := range r.byName {
		next.byName[name] = a
	}
	copy(next.order, r.order)
	return next
}

// WithRevision returns a copy carrying the given persistence revision.
// Used by the registry store after a successful save.
func (r Registry) WithRevision(revision int64) Registry {
	next := r.clone()
	next.revision = revision
	return next
}
