package catalog

import "sort"

// Prune returns a new Registry with old artifacts of the given type removed,
// keeping the keepLatestN most recent by CreatedAt (insertion order breaks
// ties, later insertion counting as newer). The second return value lists
// the file paths of the removed artifacts so the caller can unlink them;
// the registry itself never deletes files.
//
// An artifact is retained, regardless of age, while any surviving artifact
// still references it through InputArtifacts: pruning must not introduce
// dangling provenance edges.
func (r Registry) Prune(artifactType string, keepLatestN int) (Registry, []string) {
	if keepLatestN < 0 {
		keepLatestN = 0
	}

	// Candidates of the target type, newest first.
	type candidate struct {
		name     string
		position int
	}
	candidates := make([]candidate, 0)
	for pos, name := range r.order {
		if r.byName[name].Type == artifactType {
			candidates = append(candidates, candidate{name: name, position: pos})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := r.byName[candidates[i].name], r.byName[candidates[j].name]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return candidates[i].position > candidates[j].position
	})

	removal := make(map[string]bool)
	for i := keepLatestN; i < len(candidates); i++ {
		removal[candidates[i].name] = true
	}
	if len(removal) == 0 {
		return r, nil
	}

	// Retain anything still referenced by a survivor. Iterate to a fixpoint:
	// un-removing an artifact may expose references that protect others.
	for changed := true; changed; {
		changed = false
		for _, name := range r.order {
			if removal[name] {
				continue
			}
			for _, input := range r.byName[name].InputArtifacts {
				if removal[input] {
					delete(removal, input)
					changed = true
				}
			}
		}
	}
	if len(removal) == 0 {
		return r, nil
	}

	next := Registry{
		version:        r.version,
		revision:       r.revision,
		lastModifiedAt: r.lastModifiedAt,
		byName:         make(map[string]Artifact, len(r.byName)-len(removal)),
		order:          make([]string, 0, len(r.order)-len(removal)),
	}
	removed := make([]string, 0, len(removal))
	for _, name := range r.order {
		a := r.byName[name]
		if removal[name] {
			removed = append(removed, a.FilePath)
			continue
		}
		next.byName[name] = a
		next.order = append(next.order, name)
	}
	return next, removed
}
