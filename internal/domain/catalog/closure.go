package catalog

// ResolveClosure returns the full transitive dependency set of the given
// root artifacts: the roots themselves plus everything reachable by
// following InputArtifacts edges, with no duplicates.
//
// The result is in registry insertion order, which is deterministic and,
// because inputs always precede the artifacts derived from them, also a
// valid topological order of the provenance DAG.
//
// A dangling reference (a root not in the registry, or an input name
// recorded on an artifact but absent from the catalog) fails with
// ArtifactNotFoundError; the latter can only happen if the persisted
// registry was edited out-of-band, so the traversal doubles as an integrity
// check.
func (r Registry) ResolveClosure(rootNames []string) ([]Artifact, error) {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(rootNames))

	for _, name := range rootNames {
		if _, ok := r.byName[name]; !ok {
			return nil, &ArtifactNotFoundError{Name: name}
		}
		if !seen[name] {
			seen[name] = true
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		a := r.byName[name]
		for _, input := range a.InputArtifacts {
			if _, ok := r.byName[input]; !ok {
				return nil, &ArtifactNotFoundError{Name: input, ReferencedBy: name}
			}
			if !seen[input] {
				seen[input] = true
				queue = append(queue, input)
			}
		}
	}

	closure := make([]Artifact, 0, len(seen))
	for _, name := range r.order {
		if seen[name] {
			closure = append(closure, r.byName[name])
		}
	}
	return closure, nil
}
