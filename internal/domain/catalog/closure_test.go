package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// diamond builds raw -> clean -> {table, fig} -> report.
func diamond(t *testing.T) Registry {
	t.Helper()
	r := mustRegister(t, New(), mkReg("raw", "raw_input"))
	r = mustRegister(t, r, mkReg("clean", "intermediate_data", "raw"))
	r = mustRegister(t, r, mkReg("tbl", "table", "clean"))
	r = mustRegister(t, r, mkReg("fig", "plot_object", "clean"))
	r = mustRegister(t, r, mkReg("report", "report", "tbl", "fig"))
	return r
}

func names(artifacts []Artifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.Name
	}
	return out
}

func TestRegistry_ResolveClosure_SingleRoot(t *testing.T) {
	r := diamond(t)

	closure, err := r.ResolveClosure([]string{"report"})
	require.NoError(t, err)
	require.Equal(t, []string{"raw", "clean", "tbl", "fig", "report"}, names(closure))
}

func TestRegistry_ResolveClosure_SharedDependencyOnce(t *testing.T) {
	r := diamond(t)

	// tbl and fig both depend on clean; clean and raw must appear once.
	closure, err := r.ResolveClosure([]string{"tbl", "fig"})
	require.NoError(t, err)
	require.Equal(t, []string{"raw", "clean", "tbl", "fig"}, names(closure))
}

func TestRegistry_ResolveClosure_LeafRoot(t *testing.T) {
	r := diamond(t)

	closure, err := r.ResolveClosure([]string{"raw"})
	require.NoError(t, err)
	require.Equal(t, []string{"raw"}, names(closure))
}

func TestRegistry_ResolveClosure_DuplicateRoots(t *testing.T) {
	r := diamond(t)

	closure, err := r.ResolveClosure([]string{"clean", "clean"})
	require.NoError(t, err)
	require.Equal(t, []string{"raw", "clean"}, names(closure))
}

func TestRegistry_ResolveClosure_UnknownRoot(t *testing.T) {
	r := diamond(t)

	_, err := r.ResolveClosure([]string{"ghost"})

	var nfErr *ArtifactNotFoundError
	require.ErrorAs(t, err, &nfErr)
	require.Equal(t, "ghost", nfErr.Name)
	require.Empty(t, nfErr.ReferencedBy)
}

func TestRegistry_ResolveClosure_DanglingEdge(t *testing.T) {
	// Simulate an out-of-band edit: a persisted document whose artifact
	// references a name the catalog no longer holds.
	artifacts := []Artifact{
		{Name: "broken", Type: "table", InputArtifacts: []string{"vanished"}},
	}
	r, err := FromArtifacts(SchemaVersion, 1, artifacts[0].CreatedAt, artifacts)
	require.NoError(t, err)

	_, err = r.ResolveClosure([]string{"broken"})

	var nfErr *ArtifactNotFoundError
	require.ErrorAs(t, err, &nfErr)
	require.Equal(t, "vanished", nfErr.Name)
	require.Equal(t, "broken", nfErr.ReferencedBy)
}

// TestRegistry_ResolveClosure_Properties checks closure invariants over
// randomly generated DAGs: every result is duplicate-free, contains the
// roots, is closed under input edges, and respects insertion order.
func TestRegistry_ResolveClosure_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 25).Draw(rt, "n")

		r := New()
		allNames := make([]string, 0, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("a%02d", i)
			var inputs []string
			if i > 0 {
				// Inputs drawn only from already-registered names, so
				// the graph is acyclic by construction.
				k := rapid.IntRange(0, min(i, 3)).Draw(rt, "k")
				picked := make(map[int]bool)
				for len(picked) < k {
					picked[rapid.IntRange(0, i-1).Draw(rt, "input")] = true
				}
				for idx := range picked {
					inputs = append(inputs, allNames[idx])
				}
			}
			var err error
			r, err = r.Register(mkReg(name, "intermediate_data", inputs...), testTypes)
			require.NoError(rt, err)
			allNames = append(allNames, name)
		}

		numRoots := rapid.IntRange(1, n).Draw(rt, "numRoots")
		roots := make([]string, 0, numRoots)
		for i := 0; i < numRoots; i++ {
			roots = append(roots, allNames[rapid.IntRange(0, n-1).Draw(rt, "root")])
		}

		closure, err := r.ResolveClosure(roots)
		require.NoError(rt, err)

		inClosure := make(map[string]int)
		for _, a := range closure {
			inClosure[a.Name]++
		}
		for name, count := range inClosure {
			require.Equal(rt, 1, count, "duplicate %s in closure", name)
		}
		for _, root := range roots {
			require.Contains(rt, inClosure, root)
		}
		// Closed under inputs, and ordered so inputs precede dependents.
		position := make(map[string]int)
		for i, a := range closure {
			position[a.Name] = i
		}
		for _, a := range closure {
			for _, input := range a.InputArtifacts {
				require.Contains(rt, inClosure, input, "%s input %s escaped closure", a.Name, input)
				require.Less(rt, position[input], position[a.Name])
			}
		}
	})
}
