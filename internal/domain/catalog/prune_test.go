package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mkAt is mkReg with an explicit timestamp.
func mkAt(name, artifactType string, at time.Time, inputs ...string) Registration {
	reg := mkReg(name, artifactType, inputs...)
	reg.CreatedAt = at
	return reg
}

func TestRegistry_Prune_KeepsNewest(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := New()
	for i, name := range []string{"run-1", "run-2", "run-3", "run-4"} {
		r = mustRegister(t, r, mkAt(name, "intermediate_data", base.Add(time.Duration(i)*time.Hour)))
	}

	pruned, removed := r.Prune("intermediate_data", 2)

	require.Equal(t, []string{"data/run-1.bin", "data/run-2.bin"}, removed)
	require.Equal(t, []string{"run-3", "run-4"}, names(pruned.Artifacts()))
	require.Equal(t, 4, r.Len(), "receiver must be untouched")
}

func TestRegistry_Prune_OtherTypesUntouched(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := mustRegister(t, New(), mkAt("raw", "raw_input", base))
	r = mustRegister(t, r, mkAt("old-table", "table", base.Add(time.Hour)))
	r = mustRegister(t, r, mkAt("new-table", "table", base.Add(2*time.Hour)))

	pruned, removed := r.Prune("table", 1)

	require.Equal(t, []string{"data/old-table.bin"}, removed)
	require.True(t, pruned.Has("raw"))
	require.True(t, pruned.Has("new-table"))
}

func TestRegistry_Prune_ReferencedSurvives(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// old-clean is the oldest of its type but feeds a report that survives.
	r := mustRegister(t, New(), mkAt("old-clean", "intermediate_data", base))
	r = mustRegister(t, r, mkAt("new-clean", "intermediate_data", base.Add(time.Hour)))
	r = mustRegister(t, r, mkAt("newest-clean", "intermediate_data", base.Add(2*time.Hour)))
	r = mustRegister(t, r, mkAt("report", "report", base.Add(3*time.Hour), "old-clean"))

	pruned, removed := r.Prune("intermediate_data", 1)

	require.Equal(t, []string{"data/new-clean.bin"}, removed)
	require.True(t, pruned.Has("old-clean"), "referenced artifact must survive pruning")
	require.True(t, pruned.Has("newest-clean"))
	require.True(t, pruned.Has("report"))
}

func TestRegistry_Prune_ReferenceChainSurvives(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// Protection must propagate: report keeps mid alive, mid keeps old alive.
	r := mustRegister(t, New(), mkAt("old", "intermediate_data", base))
	r = mustRegister(t, r, mkAt("mid", "intermediate_data", base.Add(time.Hour), "old"))
	r = mustRegister(t, r, mkAt("fresh", "intermediate_data", base.Add(2*time.Hour)))
	r = mustRegister(t, r, mkAt("report", "report", base.Add(3*time.Hour), "mid"))

	pruned, removed := r.Prune("intermediate_data", 1)

	require.Empty(t, removed, "everything is either kept or transitively referenced")
	require.Equal(t, 4, pruned.Len())
}

func TestRegistry_Prune_ZeroKeep(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := mustRegister(t, New(), mkAt("a", "table", base))
	r = mustRegister(t, r, mkAt("b", "table", base.Add(time.Hour)))

	pruned, removed := r.Prune("table", 0)

	require.Len(t, removed, 2)
	require.Zero(t, pruned.Len())
}

func TestRegistry_Prune_KeepExceedsCount(t *testing.T) {
	r := mustRegister(t, New(), mkReg("only", "table"))

	pruned, removed := r.Prune("table", 5)

	require.Empty(t, removed)
	require.Equal(t, 1, pruned.Len())
}

func TestRegistry_Prune_NoSuchType(t *testing.T) {
	r := mustRegister(t, New(), mkReg("a", "raw_input"))

	pruned, removed := r.Prune("report", 1)

	require.Empty(t, removed)
	require.Equal(t, 1, pruned.Len())
}

func TestRegistry_Prune_TimestampTieUsesInsertion(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := mustRegister(t, New(), mkAt("first", "table", at))
	r = mustRegister(t, r, mkAt("second", "table", at))

	pruned, removed := r.Prune("table", 1)

	require.Equal(t, []string{"data/first.bin"}, removed)
	require.True(t, pruned.Has("second"), "later insertion counts as newer on a tie")
}

func TestRegistry_Prune_ClosureStillResolves(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := mustRegister(t, New(), mkAt("raw", "raw_input", base))
	r = mustRegister(t, r, mkAt("clean-1", "intermediate_data", base.Add(time.Hour), "raw"))
	r = mustRegister(t, r, mkAt("clean-2", "intermediate_data", base.Add(2*time.Hour), "raw"))
	r = mustRegister(t, r, mkAt("report", "report", base.Add(3*time.Hour), "clean-2"))

	pruned, removed := r.Prune("intermediate_data", 1)
	require.Equal(t, []string{"data/clean-1.bin"}, removed)

	// Surviving artifacts must form a complete provenance graph.
	for _, a := range pruned.Artifacts() {
		_, err := pruned.ResolveClosure([]string{a.Name})
		require.NoError(t, err)
	}
}
