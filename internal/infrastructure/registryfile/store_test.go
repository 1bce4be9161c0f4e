package registryfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/reliq/internal/domain/catalog"
)

var testTypes = []string{"raw_input", "table", "report", "release_bundle"}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), ".reliq", "registry.yaml"))
}

func register(t *testing.T, r catalog.Registry, name, artifactType string, inputs ...string) catalog.Registry {
	t.Helper()
	next, err := r.Register(catalog.Registration{
		Name:           name,
		Type:           artifactType,
		FilePath:       "data/" + name + ".csv",
		ContentHash:    "hash-" + name,
		SizeBytes:      42,
		CreatedAt:      time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
		InputArtifacts: inputs,
	}, testTypes)
	require.NoError(t, err)
	return next
}

func TestStore_Load_MissingFile(t *testing.T) {
	store := testStore(t)

	reg, err := store.Load()
	require.NoError(t, err)
	require.Zero(t, reg.Len())
	require.Equal(t, int64(0), reg.Revision())
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store := testStore(t)

	reg, err := store.Load()
	require.NoError(t, err)
	reg = register(t, reg, "survey-raw", "raw_input")
	reg = register(t, reg, "summary", "table", "survey-raw")

	saved, err := store.Save(reg)
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Revision())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Revision())
	require.Equal(t, saved.Artifacts(), loaded.Artifacts())
	require.Equal(t, saved.LastModifiedAt(), loaded.LastModifiedAt())
}

func TestStore_Save_PreservesInsertionOrder(t *testing.T) {
	store := testStore(t)

	reg, _ := store.Load()
	// Names chosen so lexical order differs from insertion order.
	for _, name := range []string{"zeta", "alpha", "mike"} {
		reg = register(t, reg, name, "raw_input")
	}
	_, err := store.Save(reg)
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	artifacts := loaded.Artifacts()
	require.Equal(t, "zeta", artifacts[0].Name)
	require.Equal(t, "alpha", artifacts[1].Name)
	require.Equal(t, "mike", artifacts[2].Name)
}

func TestStore_Save_RevisionIncrements(t *testing.T) {
	store := testStore(t)

	reg, _ := store.Load()
	reg = register(t, reg, "a", "raw_input")
	reg, err := store.Save(reg)
	require.NoError(t, err)
	require.Equal(t, int64(1), reg.Revision())

	reg = register(t, reg, "b", "raw_input")
	reg, err = store.Save(reg)
	require.NoError(t, err)
	require.Equal(t, int64(2), reg.Revision())
}

func TestStore_Save_ConflictDetected(t *testing.T) {
	store := testStore(t)

	base, _ := store.Load()

	// Two actors load the same revision; the second save must fail.
	first := register(t, base, "from-first", "raw_input")
	second := register(t, base, "from-second", "raw_input")

	_, err := store.Save(first)
	require.NoError(t, err)

	_, err = store.Save(second)
	var conflict *ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(0), conflict.Loaded)
	require.Equal(t, int64(1), conflict.Found)

	// The losing save must not have touched the file.
	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.Has("from-first"))
	require.False(t, loaded.Has("from-second"))
}

func TestStore_Save_RetryAfterReloadSucceeds(t *testing.T) {
	store := testStore(t)

	base, _ := store.Load()
	first := register(t, base, "from-first", "raw_input")
	_, err := store.Save(first)
	require.NoError(t, err)

	// Reload at the new revision and replay the losing mutation.
	reloaded, err := store.Load()
	require.NoError(t, err)
	second := register(t, reloaded, "from-second", "raw_input")
	saved, err := store.Save(second)
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Revision())
	require.True(t, saved.Has("from-first"))
	require.True(t, saved.Has("from-second"))
}

func TestStore_Load_CorruptFile(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{{not yaml"), 0o644))

	_, err := store.Load()

	var corrupt *CorruptRegistryError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, store.Path(), corrupt.Path)

	// The corrupt file must still be there for inspection.
	data, readErr := os.ReadFile(store.Path())
	require.NoError(t, readErr)
	require.Equal(t, "{{not yaml", string(data))
}

func TestStore_Load_DuplicateNamesIsCorrupt(t *testing.T) {
	store := testStore(t)
	doc := strings.Join([]string{
		"version: \"1\"",
		"revision: 3",
		"artifacts:",
		"  - name: twin",
		"    type: table",
		"  - name: twin",
		"    type: report",
	}, "\n")
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o644))

	_, err := store.Load()

	var corrupt *CorruptRegistryError
	require.ErrorAs(t, err, &corrupt)
}

func TestStore_Save_RefusesToClobberCorruptFile(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte(":::"), 0o644))

	reg := register(t, catalog.New(), "a", "raw_input")
	_, err := store.Save(reg)

	var corrupt *CorruptRegistryError
	require.ErrorAs(t, err, &corrupt)
}

func TestStore_Save_NoPartialFileOnDisk(t *testing.T) {
	store := testStore(t)

	reg, _ := store.Load()
	reg = register(t, reg, "a", "raw_input")
	_, err := store.Save(reg)
	require.NoError(t, err)

	// Only the registry file itself remains; temp files are cleaned up or
	// renamed away.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "registry.yaml", entries[0].Name())
}

func TestStore_CrashResidueIgnored(t *testing.T) {
	store := testStore(t)

	reg, _ := store.Load()
	reg = register(t, reg, "survey-raw", "raw_input")
	_, err := store.Save(reg)
	require.NoError(t, err)

	// A crash between temp write and rename leaves a stray temp file next
	// to the registry. It must not affect later loads or saves.
	stray := filepath.Join(filepath.Dir(store.Path()), ".registry.yaml.tmp.123456")
	require.NoError(t, os.WriteFile(stray, []byte("half-written garbage"), 0o644))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Revision())
	require.True(t, loaded.Has("survey-raw"))

	next := register(t, loaded, "summary", "table", "survey-raw")
	saved, err := store.Save(next)
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Revision())

	reread, err := store.Load()
	require.NoError(t, err)
	require.True(t, reread.Has("survey-raw"))
	require.True(t, reread.Has("summary"))
}

func TestStore_Save_CreatesParentDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "deep", "nested", "registry.yaml"))

	reg := register(t, catalog.New(), "a", "raw_input")
	_, err := store.Save(reg)
	require.NoError(t, err)

	_, statErr := os.Stat(store.Path())
	require.NoError(t, statErr)
}

func TestStore_File_IsHumanReadableYAML(t *testing.T) {
	store := testStore(t)

	reg, _ := store.Load()
	reg = register(t, reg, "survey-raw", "raw_input")
	_, err := store.Save(reg)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "version:")
	require.Contains(t, text, "revision: 1")
	require.Contains(t, text, "name: survey-raw")
	require.Contains(t, text, "content_hash: hash-survey-raw")
}
