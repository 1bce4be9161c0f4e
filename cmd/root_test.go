package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appcatalog "github.com/zjrosen/reliq/internal/application/catalog"
	"github.com/zjrosen/reliq/internal/config"
)

// testConfig points the global config at a temp directory so commands
// never touch the real working directory.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg = config.Defaults()
	cfg.RegistryPath = filepath.Join(dir, "registry.yaml")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	return dir
}

func TestNewServices_WiresCatalogAndBundler(t *testing.T) {
	testConfig(t)

	s, err := newServices()
	require.NoError(t, err)
	defer s.close()

	require.NotNil(t, s.catalog)
	require.NotNil(t, s.bundler)
	require.NotNil(t, s.journal, "journal is enabled by default")
}

func TestNewServices_JournalDisabled(t *testing.T) {
	testConfig(t)
	cfg.Journal.Enabled = false

	s, err := newServices()
	require.NoError(t, err)
	defer s.close()

	require.Nil(t, s.journal)
}

func TestNewServices_InvalidConfigRejected(t *testing.T) {
	testConfig(t)
	cfg.AllowedTypes = nil

	_, err := newServices()
	require.ErrorContains(t, err, "allowed_types")
}

func TestNewServices_RegisterRoundTrip(t *testing.T) {
	dir := testConfig(t)

	file := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(file, []byte("a,b\n1,2\n"), 0o644))

	s, err := newServices()
	require.NoError(t, err)
	defer s.close()

	artifact, err := s.catalog.Register(t.Context(), appcatalog.RegisterRequest{
		Name:     "data",
		Type:     "raw_input",
		FilePath: file,
	})
	require.NoError(t, err)
	require.Equal(t, "data", artifact.Name)

	entries, err := s.journal.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "register", entries[0].Verb)
}

func TestParseMetadata(t *testing.T) {
	metadata, err := parseMetadata([]string{"workflow=enrollment", "run=42"})
	require.NoError(t, err)
	require.Equal(t, "enrollment", metadata["workflow"])
	require.Equal(t, "42", metadata["run"])
}

func TestParseMetadata_Empty(t *testing.T) {
	metadata, err := parseMetadata(nil)
	require.NoError(t, err)
	require.Nil(t, metadata)
}

func TestParseMetadata_Malformed(t *testing.T) {
	for _, pair := range []string{"noequals", "=value"} {
		_, err := parseMetadata([]string{pair})
		require.ErrorContains(t, err, "key=value", "pair %q", pair)
	}
}

func TestRootCommand_SubcommandsRegistered(t *testing.T) {
	want := []string{
		"register", "show", "list", "latest",
		"verify", "bundle", "prune", "history", "watch",
	}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		require.True(t, registered[name], "command %s not registered", name)
	}
}

func TestDefaultsRoundTripThroughValidation(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}
