// Package config provides configuration types, defaults, and persistence
// for reliq.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/reliq/internal/log"
	"github.com/zjrosen/reliq/internal/tracing"
)

// DefaultAllowedTypes is the artifact type set used when the config file
// does not override it.
func DefaultAllowedTypes() []string {
	return []string{
		"raw_input",
		"intermediate_data",
		"plot_object",
		"table",
		"report",
		"release_bundle",
	}
}

// Config holds all configuration options for reliq.
type Config struct {
	// RegistryPath is the artifact registry file, relative to the
	// project root unless absolute.
	RegistryPath string `mapstructure:"registry_path"`

	// AllowedTypes is the closed set of artifact type tags accepted at
	// registration.
	AllowedTypes []string `mapstructure:"allowed_types"`

	// VerifyCacheTTL is how long verify hash results are reused for an
	// unchanged file. Zero disables the cache.
	VerifyCacheTTL time.Duration `mapstructure:"verify_cache_ttl"`

	Journal JournalConfig  `mapstructure:"journal"`
	Watch   WatchConfig    `mapstructure:"watch"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// JournalConfig holds operation journal settings.
type JournalConfig struct {
	// Enabled controls whether operations are recorded in the sqlite
	// journal. The journal is observational only.
	Enabled bool `mapstructure:"enabled"`

	// Path is the journal database file.
	Path string `mapstructure:"path"`
}

// WatchConfig holds registry watch settings.
type WatchConfig struct {
	// Debounce coalesces bursts of registry writes into one notification.
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		RegistryPath:   filepath.Join(".reliq", "registry.yaml"),
		AllowedTypes:   DefaultAllowedTypes(),
		VerifyCacheTTL: 10 * time.Minute,
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(".reliq", "journal.db"),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the configuration for errors. The registry path and the
// allowed type set are required; everything else has a valid zero value.
func (c Config) Validate() error {
	if c.RegistryPath == "" {
		return fmt.Errorf("registry_path is required")
	}
	if len(c.AllowedTypes) == 0 {
		return fmt.Errorf("allowed_types must not be empty")
	}
	seen := make(map[string]bool, len(c.AllowedTypes))
	for i, artifactType := range c.AllowedTypes {
		if artifactType == "" {
			return fmt.Errorf("allowed_types[%d]: type must not be empty", i)
		}
		// Types become directory names inside bundle archives.
		if strings.ContainsAny(artifactType, `/\`) || artifactType == "." || artifactType == ".." {
			return fmt.Errorf("allowed_types[%d]: type %q must not contain path separators", i, artifactType)
		}
		if seen[artifactType] {
			return fmt.Errorf("allowed_types: duplicate type %q", artifactType)
		}
		seen[artifactType] = true
	}
	if c.VerifyCacheTTL < 0 {
		return fmt.Errorf("verify_cache_ttl must not be negative, got %v", c.VerifyCacheTTL)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" {
		switch cfg.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if cfg.Enabled {
		if cfg.Exporter == "file" && cfg.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if cfg.Exporter == "otlp" && cfg.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Reliq Configuration

# Artifact registry file, relative to the directory reliq runs in
registry_path: .reliq/registry.yaml

# Artifact types accepted at registration. Registrations with any other
# type are rejected.
allowed_types:
  - raw_input
  - intermediate_data
  - plot_object
  - table
  - report
  - release_bundle

# How long verify reuses a computed hash for an unchanged file.
# Set to 0 to re-hash on every verify.
verify_cache_ttl: 10m

# Operation journal (sqlite). Records register/verify/bundle/prune
# operations for 'reliq history'. The registry file stays the source of
# truth; the journal is observational.
journal:
  enabled: true
  path: .reliq/journal.db

# Registry watch settings for 'reliq watch'
watch:
  debounce: 500ms

# Tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: .reliq/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
