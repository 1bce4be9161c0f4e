// Package cmd implements the reliq command line interface.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appcatalog "github.com/zjrosen/reliq/internal/application/catalog"
	"github.com/zjrosen/reliq/internal/bundle"
	"github.com/zjrosen/reliq/internal/config"
	"github.com/zjrosen/reliq/internal/infrastructure/journal"
	"github.com/zjrosen/reliq/internal/infrastructure/registryfile"
	"github.com/zjrosen/reliq/internal/log"
	"github.com/zjrosen/reliq/internal/pubsub"
	"github.com/zjrosen/reliq/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reliq",
	Short: "An artifact registry and release bundler for data pipelines",
	Long: `Reliq tracks the outputs of data analysis pipelines in a single
human-readable registry file: what each artifact is, where it lives, its
content hash, and which artifacts it was derived from. Release bundles
collect an artifact and its full provenance closure into one reproducible
archive.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .reliq/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs to .reliq/reliq.log")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("registry_path", defaults.RegistryPath)
	viper.SetDefault("allowed_types", defaults.AllowedTypes)
	viper.SetDefault("verify_cache_ttl", defaults.VerifyCacheTTL)
	viper.SetDefault("journal.enabled", defaults.Journal.Enabled)
	viper.SetDefault("journal.path", defaults.Journal.Path)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .reliq/config.yaml (current directory)
		// 2. ~/.config/reliq/config.yaml (user config)
		if _, err := os.Stat(filepath.Join(".reliq", "config.yaml")); err == nil {
			viper.SetConfigFile(filepath.Join(".reliq", "config.yaml"))
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "reliq"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .reliq/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := filepath.Join(".reliq", "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debug || os.Getenv("RELIQ_DEBUG") != "" {
		if _, err := log.Init(filepath.Join(".reliq", "reliq.log")); err != nil {
			fmt.Fprintf(os.Stderr, "warning: debug log unavailable: %v\n", err)
		}
	}
}

// services bundles the wired application collaborators for one command
// invocation.
type services struct {
	catalog *appcatalog.Service
	bundler *bundle.Bundler
	journal *journal.Repository
	broker  *pubsub.Broker[appcatalog.Change]
	tracer  *tracing.Provider

	journalDB *sql.DB
}

// newServices validates config and wires the service graph. Callers must
// call close when done so traces flush and the journal closes.
func newServices() (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	store := registryfile.NewStore(cfg.RegistryPath)
	broker := pubsub.NewBroker[appcatalog.Change]()

	opts := []appcatalog.Option{
		appcatalog.WithTracer(tracer.Tracer()),
		appcatalog.WithVerifyCacheTTL(cfg.VerifyCacheTTL),
		appcatalog.WithBroker(broker),
	}

	s := &services{tracer: tracer, broker: broker}
	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		s.journalDB = db
		s.journal = journal.NewRepository(db)
		opts = append(opts, appcatalog.WithJournal(s.journal))
	}

	s.catalog = appcatalog.NewService(store, cfg.AllowedTypes, opts...)
	s.bundler = bundle.NewBundler(s.catalog, tracer.Tracer(), bundle.WithBroker(broker))
	return s, nil
}

func (s *services) close() {
	s.broker.Close()
	if s.journalDB != nil {
		_ = s.journalDB.Close()
	}
	_ = s.tracer.Shutdown(context.Background())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
