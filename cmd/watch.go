package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the registry file and report changes",
	Long: `Watch blocks and prints a line each time the registry file changes,
with writes debounced per the watch.debounce setting. Useful while a
pipeline run registers artifacts from another process.

Examples:
  reliq watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		w, err := watcher.New(watcher.Config{
			RegistryPath: cfg.RegistryPath,
			DebounceDur:  cfg.Watch.Debounce,
		})
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()

		changes, err := w.Start()
		if err != nil {
			return err
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		fmt.Printf("watching %s (ctrl-c to stop)\n", cfg.RegistryPath)
		for {
			select {
			case <-changes:
				reg, err := s.catalog.Snapshot()
				if err != nil {
					fmt.Fprintf(os.Stderr, "registry changed but could not be read: %v\n", err)
					continue
				}
				fmt.Printf("%s registry changed: %d artifacts, revision %d\n",
					time.Now().Format(time.TimeOnly), reg.Len(), reg.Revision())
			case <-sigs:
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
