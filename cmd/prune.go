package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/presentation"
)

var (
	pruneKeep   int
	pruneUnlink bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune <type>",
	Short: "Remove old artifacts of a type from the registry",
	Long: `Prune drops all but the newest N artifacts of the given type from the
registry. Artifacts still referenced as inputs by surviving artifacts are
kept regardless of age. Files on disk are left alone unless --unlink is
passed.

Examples:
  reliq prune intermediate_data --keep 3
  reliq prune plot_object --keep 5 --unlink`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneKeep < 0 {
			return fmt.Errorf("--keep must not be negative, got %d", pruneKeep)
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		removed, err := s.catalog.Prune(cmd.Context(), args[0], pruneKeep)
		if err != nil {
			return err
		}

		if pruneUnlink {
			for _, path := range removed {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					fmt.Fprintf(os.Stderr, "warning: could not remove %s: %v\n", path, err)
				}
			}
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatResult(map[string]any{
			"removed":  len(removed),
			"paths":    removed,
			"unlinked": pruneUnlink,
		})
	},
}

func init() {
	pruneCmd.Flags().IntVarP(&pruneKeep, "keep", "k", 1,
		"number of newest artifacts of the type to keep")
	pruneCmd.Flags().BoolVar(&pruneUnlink, "unlink", false,
		"also delete the removed artifacts' files from disk")

	rootCmd.AddCommand(pruneCmd)
}
