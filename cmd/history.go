package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/presentation"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent registry operations from the journal",
	Long: `History prints recent register, verify, bundle, and prune operations
recorded in the operation journal, newest first.

Examples:
  reliq history
  reliq history --limit 50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		if s.journal == nil {
			return cmd.Help()
		}

		entries, err := s.journal.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatResult(presentation.FromJournalEntries(entries))
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20,
		"maximum number of operations to show (0 for all)")

	rootCmd.AddCommand(historyCmd)
}
