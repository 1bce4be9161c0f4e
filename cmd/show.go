package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/presentation"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one artifact by name",
	Long: `Show prints the full registry record for one artifact as JSON.

Examples:
  reliq show cleaned-data`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		artifact, err := s.catalog.Get(args[0])
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatResult(presentation.FromDomainArtifact(artifact))
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
