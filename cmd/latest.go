package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/presentation"
)

var latestCmd = &cobra.Command{
	Use:   "latest <type>",
	Short: "Show the most recently created artifact of a type",
	Long: `Latest prints the artifact of the given type with the greatest
creation timestamp. Ties go to the later registration.

Examples:
  reliq latest report`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		artifact, err := s.catalog.Latest(args[0])
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatResult(presentation.FromDomainArtifact(artifact))
	},
}

func init() {
	rootCmd.AddCommand(latestCmd)
}
