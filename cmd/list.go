package cmd

import (
	"os"

	"github.com/spf13/cobra"

	domain "github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/presentation"
)

var (
	listType     string
	listWorkflow string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered artifacts",
	Long: `List prints registered artifacts as JSON, in registration order.

Examples:
  reliq list
  reliq list --type table
  reliq list --workflow enrollment`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		artifacts, err := s.catalog.List(domain.Filter{
			Type:     listType,
			Workflow: listWorkflow,
		})
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatArtifacts(presentation.FromDomainArtifacts(artifacts))
	},
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "",
		"only artifacts of this type")
	listCmd.Flags().StringVarP(&listWorkflow, "workflow", "w", "",
		"only artifacts whose metadata workflow matches")

	rootCmd.AddCommand(listCmd)
}
