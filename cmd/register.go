package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	appcatalog "github.com/zjrosen/reliq/internal/application/catalog"
	domain "github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/presentation"
)

var (
	registerType     string
	registerInputs   []string
	registerMetadata []string
)

var registerCmd = &cobra.Command{
	Use:   "register <name> <file>",
	Short: "Register a pipeline output file as an artifact",
	Long: `Register records a file in the artifact registry: its content hash,
size, type, and the artifacts it was derived from.

Examples:
  reliq register cleaned-data data/cleaned.parquet --type intermediate_data
  reliq register fig-enrollment figs/enrollment.pdf --type plot_object \
    --input cleaned-data --meta workflow=enrollment`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		metadata, err := parseMetadata(registerMetadata)
		if err != nil {
			return err
		}

		artifact, err := s.catalog.Register(cmd.Context(), appcatalog.RegisterRequest{
			Name:           args[0],
			Type:           registerType,
			FilePath:       args[1],
			InputArtifacts: registerInputs,
			Metadata:       metadata,
		})
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatResult(presentation.FromDomainArtifact(artifact))
	},
}

// parseMetadata turns key=value flags into an artifact metadata map.
func parseMetadata(pairs []string) (domain.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(domain.Metadata, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}

func init() {
	registerCmd.Flags().StringVarP(&registerType, "type", "t", "",
		"artifact type (required)")
	registerCmd.Flags().StringSliceVarP(&registerInputs, "input", "i", nil,
		"input artifact name this artifact was derived from (repeatable)")
	registerCmd.Flags().StringSliceVarP(&registerMetadata, "meta", "m", nil,
		"metadata as key=value (repeatable)")
	_ = registerCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(registerCmd)
}
