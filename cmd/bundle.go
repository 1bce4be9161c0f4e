package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/reliq/internal/bundle"
	"github.com/zjrosen/reliq/internal/presentation"
)

var (
	bundleName            string
	bundleOutput          string
	bundleRegister        bool
	bundleIncludeMetadata bool
	bundleResolveOnly     bool
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <root>...",
	Short: "Create a release archive of artifacts and their provenance",
	Long: `Bundle resolves the transitive input closure of the given artifacts,
copies every file into a staged tree with a manifest, and zips it
deterministically. Identical registry state produces byte-identical
archives when the bundle id and timestamp are pinned.

Examples:
  reliq bundle final-report --output dist/release.zip
  reliq bundle final-report supplement --output dist/release.zip --register
  reliq bundle final-report --resolve`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		formatter := presentation.NewFormatter(os.Stdout)

		if bundleResolveOnly {
			closure, err := s.bundler.Resolve(args)
			if err != nil {
				return err
			}
			return formatter.FormatArtifacts(presentation.FromDomainArtifacts(closure))
		}

		result, err := s.bundler.Create(cmd.Context(), bundle.CreateRequest{
			Name:            bundleName,
			Roots:           args,
			OutputPath:      bundleOutput,
			IncludeMetadata: bundleIncludeMetadata,
			RegisterBundle:  bundleRegister,
		})
		if err != nil {
			return err
		}
		return formatter.FormatResult(result)
	},
}

func init() {
	bundleCmd.Flags().StringVarP(&bundleName, "name", "n", "",
		"bundle name recorded in the manifest (default: output file name)")
	bundleCmd.Flags().StringVarP(&bundleOutput, "output", "o", "bundle.zip",
		"output archive path")
	bundleCmd.Flags().BoolVar(&bundleRegister, "register", false,
		"register the archive itself as a release_bundle artifact")
	bundleCmd.Flags().BoolVar(&bundleIncludeMetadata, "include-metadata", false,
		"copy artifact metadata maps into the manifest")
	bundleCmd.Flags().BoolVar(&bundleResolveOnly, "resolve", false,
		"print the closure that would be bundled and exit")

	rootCmd.AddCommand(bundleCmd)
}
