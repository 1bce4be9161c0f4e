package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appcatalog "github.com/zjrosen/reliq/internal/application/catalog"
	"github.com/zjrosen/reliq/internal/presentation"
)

var verifyAll bool

var verifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Check artifact files against their recorded hashes",
	Long: `Verify recomputes the content hash of an artifact's file and compares
it to the hash recorded at registration. A mismatch is reported, not
treated as an error; the command exits non-zero so scripts can react.

Examples:
  reliq verify cleaned-data
  reliq verify --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifyAll == (len(args) == 1) {
			return fmt.Errorf("pass exactly one of an artifact name or --all")
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		var results []appcatalog.VerifyResult
		if verifyAll {
			results, err = s.catalog.VerifyAll(cmd.Context())
		} else {
			var result appcatalog.VerifyResult
			result, err = s.catalog.Verify(cmd.Context(), args[0])
			results = []appcatalog.VerifyResult{result}
		}
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(os.Stdout)
		if err := formatter.FormatResult(results); err != nil {
			return err
		}

		for _, result := range results {
			if !result.Valid {
				return fmt.Errorf("artifact %s failed verification", result.Name)
			}
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVarP(&verifyAll, "all", "a", false,
		"verify every registered artifact")

	rootCmd.AddCommand(verifyCmd)
}
