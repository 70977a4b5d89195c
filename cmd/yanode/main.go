// yanode indexes a remote drive and answers natural-language file searches.
//
// Commands:
//   - serve: HTTP API plus a Prometheus metrics listener
//   - search: run one search and print the result block
//   - reindex: build or refresh the index for a folder selection
//   - status: print index statistics
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "yanode",
	Short: "yanode - drive index and file search",
	Long: `yanode keeps an index of a remote drive's folder tree and finds the single
best matching file for a query by name, then by sampled content.

Configuration is read from environment variables, or from the YAML file named
by CONFIG_PATH.`,
	SilenceUsage: true,
}

var envHelpCmd = &cobra.Command{
	Use:   "env",
	Short: "List configuration environment variables",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
	},
}

func init() {
	rootCmd.AddCommand(envHelpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
