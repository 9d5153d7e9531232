// Package cli implements the cobra command tree for the margo binary.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/margo-labs/margo/internal/logger"
)

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "margo",
	Short: "Annotation chat backend for PDF reading",
	Long: `Margo is the local backend behind a PDF reader's annotation chat:
it stores per-document conversations and notes in sidecar files next to
the PDFs and answers questions about annotated regions through a
configurable AI provider.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.margo)")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
