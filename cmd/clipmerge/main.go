// Command clipmerge merges video clips of mixed sizes and aspect ratios onto
// one canvas, either once from the command line or as jobs behind an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clipmerge",
		Short:         "Merge video clips onto a common canvas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMergeCmd(), newServeCmd())
	return root
}
