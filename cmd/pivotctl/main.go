// Command pivotctl renders pivot tables and builds drill-down filters from
// local files, and publishes refresh notifications.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pivotboard/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "pivotctl",
		Short:         "Pivot table tooling",
		Long:          "Render pivot tables from a widget mapping and a result set, build drill-down filters, and notify servers of refreshed data.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.SetupLogger(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newRenderCmd(), newDrilldownCmd(), newNotifyCmd())
	return root
}
