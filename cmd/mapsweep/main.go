package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "mapsweep"

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Google Maps business crawler",
	Long: `mapsweep searches Google Maps for every keyword × location pair,
scrolls the result feed, opens each listing and stores the business details.

Runs are resumable: finished pairs are recorded and skipped next time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), appName+" "+version)
	},
}

func main() {
	rootCmd.AddCommand(newScanCmd(), newExportCmd(), versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
