package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flightwatch",
	Short: "Flightwatch - cluster membership and crash recovery for workflow workers",
	Long: `Flightwatch watches the pods of a workflow engine deployment and hands the
unfinished flights of every worker that disappears to a surviving worker.

On startup it also recovers the flights of workers that died while no
instance was watching.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Flightwatch version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(flightsCmd)
}

// addGlobalFlags registers the config flags shared by every subcommand
func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML config file")
	flags.StringP("namespace", "n", "", "Namespace to watch (default: service account namespace)")
	flags.String("pod-name-filter", "", "Only pods whose name contains this string are workers")
	flags.String("label-selector", "", "Label selector applied to the pod watch")
	flags.String("kubeconfig", "", "Kubeconfig path, for use outside a cluster")
	flags.String("worker-id", "", "Identity of this worker (default: $POD_NAME, then $HOSTNAME)")
	flags.String("data-dir", "", "Directory holding the flight ledger")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
}
