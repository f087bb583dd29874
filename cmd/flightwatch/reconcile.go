package main

import (
	"context"
	"fmt"

	"github.com/cuemby/flightwatch/pkg/engine"
	"github.com/cuemby/flightwatch/pkg/recovery"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recover the flights of every worker that is no longer running",
	Long: `Reconcile runs the startup recovery once and exits without watching.

Examples:
  # Show which workers would be recovered
  flightwatch reconcile --dry-run --kubeconfig ~/.kube/config -n flights

  # Recover them to this worker
  flightwatch reconcile --worker-id flight-worker-0`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().Bool("dry-run", false, "Only print the obsolete workers")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireSelf(cfg); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mem, err := newMembership(cfg, nil, nil)
	if err != nil {
		return err
	}
	coord := recovery.NewCoordinator(cfg.Self(), engine.NewLocal(store, cfg.Self()), mem)
	ctx := context.Background()

	if dryRun {
		obsolete, err := coord.ObsoleteWorkers(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Would recover %d worker(s) to %s:\n", len(obsolete), cfg.WorkerID)
		for _, id := range obsolete.Sorted() {
			fmt.Printf("  %s\n", id)
		}
		return nil
	}

	recovered, err := coord.Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Reconciled %d worker(s) to %s\n", len(recovered), cfg.WorkerID)
	return nil
}
