package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "List the worker pods running right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		mem, err := newMembership(cfg, nil, nil)
		if err != nil {
			return err
		}
		if !mem.InCluster() {
			return fmt.Errorf("no cluster configured: run inside a pod or pass --kubeconfig")
		}

		live, err := mem.SnapshotLiveWorkers(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Live workers in %s: %d\n", cfg.Namespace, len(live))
		for _, id := range live.Sorted() {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}
