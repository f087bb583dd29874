package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent copy of the flight ledger",
	Long: `Backup copies the flight ledger into a single file inside one read
transaction. The ledger is locked by a running flightwatch, so stop it first
or point --data-dir at a replica.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if out == "" {
			out = store.Path() + ".backup"
		}

		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
		n, err := store.Backup(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("✓ Backup written to %s (%d bytes)\n", out, n)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringP("output", "o", "", "Backup file (default: <data-dir>/flightwatch.db.backup)")
	rootCmd.AddCommand(backupCmd)
}
