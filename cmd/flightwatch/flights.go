package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/flightwatch/pkg/engine"
	"github.com/cuemby/flightwatch/pkg/storage"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/spf13/cobra"
)

var flightsCmd = &cobra.Command{
	Use:   "flights",
	Short: "List and manage flights in the ledger",
	Long: `Flights reads and edits the flight ledger directly. The ledger is
locked by a running flightwatch, so these commands are meant for a stopped
worker or a copy of its data dir.

Examples:
  # List the flights owned by one worker
  flightwatch flights --owner flight-worker-1

  # Queue a flight on this worker and mark it done
  flightwatch flights submit fl-42 --worker-id flight-worker-0
  flightwatch flights finish fl-42 --status success`,
	RunE: runFlightsList,
}

var flightsSubmitCmd = &cobra.Command{
	Use:   "submit ID",
	Short: "Queue a new flight owned by this worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlightsSubmit,
}

var flightsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one flight",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlightsGet,
}

var flightsFinishCmd = &cobra.Command{
	Use:   "finish ID",
	Short: "Record the final status of a flight",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlightsFinish,
}

var flightsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a flight from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlightsDelete,
}

func init() {
	flightsCmd.Flags().String("owner", "", "Only show flights owned by this worker")
	flightsFinishCmd.Flags().String("status", string(types.FlightStatusSuccess), "Final status: success or error")

	flightsCmd.AddCommand(flightsSubmitCmd)
	flightsCmd.AddCommand(flightsGetCmd)
	flightsCmd.AddCommand(flightsFinishCmd)
	flightsCmd.AddCommand(flightsDeleteCmd)
}

func runFlightsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	owner, _ := cmd.Flags().GetString("owner")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var flights []*types.Flight
	if owner != "" {
		flights, err = store.ListFlightsByOwner(types.WorkerID(owner))
	} else {
		flights, err = store.ListFlights()
	}
	if err != nil {
		return fmt.Errorf("failed to list flights: %w", err)
	}

	if len(flights) == 0 {
		fmt.Println("No flights found")
		return nil
	}

	fmt.Printf("%-36s %-30s %-10s %s\n", "ID", "OWNER", "STATUS", "UPDATED")
	for _, f := range flights {
		printFlightRow(f)
	}
	return nil
}

func runFlightsSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireSelf(cfg); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetFlight(args[0]); err == nil {
		return fmt.Errorf("flight %s already exists", args[0])
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	e := engine.NewLocal(store, cfg.Self())
	ctx := context.Background()
	if err := e.Register(ctx); err != nil {
		return err
	}
	f, err := e.Submit(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("✓ Flight %s queued on %s\n", f.ID, f.Owner)
	return nil
}

func runFlightsGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := store.GetFlight(args[0])
	if err != nil {
		return fmt.Errorf("failed to get flight: %w", err)
	}

	fmt.Printf("ID:       %s\n", f.ID)
	fmt.Printf("Owner:    %s\n", f.Owner)
	fmt.Printf("Status:   %s\n", f.Status)
	fmt.Printf("Created:  %s\n", f.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", f.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runFlightsFinish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	e := engine.NewLocal(store, cfg.Self())
	f, err := e.Finish(context.Background(), args[0], types.FlightStatus(status))
	if err != nil {
		return err
	}

	fmt.Printf("✓ Flight %s finished: %s\n", f.ID, f.Status)
	return nil
}

func runFlightsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetFlight(args[0]); err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}
	if err := store.DeleteFlight(args[0]); err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}

	fmt.Printf("✓ Flight %s deleted\n", args[0])
	return nil
}

func printFlightRow(f *types.Flight) {
	fmt.Printf("%-36s %-30s %-10s %s\n", f.ID, f.Owner, f.Status, f.UpdatedAt.Format(time.RFC3339))
}
