package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/flightwatch/pkg/api"
	"github.com/cuemby/flightwatch/pkg/engine"
	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/recovery"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recover dead workers and watch the cluster until stopped",
	Long: `Run reconciles the flight ledger against the pods that are alive right now,
recovering the flights of every missing worker and of this worker's previous
incarnation. It then watches pod deletions and recovers each dead worker as
it disappears.

If the startup reconciliation fails the process exits with an error.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("health-addr", "", "Address for the HTTP health server")
	runCmd.Flags().String("grpc-addr", "", "Address for the gRPC health service (disabled when empty)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("health-addr"); f.Changed {
		cfg.HealthAddr = f.Value.String()
	}
	if f := cmd.Flags().Lookup("grpc-addr"); f.Changed {
		cfg.GRPCAddr = f.Value.String()
	}
	if err := requireSelf(cfg); err != nil {
		return err
	}
	logger := log.WithWorkerID(cfg.WorkerID)

	m := metrics.New()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker.Subscribe())

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := engine.NewLocal(store, cfg.Self())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Register(ctx); err != nil {
		return err
	}

	mem, err := newMembership(cfg, m, broker)
	if err != nil {
		return err
	}

	coord := recovery.NewCoordinator(cfg.Self(), eng, mem,
		recovery.WithMetrics(m),
		recovery.WithPublisher(broker),
	)

	collector := metrics.NewCollector(mem, m, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	health := api.NewHealthServer(cfg.HealthAddr, coord, mem, m, Version)
	errCh := make(chan error, 2)
	go func() {
		if err := health.Start(); err != nil {
			errCh <- fmt.Errorf("health server error: %w", err)
		}
	}()

	var grpcServer *api.GRPCServer
	if cfg.GRPCAddr != "" {
		grpcServer = api.NewGRPCServer()
		coord.OnStatusChange(grpcServer.SetStatus)
		go func() {
			if err := grpcServer.Start(cfg.GRPCAddr); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	logger.Info().
		Str("namespace", cfg.Namespace).
		Bool("in_cluster", mem.InCluster()).
		Str("data_dir", cfg.DataDir).
		Msg("starting flightwatch")

	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed, shutting down")
	}

	if !coord.Stop(cfg.ShutdownTimeout) {
		logger.Warn().
			Dur("timeout", cfg.ShutdownTimeout).
			Msg("membership watcher did not stop in time")
	}
	if grpcServer != nil {
		grpcServer.Stop(5 * time.Second)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("health server shutdown")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for ev := range sub {
		logger.Debug().
			Str("event_id", ev.ID).
			Str("event_type", string(ev.Type)).
			Interface("metadata", ev.Metadata).
			Msg(ev.Message)
	}
}
