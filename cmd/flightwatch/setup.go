package main

import (
	"fmt"
	"os"

	"github.com/cuemby/flightwatch/pkg/config"
	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/kube"
	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/membership"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/storage"
	"github.com/spf13/cobra"
)

// loadConfig builds the effective config: defaults, then file, then
// environment, then flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"namespace":       &cfg.Namespace,
		"pod-name-filter": &cfg.PodNameFilter,
		"label-selector":  &cfg.LabelSelector,
		"kubeconfig":      &cfg.Kubeconfig,
		"worker-id":       &cfg.WorkerID,
		"data-dir":        &cfg.DataDir,
		"log-level":       &cfg.Log.Level,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	cfg.ResolveNamespace(kube.CurrentNamespace)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

// newClusterAPI returns a cluster client, or nil when no cluster is
// reachable. A kubeconfig path wins over the in-cluster service account.
func newClusterAPI(cfg *config.Config) (membership.ClusterAPI, error) {
	opts := []kube.Option{kube.WithLabelSelector(cfg.LabelSelector)}

	switch {
	case cfg.Kubeconfig != "":
		c, err := kube.NewFromKubeconfig(cfg.Kubeconfig, cfg.Namespace, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case kube.InCluster():
		c, err := kube.NewInCluster(cfg.Namespace, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, nil
	}
}

// newMembership wires the membership service for cfg
func newMembership(cfg *config.Config, m *metrics.Metrics, pub events.Publisher) (*membership.Service, error) {
	api, err := newClusterAPI(cfg)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		pub = events.Discard
	}

	inCluster := cfg.ResolveInCluster(func() bool { return api != nil })
	if inCluster && api == nil {
		return nil, fmt.Errorf("in-cluster mode requested but no cluster config found (set --kubeconfig)")
	}

	return membership.NewService(api, membership.Config{
		InCluster: inCluster,
		Watch: membership.WatchConfig{
			NameFilter:     cfg.PodNameFilter,
			InitialBackoff: cfg.Watch.InitialBackoff,
			MaxBackoff:     cfg.Watch.MaxBackoff,
			MaxRetries:     cfg.Watch.MaxRetries,
		},
	}, membership.WithMetrics(m), membership.WithPublisher(pub)), nil
}

// openStore opens the flight ledger, creating the data directory if needed
func openStore(cfg *config.Config) (*storage.BoltStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return storage.NewBoltStore(cfg.DataDir)
}

func requireSelf(cfg *config.Config) error {
	if cfg.WorkerID == "" {
		return fmt.Errorf("worker identity unknown: set --worker-id, POD_NAME or HOSTNAME")
	}
	return nil
}
