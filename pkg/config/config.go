package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cuemby/flightwatch/pkg/types"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv
const (
	EnvPrefix   = "FLIGHTWATCH_"
	EnvPodName  = "POD_NAME"
	EnvHostname = "HOSTNAME"
)

// Config is the flightwatch process configuration
type Config struct {
	Namespace       string        `yaml:"namespace"`
	PodNameFilter   string        `yaml:"podNameFilter"`
	LabelSelector   string        `yaml:"labelSelector,omitempty"`
	InCluster       *bool         `yaml:"inCluster,omitempty"` // nil means auto-detect
	Kubeconfig      string        `yaml:"kubeconfig,omitempty"`
	WorkerID        string        `yaml:"workerId,omitempty"`
	Watch           WatchConfig   `yaml:"watch"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	DataDir         string        `yaml:"dataDir"`
	HealthAddr      string        `yaml:"healthAddr"`
	GRPCAddr        string        `yaml:"grpcAddr,omitempty"`
	Log             LogConfig     `yaml:"log"`
}

// WatchConfig holds the reconnect policy of the pod watch
type WatchConfig struct {
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
	MaxRetries     int           `yaml:"maxRetries"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     30 * time.Second,
			MaxRetries:     10,
		},
		ShutdownTimeout: 10 * time.Second,
		DataDir:         "./flightwatch-data",
		HealthAddr:      ":9090",
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. The worker identity falls
// back to POD_NAME and then HOSTNAME when FLIGHTWATCH_WORKER_ID is unset.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"NAMESPACE":       &c.Namespace,
		"POD_NAME_FILTER": &c.PodNameFilter,
		"LABEL_SELECTOR":  &c.LabelSelector,
		"KUBECONFIG":      &c.Kubeconfig,
		"WORKER_ID":       &c.WorkerID,
		"DATA_DIR":        &c.DataDir,
		"HEALTH_ADDR":     &c.HealthAddr,
		"GRPC_ADDR":       &c.GRPCAddr,
		"LOG_LEVEL":       &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"WATCH_INITIAL_BACKOFF": &c.Watch.InitialBackoff,
		"WATCH_MAX_BACKOFF":     &c.Watch.MaxBackoff,
		"SHUTDOWN_TIMEOUT":      &c.ShutdownTimeout,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv(EnvPrefix + "WATCH_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWATCH_MAX_RETRIES: %w", EnvPrefix, err)
		}
		c.Watch.MaxRetries = n
	}

	bools := map[string]func(bool){
		"IN_CLUSTER": func(b bool) { c.InCluster = &b },
		"LOG_JSON":   func(b bool) { c.Log.JSON = b },
	}
	for key, set := range bools {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		set(b)
	}

	if c.WorkerID == "" {
		c.WorkerID = os.Getenv(EnvPodName)
	}
	if c.WorkerID == "" {
		c.WorkerID = os.Getenv(EnvHostname)
	}
	return nil
}

// Validate checks the configuration for values the process cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if c.Watch.InitialBackoff <= 0 {
		errs = append(errs, errors.New("watch.initialBackoff must be positive"))
	}
	if c.Watch.MaxBackoff < c.Watch.InitialBackoff {
		errs = append(errs, errors.New("watch.maxBackoff must not be less than watch.initialBackoff"))
	}
	if c.Watch.MaxRetries < 1 {
		errs = append(errs, errors.New("watch.maxRetries must be at least 1"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdownTimeout must be positive"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("dataDir is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Self returns the configured worker identity
func (c *Config) Self() types.WorkerID {
	return types.WorkerID(c.WorkerID)
}

// DefaultNamespace is used when neither the config nor the pod's service
// account names a namespace
const DefaultNamespace = "default"

// ResolveNamespace fills an empty namespace from detect, then DefaultNamespace
func (c *Config) ResolveNamespace(detect func() string) {
	if c.Namespace == "" {
		c.Namespace = detect()
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
}

// ResolveInCluster returns the InCluster setting, using detect when unset
func (c *Config) ResolveInCluster(detect func() bool) bool {
	if c.InCluster != nil {
		return *c.InCluster
	}
	return detect()
}
