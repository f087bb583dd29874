package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCmd returns a command carrying the root persistent flags
func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addGlobalFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flightwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
namespace: from-file
podNameFilter: from-file
watch:
  maxRetries: 3
`), 0600))

	t.Setenv("FLIGHTWATCH_POD_NAME_FILTER", "from-env")
	t.Setenv("POD_NAME", "flight-worker-0")

	cmd := newTestCmd(t, "--config", path, "--namespace", "from-flag")

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Namespace)
	assert.Equal(t, "from-env", cfg.PodNameFilter)
	assert.Equal(t, 3, cfg.Watch.MaxRetries)
	assert.Equal(t, types.WorkerID("flight-worker-0"), cfg.Self())
	assert.Equal(t, 5*time.Second, cfg.Watch.InitialBackoff)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("FLIGHTWATCH_WATCH_MAX_RETRIES", "0")

	_, err := loadConfig(newTestCmd(t))
	assert.Error(t, err)
}

func TestNewMembershipOutsideCluster(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("KUBERNETES_SERVICE_PORT", "")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	mem, err := newMembership(cfg, nil, nil)
	require.NoError(t, err)
	assert.False(t, mem.InCluster())
	assert.Equal(t, 1, mem.ActiveCount())
}

func TestNewMembershipForcedInClusterWithoutConfig(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("KUBERNETES_SERVICE_PORT", "")
	t.Setenv("FLIGHTWATCH_IN_CLUSTER", "true")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	_, err = newMembership(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRequireSelf(t *testing.T) {
	t.Setenv("POD_NAME", "")
	t.Setenv("HOSTNAME", "")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)
	assert.Error(t, requireSelf(cfg))
}

func TestVersionTemplate(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Flightwatch version dev")
}
