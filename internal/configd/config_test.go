package configd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/internal/configloader"
)

const testYAML = `bench: lab1
log:
  level: debug
  to_stdout: true
metrics:
  enabled: true
telemetry:
  addr: "localhost:6379"
rack:
  psu:
    kind: vsource
    port: 5025
    autostart: true
    sampler: dmm
    params:
      voltage: 2.5
  dmm:
    kind: multimeter
    port: 5026
    inputs: [psu]
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virtbenchd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))
	t.Setenv("VIRTBENCH_CONFIG", path)

	require.NoError(t, LoadConfig())
	cfg := configloader.MustGetConfig[*Config]()

	assert.Equal(t, "lab1", cfg.Bench)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9317", cfg.Metrics.Listen) // default
	assert.Equal(t, "virtbench:events", cfg.Telemetry.Channel)
	assert.Equal(t, int64(1000), cfg.Telemetry.Backlog)

	require.Contains(t, cfg.Rack, "psu")
	psu := cfg.Rack["psu"]
	assert.Equal(t, "vsource", psu.Kind)
	assert.Equal(t, 5025, psu.Port)
	assert.True(t, psu.Autostart)
	assert.Equal(t, "dmm", psu.Sampler)
	assert.Equal(t, 2.5, psu.Params["voltage"])

	dmm := cfg.Rack["dmm"]
	assert.Equal(t, []string{"psu"}, dmm.Inputs)
	assert.False(t, dmm.Autostart)
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("VIRTBENCH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, LoadConfig())
}
