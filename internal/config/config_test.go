package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.BLE.DiscoveryWindow)
	assert.Equal(t, 3*time.Second, cfg.Registry.SyncInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Vehicle.RequestTimeout)
	assert.Equal(t, 100, cfg.Vehicle.SendBuffer)
	assert.Equal(t, time.Duration(0), cfg.Vehicle.WriteGap)
	assert.Equal(t, uint16(450), cfg.Scanner.Speed)
	assert.Equal(t, uint16(500), cfg.Scanner.Acceleration)
	assert.Equal(t, 3, cfg.Scanner.MaxRetries)
	assert.False(t, cfg.Simulator.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulator.StepInterval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overdrive.json")
	err := os.WriteFile(path, []byte(`{
		"logLevel": "debug",
		"vehicle": {"requestTimeout": "2s", "writeGap": "20ms"},
		"scanner": {"speed": 600, "maxRetries": 5},
		"simulator": {"enabled": true}
	}`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Vehicle.RequestTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Vehicle.WriteGap)
	assert.Equal(t, 100, cfg.Vehicle.SendBuffer)
	assert.Equal(t, uint16(600), cfg.Scanner.Speed)
	assert.Equal(t, uint16(500), cfg.Scanner.Acceleration)
	assert.Equal(t, 5, cfg.Scanner.MaxRetries)
	assert.True(t, cfg.Simulator.Enabled)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("OVERDRIVE_LOGLEVEL", "warn")
	t.Setenv("OVERDRIVE_SCANNER_MAXRETRIES", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Scanner.MaxRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
