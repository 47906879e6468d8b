package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "HORIZON_7.0AT", cfg.DeviceName)
	assert.Equal(t, "workouts", cfg.WorkoutsDir)
	assert.Equal(t, "treadmill-console.log", cfg.LogFile)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.False(t, cfg.Mock)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--device-name", "OTHER_TREADMILL",
		"--workouts-dir", "/tmp/plans",
		"--scan-timeout", "30s",
		"--mock",
	})
	require.NoError(t, err)

	assert.Equal(t, "OTHER_TREADMILL", cfg.DeviceName)
	assert.Equal(t, "/tmp/plans", cfg.WorkoutsDir)
	assert.Equal(t, 30*time.Second, cfg.ScanTimeout)
	assert.True(t, cfg.Mock)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treadmill.yaml")
	content := "device-name: FILE_TREADMILL\nworkouts-dir: /data/workouts\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "FILE_TREADMILL", cfg.DeviceName)
	assert.Equal(t, "/data/workouts", cfg.WorkoutsDir)
	// Values absent from the file keep their flag defaults.
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
}

func TestLoad_FlagBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treadmill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device-name: FILE_TREADMILL\n"), 0o644))

	cfg, err := Load([]string{"--config", path, "--device-name", "FLAG_TREADMILL"})
	require.NoError(t, err)
	assert.Equal(t, "FLAG_TREADMILL", cfg.DeviceName)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("TREADMILL_DEVICE_NAME", "ENV_TREADMILL")
	t.Setenv("TREADMILL_WORKOUTS_DIR", "/env/workouts")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "ENV_TREADMILL", cfg.DeviceName)
	assert.Equal(t, "/env/workouts", cfg.WorkoutsDir)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("TREADMILL_DEVICE_NAME", "ENV_TREADMILL")

	cfg, err := Load([]string{"--device-name", "FLAG_TREADMILL"})
	require.NoError(t, err)
	assert.Equal(t, "FLAG_TREADMILL", cfg.DeviceName)
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestLoad_BadScanTimeout(t *testing.T) {
	_, err := Load([]string{"--scan-timeout", "-5s"})
	assert.Error(t, err)
}
