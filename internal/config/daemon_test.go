package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDaemonConfigIsValid(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "top-right", cfg.Anchor)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Low.Duration())
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Normal.Duration())
	assert.Equal(t, time.Duration(0), cfg.Timeouts.Urgent.Duration())
	assert.Equal(t, 3, cfg.Behavior.MaxNotifications)
	assert.Equal(t, 2, cfg.Behavior.MaxPerApp)
}

func TestDurationUnmarshalsHumanReadableAndMilliseconds(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration())

	var ms Duration
	require.NoError(t, ms.UnmarshalText([]byte("5000")))
	assert.Equal(t, 5*time.Second, ms.Duration())

	var bad Duration
	assert.Error(t, bad.UnmarshalText([]byte("not-a-duration")))
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Behavior.MaxNotifications = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.Content.MaxImageSize = 16
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.Audio.Volume = 150
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.Behavior.MaxPerApp = -1
	assert.Error(t, cfg.Validate())
}

func TestGetTimeoutForUrgencyPicksRightCap(t *testing.T) {
	cfg := DefaultDaemonConfig()
	assert.Equal(t, 3000, cfg.GetTimeoutForUrgency(0))
	assert.Equal(t, 5000, cfg.GetTimeoutForUrgency(1))
	assert.Equal(t, 0, cfg.GetTimeoutForUrgency(2))
	assert.Equal(t, 5000, cfg.GetTimeoutForUrgency(99), "unknown urgency falls back to normal")
}

func TestLoadDaemonConfigFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadDaemonConfigFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestLoadDaemonConfigFromOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifd.toml")
	contents := `
anchor = "bottom-left"

[behavior]
max_notifications = 5
max_per_app = 1

[audio]
volume = 40
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadDaemonConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "bottom-left", cfg.Anchor)
	assert.Equal(t, 5, cfg.Behavior.MaxNotifications)
	assert.Equal(t, 1, cfg.Behavior.MaxPerApp)
	assert.Equal(t, 40, cfg.Audio.Volume)
	// Untouched sections keep their defaults.
	assert.True(t, cfg.Content.ShowImages)
}

func TestLoadDaemonConfigFromRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifd.toml")
	contents := `
[audio]
volume = 1000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := LoadDaemonConfigFrom(path)
	assert.Error(t, err)
}

func TestSaveDaemonConfigWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := DefaultDaemonConfig()
	cfg.Anchor = "top-left"
	require.NoError(t, SaveDaemonConfig(cfg))

	loaded, err := LoadDaemonConfig()
	require.NoError(t, err)
	assert.Equal(t, "top-left", loaded.Anchor)

	path, err := DaemonConfigPath()
	require.NoError(t, err)
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "temp file must not survive a successful rename")
}

func TestGetSoundForUrgencyExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultDaemonConfig()
	cfg.Audio.Sounds.Normal = "~/sounds/ping.wav"
	assert.Equal(t, filepath.Join(home, "sounds/ping.wav"), cfg.GetSoundForUrgency(1))
}
