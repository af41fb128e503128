package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds for backwards compatibility.
// A value of "0" or 0 is a zero duration; as a TimeoutConfig cap it means no cap.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Try parsing as integer (milliseconds) for backwards compatibility
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	// Parse as duration string (e.g., "5s", "1m", "1h30m")
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d).Milliseconds())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for notifd, the notification daemon.
// Loaded from ~/.config/notifd/notifd.toml and hot-reloaded on change.
type DaemonConfig struct {
	Anchor   string         `toml:"anchor"` // placement hint; stored only, not read by the daemon
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Behavior BehaviorConfig `toml:"behavior"`
	Content  ContentConfig  `toml:"content"`
	Audio    AudioConfig    `toml:"audio"`
}

// TimeoutConfig contains per-urgency timeout caps. A notification's
// effective timeout is min(requested expire_timeout, cap for its urgency);
// a zero cap means no ceiling is applied for that urgency.
// Durations can be specified as "5s", "10s", "1m", etc. or as integer milliseconds.
type TimeoutConfig struct {
	Low    Duration `toml:"low"`    // default 3s
	Normal Duration `toml:"normal"` // default 5s
	Urgent Duration `toml:"urgent"` // default 0 (no cap)
}

// BehaviorConfig contains the visible-queue and do-not-disturb settings.
type BehaviorConfig struct {
	DoNotDisturb     bool `toml:"do_not_disturb"`    // stored only; notifications are surfaced regardless
	MaxNotifications int  `toml:"max_notifications"` // default 3; bounds only the reinsertion of per-app-displaced items, not plain inserts
	MaxPerApp        int  `toml:"max_per_app"`        // per-app cap within the visible queue, 0 disables
}

// ContentConfig contains rich-content toggles.
type ContentConfig struct {
	ShowImages       bool `toml:"show_images"`
	ShowActions      bool `toml:"show_actions"`
	MaxImageSize     int  `toml:"max_image_size"` // pixels, must be within [32,256]; Validate rejects other values
	EnableLinks      bool `toml:"enable_links"`
	EnableAnimations bool `toml:"enable_animations"`
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-urgency sound file paths.
type SoundConfig struct {
	Low    string `toml:"low"`
	Normal string `toml:"normal"`
	Urgent string `toml:"urgent"`
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Anchor: "top-right",
		Timeouts: TimeoutConfig{
			Low:    Duration(3 * time.Second),
			Normal: Duration(5 * time.Second),
			Urgent: Duration(0), // no cap
		},
		Behavior: BehaviorConfig{
			DoNotDisturb:     false,
			MaxNotifications: 3,
			MaxPerApp:        2,
		},
		Content: ContentConfig{
			ShowImages:       true,
			ShowActions:      true,
			MaxImageSize:     128,
			EnableLinks:      true,
			EnableAnimations: true,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
			Sounds:  SoundConfig{},
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "notifd", "notifd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from disk.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig() (*DaemonConfig, error) {
	path, err := DaemonConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadDaemonConfigFrom(path)
}

// LoadDaemonConfigFrom loads the daemon configuration from an explicit
// path, as used by --config. If the file doesn't exist, returns the
// default configuration.
func LoadDaemonConfigFrom(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to disk.
func SaveDaemonConfig(config *DaemonConfig) error {
	path, err := DaemonConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Behavior.MaxNotifications < 1 {
		return fmt.Errorf("max_notifications must be >= 1, got %d", c.Behavior.MaxNotifications)
	}
	if c.Behavior.MaxPerApp < 0 {
		return fmt.Errorf("max_per_app must be >= 0, got %d", c.Behavior.MaxPerApp)
	}

	if c.Content.MaxImageSize < 32 || c.Content.MaxImageSize > 256 {
		return fmt.Errorf("max_image_size must be between 32 and 256, got %d", c.Content.MaxImageSize)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	return nil
}

// GetTimeoutForUrgency returns the per-urgency timeout cap in milliseconds.
// A return of 0 means no cap is applied for that urgency level.
func (c *DaemonConfig) GetTimeoutForUrgency(urgency int) int {
	switch urgency {
	case 0: // Low
		return c.Timeouts.Low.Milliseconds()
	case 2: // Urgent
		return c.Timeouts.Urgent.Milliseconds()
	default: // Normal (1) or unknown
		return c.Timeouts.Normal.Milliseconds()
	}
}

// GetSoundForUrgency returns the sound file path for the given urgency level.
// Expands ~ to home directory.
func (c *DaemonConfig) GetSoundForUrgency(urgency int) string {
	var path string
	switch urgency {
	case 0: // Low
		path = c.Audio.Sounds.Low
	case 2: // Urgent
		path = c.Audio.Sounds.Urgent
	default: // Normal (1) or unknown
		path = c.Audio.Sounds.Normal
	}
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
