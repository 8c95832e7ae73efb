package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// UserConfigFileName is the TOML config file for user preferences, kept
// under ~/.agentsync. Unlike .agentsync.json this never affects
// coordination semantics, only the local tool's behavior.
const UserConfigFileName = "config.toml"

// UserConfig represents user-facing configuration in TOML format.
type UserConfig struct {
	// Logs defines debug log settings
	Logs LogSettings `toml:"logs"`

	// History defines the local session-history journal settings
	History HistorySettings `toml:"history"`

	// Clipboard defines pickup-prompt clipboard behavior
	Clipboard ClipboardSettings `toml:"clipboard"`
}

// LogSettings defines debug log management settings.
type LogSettings struct {
	// DebugLevel overrides the log level: "debug", "info", "warn", "error"
	DebugLevel string `toml:"debug_level"`

	// DebugFormat is "json" (default) or "text"
	DebugFormat string `toml:"debug_format"`

	// DebugMaxMB is the max debug.log size before rotation
	DebugMaxMB int `toml:"debug_max_mb"`

	// DebugBackups is the number of rotated files to keep
	DebugBackups int `toml:"debug_backups"`

	// DebugRetentionDays is days to keep rotated files
	DebugRetentionDays int `toml:"debug_retention_days"`

	// DebugCompress compresses rotated files
	DebugCompress bool `toml:"debug_compress"`
}

// HistorySettings controls the local SQLite session-event journal.
type HistorySettings struct {
	// Disabled turns off history recording entirely
	Disabled bool `toml:"disabled"`

	// RetentionDays prunes events older than this on open (default 90)
	RetentionDays int `toml:"retention_days"`
}

// GetRetentionDays returns the effective retention window.
func (h HistorySettings) GetRetentionDays() int {
	if h.RetentionDays <= 0 {
		return 90
	}
	return h.RetentionDays
}

// ClipboardSettings controls prompt copying.
type ClipboardSettings struct {
	// Disabled suppresses clipboard use even when the workspace config
	// asks for copyPromptToClipboard
	Disabled bool `toml:"disabled"`
}

var (
	userConfigOnce   sync.Once
	cachedUserConfig UserConfig
)

// BaseDir returns the agentsync user directory (~/.agentsync), creating
// it if needed.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".agentsync")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// LoadUserConfig reads ~/.agentsync/config.toml, caching the result for
// the process lifetime. A missing or malformed file yields zero values.
func LoadUserConfig() UserConfig {
	userConfigOnce.Do(func() {
		dir, err := BaseDir()
		if err != nil {
			return
		}
		path := filepath.Join(dir, UserConfigFileName)
		if _, err := toml.DecodeFile(path, &cachedUserConfig); err != nil {
			cachedUserConfig = UserConfig{}
		}
	})
	return cachedUserConfig
}
