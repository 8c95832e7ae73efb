// Package config loads agentsync configuration: the workspace-level
// .agentsync.json that governs coordination behavior, and the user-level
// config.toml that carries tool preferences. All defaults resolve in one
// place; malformed input yields defaults, never an error.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/twistedxcom/agentsync/internal/logging"
)

var cfgLog = logging.ForComponent(logging.CompStore)

// FileName is the workspace configuration file.
const FileName = ".agentsync.json"

// Config is the workspace configuration shape. Optional fields keep their
// zero value when unset; Load applies documented defaults afterwards.
type Config struct {
	// StaleAfterHours marks the tracker's last session as stale for
	// status display once this many hours have passed.
	StaleAfterHours float64 `json:"staleAfterHours,omitempty"`

	// AutoStaleSessionMinutes flips an active session to "waiting" once
	// it has run this long. Zero disables staleness detection.
	AutoStaleSessionMinutes float64 `json:"autoStaleSessionMinutes,omitempty"`

	// Commands holds the configured health-check command strings.
	Commands Commands `json:"commands,omitempty"`

	// RequireHandoffOnEndSession rejects endSession when hot files exist
	// and neither a handoff nor a skip reason was supplied.
	RequireHandoffOnEndSession bool `json:"requireHandoffOnEndSession,omitempty"`

	// Automation configures zero-touch behavior.
	Automation Automation `json:"automation,omitempty"`
}

// Commands holds the three configurable health checks. Empty string means
// not configured.
type Commands struct {
	Build  string `json:"build,omitempty"`
	Test   string `json:"test,omitempty"`
	Deploy string `json:"deploy,omitempty"`
}

// Map returns the configured checks keyed by name.
func (c Commands) Map() map[string]string {
	return map[string]string{
		"build":  c.Build,
		"test":   c.Test,
		"deploy": c.Deploy,
	}
}

// Automation configures zero-touch end-session behavior and default
// handoff routes.
type Automation struct {
	EndSessionZeroTouch    ZeroTouch        `json:"endSessionZeroTouch,omitempty"`
	HandoffRoutingDefaults map[string]Route `json:"handoffRoutingDefaults,omitempty"`
}

// ZeroTouch controls automated summary and handoff generation.
type ZeroTouch struct {
	Enabled               bool   `json:"enabled,omitempty"`
	Autonomy              string `json:"autonomy,omitempty"`
	CopyPromptToClipboard bool   `json:"copyPromptToClipboard,omitempty"`
	MaxSummaryLength      int    `json:"maxSummaryLength,omitempty"`
}

// Route is a per-agent default handoff routing rule.
type Route struct {
	OwnerMode            string   `json:"owner_mode"`
	ToAgents             []string `json:"to_agents,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
}

// Defaults returns the documented default configuration.
func Defaults() Config {
	return Config{
		StaleAfterHours:         24,
		AutoStaleSessionMinutes: 0,
		Automation: Automation{
			EndSessionZeroTouch: ZeroTouch{
				MaxSummaryLength: 160,
			},
		},
	}
}

// Load reads the workspace config from dir. Absence and parse failure both
// yield Defaults() (permissive parse); the substitution is logged so a
// broken config is discoverable.
func Load(dir string) Config {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults()
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		cfgLog.Warn("config_parse_failed_using_defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return Defaults()
	}

	// re-apply defaults the file zeroed out structurally
	if cfg.StaleAfterHours <= 0 {
		cfg.StaleAfterHours = 24
	}
	if cfg.AutoStaleSessionMinutes < 0 {
		cfg.AutoStaleSessionMinutes = 0
	}
	if cfg.Automation.EndSessionZeroTouch.MaxSummaryLength <= 0 {
		cfg.Automation.EndSessionZeroTouch.MaxSummaryLength = 160
	}
	return cfg
}

// NormalizeAgent canonicalizes an agent identifier for routing lookups:
// lowercased, trimmed, internal whitespace runs collapsed to underscores.
func NormalizeAgent(agent string) string {
	fields := strings.Fields(strings.ToLower(agent))
	return strings.Join(fields, "_")
}

// RouteFor resolves a per-agent default route, normalizing both the lookup
// key and the configured keys. Returns nil when no valid route exists,
// signaling the caller to fall back to interactive or skip behavior.
func (c Config) RouteFor(agent string) *Route {
	want := NormalizeAgent(agent)
	if want == "" {
		return nil
	}
	for id, route := range c.Automation.HandoffRoutingDefaults {
		if NormalizeAgent(id) != want {
			continue
		}
		switch route.OwnerMode {
		case "single":
			if len(route.ToAgents) == 1 {
				return &route
			}
		case "shared":
			if len(route.ToAgents) == 2 {
				return &route
			}
		case "auto":
			if len(route.RequiredCapabilities) >= 1 && len(route.ToAgents) == 0 {
				return &route
			}
		}
		return nil
	}
	return nil
}
