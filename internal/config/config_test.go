package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg := Load(t.TempDir())

	assert.Equal(t, 24.0, cfg.StaleAfterHours)
	assert.Equal(t, 0.0, cfg.AutoStaleSessionMinutes)
	assert.False(t, cfg.RequireHandoffOnEndSession)
	assert.Equal(t, 160, cfg.Automation.EndSessionZeroTouch.MaxSummaryLength)
}

func TestLoadMalformedFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "{this is not json")

	cfg := Load(dir)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"commands": {"build": "go build ./...", "test": "go test ./..."}}`)

	cfg := Load(dir)
	assert.Equal(t, "go build ./...", cfg.Commands.Build)
	assert.Equal(t, "go test ./...", cfg.Commands.Test)
	assert.Equal(t, "", cfg.Commands.Deploy)
	assert.Equal(t, 24.0, cfg.StaleAfterHours, "unset fields keep their defaults")
	assert.Equal(t, 160, cfg.Automation.EndSessionZeroTouch.MaxSummaryLength)
}

func TestLoadFullFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"staleAfterHours": 8,
		"autoStaleSessionMinutes": 90,
		"requireHandoffOnEndSession": true,
		"automation": {
			"endSessionZeroTouch": {
				"enabled": true,
				"copyPromptToClipboard": true,
				"maxSummaryLength": 120
			},
			"handoffRoutingDefaults": {
				"Claude": {"owner_mode": "single", "to_agents": ["Codex"]}
			}
		}
	}`)

	cfg := Load(dir)
	assert.Equal(t, 8.0, cfg.StaleAfterHours)
	assert.Equal(t, 90.0, cfg.AutoStaleSessionMinutes)
	assert.True(t, cfg.RequireHandoffOnEndSession)
	assert.True(t, cfg.Automation.EndSessionZeroTouch.Enabled)
	assert.Equal(t, 120, cfg.Automation.EndSessionZeroTouch.MaxSummaryLength)
}

func TestCommandsMap(t *testing.T) {
	m := Commands{Build: "make", Test: ""}.Map()
	assert.Equal(t, map[string]string{"build": "make", "test": "", "deploy": ""}, m)
}

func TestNormalizeAgent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Claude", "claude"},
		{"  Fix Bot ", "fix_bot"},
		{"GPT\t4  Turbo", "gpt_4_turbo"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAgent(tt.in), "input %q", tt.in)
	}
}

func TestRouteFor(t *testing.T) {
	cfg := Defaults()
	cfg.Automation.HandoffRoutingDefaults = map[string]Route{
		"Claude":    {OwnerMode: "single", ToAgents: []string{"Codex"}},
		"Pair Bot":  {OwnerMode: "shared", ToAgents: []string{"A", "B"}},
		"Robo":      {OwnerMode: "auto", RequiredCapabilities: []string{"go"}},
		"BadSingle": {OwnerMode: "single", ToAgents: []string{"A", "B"}},
		"BadAuto":   {OwnerMode: "auto", ToAgents: []string{"A"}, RequiredCapabilities: []string{"go"}},
	}

	route := cfg.RouteFor("claude")
	require.NotNil(t, route)
	assert.Equal(t, []string{"Codex"}, route.ToAgents)

	route = cfg.RouteFor("  pair   bot ")
	require.NotNil(t, route, "lookup normalizes whitespace and case")
	assert.Equal(t, "shared", route.OwnerMode)

	require.NotNil(t, cfg.RouteFor("Robo"))

	assert.Nil(t, cfg.RouteFor("badsingle"), "single mode requires exactly one target")
	assert.Nil(t, cfg.RouteFor("badauto"), "auto mode forbids explicit targets")
	assert.Nil(t, cfg.RouteFor("nobody"))
	assert.Nil(t, cfg.RouteFor(""))
}
