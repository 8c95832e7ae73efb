package summary

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/store"
)

func TestOneLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "hello world", 80, "hello world"},
		{"collapses newlines", "line one\nline two\n\nline three", 80, "line one line two line three"},
		{"collapses tabs and runs", "a  \t b", 80, "a b"},
		{"truncates with ellipsis", "abcdefghij", 5, "abcd…"},
		{"exact fit untouched", "abcde", 5, "abcde"},
		{"no bound", strings.Repeat("x ", 200), 0, strings.TrimSpace(strings.Repeat("x ", 200))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OneLine(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "\n")
			if tt.max > 0 {
				assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
			}
		})
	}
}

func TestSessionSummary(t *testing.T) {
	health := map[string]store.HealthEntry{
		"build": {Status: store.HealthPass},
		"test":  {Status: store.HealthFail},
	}
	got := Session("Fix login bug", []string{"auth/login.go"}, health, 160)

	assert.Contains(t, got, "Fix login bug")
	assert.Contains(t, got, "auth/login.go")
	assert.Contains(t, got, "1 pass, 1 fail")
	assert.NotContains(t, got, "\n")
}

func TestSessionSummaryEmptyInputs(t *testing.T) {
	got := Session("", nil, nil, 160)

	assert.Contains(t, got, "Worked on the repository")
	assert.Contains(t, got, "no files touched")
	assert.Contains(t, got, "health not checked")
}

func TestSessionSummaryManyFiles(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go", "d.go", "e.go"}
	got := Session("refactor", files, nil, 160)

	assert.Contains(t, got, "5 files")
	assert.NotContains(t, got, "e.go", "only the leading files are named")
}

func TestSessionSummaryBounded(t *testing.T) {
	long := strings.Repeat("very long goal ", 40)
	got := Session(long, nil, nil, 160)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 160)
	assert.True(t, strings.HasSuffix(got, Ellipsis))
}

func TestHandoffNote(t *testing.T) {
	got := HandoffNote("Fix login bug", []string{"a.go", "b.go"}, "fix/login", 160)

	assert.Contains(t, got, "Continuing: Fix login bug")
	assert.Contains(t, got, "2 file(s) in flight")
	assert.Contains(t, got, "on fix/login")
}

func TestPickupPrompt(t *testing.T) {
	rec := handoff.Record{
		ID:        "HO-20250301-001",
		FromAgent: "Claude",
		ToAgents:  []string{"Codex"},
		OwnerMode: handoff.OwnerSingle,
		Summary:   "continue the login fix",
		Files:     []string{"auth/login.go"},
		Branch:    "fix/login",
	}
	got := PickupPrompt(rec, 0)

	assert.Contains(t, got, "You are Codex.")
	assert.Contains(t, got, "HO-20250301-001")
	assert.Contains(t, got, "from Claude")
	assert.Contains(t, got, "auth/login.go")
	assert.Contains(t, got, "Branch: fix/login")
	assert.Contains(t, got, "Read AgentTracker.md first.")
}

func TestPickupPromptAutoMode(t *testing.T) {
	rec := handoff.Record{
		ID:                   "HO-20250301-002",
		FromAgent:            "Claude",
		OwnerMode:            handoff.OwnerAuto,
		RequiredCapabilities: []string{"go", "sql"},
		Summary:              "migrate the schema",
	}
	got := PickupPrompt(rec, 0)

	assert.Contains(t, got, "an agent with go, sql")
}
