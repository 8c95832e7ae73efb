// Package summary generates the deterministic one-line texts used in
// zero-touch operation: session summaries, hand-off notes and pickup
// prompts. Every output is forced to a single line and truncated to a
// configured maximum, so tracker tables and the clipboard never receive
// multi-line or oversized text.
package summary

import (
	"fmt"
	"strings"

	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/store"
)

// Ellipsis marks truncated output.
const Ellipsis = "…"

// OneLine collapses internal whitespace runs (including newlines) to
// single spaces and truncates to max runes with an ellipsis marker.
// max <= 0 means no length bound.
func OneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return Ellipsis
	}
	return string(runes[:max-1]) + Ellipsis
}

// healthCounts tallies check outcomes for display.
func healthCounts(health map[string]store.HealthEntry) (pass, fail, notConfigured int) {
	for _, h := range health {
		switch h.Status {
		case "Pass":
			pass++
		case "Fail":
			fail++
		default:
			notConfigured++
		}
	}
	return
}

// Session builds the automatic session summary from the goal, hot files
// and health outcomes.
func Session(goal string, hotFiles []string, health map[string]store.HealthEntry, max int) string {
	var parts []string

	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "Worked on the repository"
	}
	parts = append(parts, goal)

	switch n := len(hotFiles); {
	case n == 0:
		parts = append(parts, "no files touched")
	case n <= 3:
		parts = append(parts, fmt.Sprintf("touched %s", strings.Join(hotFiles, ", ")))
	default:
		parts = append(parts, fmt.Sprintf("touched %d files incl. %s", n, strings.Join(hotFiles[:2], ", ")))
	}

	pass, fail, nc := healthCounts(health)
	switch {
	case pass+fail == 0:
		parts = append(parts, "health not checked")
	case fail == 0:
		parts = append(parts, fmt.Sprintf("health %d/%d pass", pass, pass))
	default:
		parts = append(parts, fmt.Sprintf("health %d pass, %d fail", pass, fail))
	}
	if nc > 0 && pass+fail > 0 {
		parts[len(parts)-1] += fmt.Sprintf(", %d not configured", nc)
	}

	return OneLine(strings.Join(parts, "; "), max)
}

// HandoffNote builds a one-line note for an auto-generated hand-off.
func HandoffNote(goal string, hotFiles []string, branch string, max int) string {
	var parts []string
	goal = strings.TrimSpace(goal)
	if goal != "" {
		parts = append(parts, "Continuing: "+goal)
	} else {
		parts = append(parts, "Continuing previous session")
	}
	if len(hotFiles) > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) in flight", len(hotFiles)))
	}
	if branch != "" {
		parts = append(parts, "on "+branch)
	}
	return OneLine(strings.Join(parts, "; "), max)
}

// PickupPrompt builds the one-line prompt handed to the next agent (or
// capability pool) to resume the work, suitable for direct clipboard use.
func PickupPrompt(rec handoff.Record, max int) string {
	var target string
	switch {
	case rec.OwnerMode == handoff.OwnerAuto:
		target = "an agent with " + strings.Join(rec.RequiredCapabilities, ", ")
	case len(rec.ToAgents) > 0:
		target = strings.Join(rec.ToAgents, " and ")
	default:
		target = "the next agent"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Pick up handoff %s from %s: %s.", target, rec.ID, rec.FromAgent, rec.Summary)
	if len(rec.Files) > 0 {
		fmt.Fprintf(&b, " Files: %s.", strings.Join(rec.Files, ", "))
	}
	if rec.Branch != "" {
		fmt.Fprintf(&b, " Branch: %s.", rec.Branch)
	}
	b.WriteString(" Read AgentTracker.md first.")

	return OneLine(b.String(), max)
}
