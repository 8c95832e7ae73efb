// Package tracker reads and rewrites the AgentTracker.md ledger: named
// markdown sections addressed by heading, and the bold key fields inside
// them. Pure text transforms, no I/O.
package tracker

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FileName is the tracker document's name at the workspace root.
const FileName = "AgentTracker.md"

// Section headings used by the protocol. Bodies follow the formats in the
// session package; any other heading is left untouched.
const (
	SecLastSession   = "Last Session"
	SecHealth        = "Current Health"
	SecHotFiles      = "Hot Files"
	SecInProgress    = "In Progress"
	SecSuggestedNext = "Suggested Next Work"
	SecHandoffs      = "Agent Handoffs"
)

// NothingActive is the In Progress placeholder when no work is pending.
const NothingActive = "*Nothing active*"

// headingPattern matches a "## <name>" heading line for the given section
// name. The name is quoted so user-chosen headings with regexp
// metacharacters cannot corrupt section boundaries.
func headingPattern(heading string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^##[ \t]+` + regexp.QuoteMeta(heading) + `[ \t]*$`)
}

// anyHeading matches any markdown heading line, which terminates a section
// body. Adjacent headings therefore yield empty bodies rather than
// swallowing the next section.
var anyHeading = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S`)

// Section returns the trimmed body between the named heading and the next
// heading line (or end of document). Returns "" if the heading is absent.
func Section(doc, heading string) string {
	loc := headingPattern(heading).FindStringIndex(doc)
	if loc == nil {
		return ""
	}
	rest := doc[loc[1]:]
	if next := anyHeading.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

// WithSection returns doc with the named section's body replaced in place,
// or with a new heading+body block appended when the heading is absent.
// The result never contains two blocks with the same heading.
func WithSection(doc, heading, body string) string {
	body = strings.TrimSpace(body)
	loc := headingPattern(heading).FindStringIndex(doc)
	if loc == nil {
		out := strings.TrimRight(doc, "\n")
		if out != "" {
			out += "\n\n"
		}
		return out + "## " + heading + "\n\n" + body + "\n"
	}

	before := doc[:loc[1]]
	rest := doc[loc[1]:]
	after := ""
	if next := anyHeading.FindStringIndex(rest); next != nil {
		after = rest[next[0]:]
	}

	out := before + "\n\n" + body + "\n"
	if after != "" {
		out += "\n" + after
	}
	return out
}

// Field extracts a "**Name:** value" bold field from text. Returns ""
// when absent. This is the format the Last Session section uses for its
// agent/date lines.
func Field(text, name string) string {
	re := regexp.MustCompile(`(?m)^\*\*` + regexp.QuoteMeta(name) + `:\*\*[ \t]*(.+)$`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// FieldLine formats a "**Name:** value" line.
func FieldLine(name, value string) string {
	return fmt.Sprintf("**%s:** %s", name, value)
}

// DefaultDocument builds the initial tracker document for a workspace.
func DefaultDocument(workspaceName string) string {
	var b strings.Builder
	b.WriteString("# Agent Tracker: " + workspaceName + "\n\n")
	b.WriteString("Shared ledger for agent sessions in this repository.\n")
	b.WriteString("Updated by `agentsync`; safe to read, edit with care.\n\n")
	b.WriteString("## " + SecLastSession + "\n\n")
	b.WriteString("*No sessions yet*\n\n")
	b.WriteString("## " + SecHealth + "\n\n")
	b.WriteString("*Not checked*\n\n")
	b.WriteString("## " + SecHotFiles + "\n\n")
	b.WriteString("*None*\n\n")
	b.WriteString("## " + SecInProgress + "\n\n")
	b.WriteString(NothingActive + "\n\n")
	b.WriteString("## " + SecSuggestedNext + "\n\n")
	b.WriteString("## " + SecHandoffs + "\n\n")
	b.WriteString("*No open handoffs*\n")
	return b.String()
}

// ParseISO parses a strict ISO-8601 timestamp: the date must carry a time
// part (a bare date or a locale string is rejected).
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
}

// FormatISO renders t in the wire format used across the tracker, state
// file and handoff store.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
