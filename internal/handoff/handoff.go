// Package handoff manages the append-only handoffs.json store: record
// validation, id sequencing, status transitions and the tracker section
// rendered from open records.
package handoff

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

var handoffLog = logging.ForComponent(logging.CompHandoff)

// Owner modes.
const (
	OwnerSingle = "single"
	OwnerShared = "shared"
	OwnerAuto   = "auto"
)

// Well-known statuses. Other values are accepted and carried opaquely.
const (
	StatusQueued         = "queued"
	StatusInProgress     = "in_progress"
	StatusBlocked        = "blocked"
	StatusReadyForReview = "ready_for_review"
	StatusApproved       = "approved"
	StatusDone           = "done"
)

// StateChange is one entry in a record's append-only audit trail.
type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   string `json:"at"`
}

// Record is one hand-off in handoffs.json. Records are immutable once
// appended except for status, updated_at, state_history and
// prompt_copied_to_clipboard.
type Record struct {
	ID                   string        `json:"handoff_id"`
	FromAgent            string        `json:"from_agent"`
	ToAgents             []string      `json:"to_agents"`
	OwnerMode            string        `json:"owner_mode"`
	RequiredCapabilities []string      `json:"required_capabilities,omitempty"`
	Status               string        `json:"status"`
	Summary              string        `json:"summary"`
	Notes                string        `json:"notes,omitempty"`
	NoHandoffReason      *string       `json:"no_handoff_reason"`
	Files                []string      `json:"files,omitempty"`
	Branch               string        `json:"branch,omitempty"`
	Commit               string        `json:"commit,omitempty"`
	CreatedAt            string        `json:"created_at"`
	UpdatedAt            string        `json:"updated_at,omitempty"`
	PromptCopied         bool          `json:"prompt_copied_to_clipboard,omitempty"`
	StateHistory         []StateChange `json:"state_history,omitempty"`
}

// IsSkip reports whether this is a skip record (work deliberately not
// handed off, with a recorded reason).
func (r Record) IsSkip() bool {
	return r.NoHandoffReason != nil && strings.TrimSpace(*r.NoHandoffReason) != ""
}

// IsOpen reports whether the hand-off still needs a pickup. Skip records
// and done records are closed.
func (r Record) IsOpen() bool {
	return !r.IsSkip() && r.Status != StatusDone
}

// Validate checks record invariants and returns every violation, not just
// the first, so a caller can report all problems at once.
func Validate(r Record) []string {
	var errs []string

	if strings.TrimSpace(r.FromAgent) == "" {
		errs = append(errs, "from_agent is required")
	}
	if strings.TrimSpace(r.Summary) == "" {
		errs = append(errs, "summary is required")
	}
	if strings.TrimSpace(r.Status) == "" {
		errs = append(errs, "status is required")
	}
	if strings.TrimSpace(r.CreatedAt) == "" {
		errs = append(errs, "created_at is required")
	} else if _, err := tracker.ParseISO(r.CreatedAt); err != nil {
		errs = append(errs, fmt.Sprintf("created_at must be ISO-8601, got %q", r.CreatedAt))
	}

	if r.NoHandoffReason != nil && strings.TrimSpace(*r.NoHandoffReason) == "" {
		errs = append(errs, "no_handoff_reason must be non-empty when present")
	}

	if r.IsSkip() {
		// Skip records document why no hand-off happened; target-count
		// invariants do not apply because to_agents must be empty.
		if strings.TrimSpace(r.OwnerMode) == "" {
			errs = append(errs, "owner_mode is required")
		}
		if len(r.ToAgents) != 0 {
			errs = append(errs, "a skip record must have no to_agents")
		}
		return errs
	}

	switch r.OwnerMode {
	case OwnerSingle:
		if len(r.ToAgents) != 1 {
			errs = append(errs, fmt.Sprintf("owner_mode single requires exactly 1 to_agent, got %d", len(r.ToAgents)))
		}
	case OwnerShared:
		if len(r.ToAgents) != 2 {
			errs = append(errs, fmt.Sprintf("owner_mode shared requires exactly 2 to_agents, got %d", len(r.ToAgents)))
		}
	case OwnerAuto:
		if len(r.RequiredCapabilities) < 1 {
			errs = append(errs, "owner_mode auto requires at least 1 required capability")
		}
		if len(r.ToAgents) != 0 {
			errs = append(errs, "owner_mode auto routes by capability and must have no to_agents")
		}
	case "":
		errs = append(errs, "owner_mode is required")
	default:
		errs = append(errs, fmt.Sprintf("unknown owner_mode %q", r.OwnerMode))
	}

	return errs
}

// File is the handoffs.json document shape.
type File struct {
	Version  int      `json:"version"`
	Handoffs []Record `json:"handoffs"`
}

// Load reads handoffs.json permissively: absence or parse failure yields
// an empty version-1 file.
func Load(ws store.Workspace) File {
	data, err := os.ReadFile(ws.HandoffsPath())
	if err != nil {
		return File{Version: 1}
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		handoffLog.Warn("handoffs_parse_failed_using_empty",
			slog.String("path", ws.HandoffsPath()),
			slog.String("error", err.Error()))
		return File{Version: 1}
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return f
}

// Save writes handoffs.json atomically.
func Save(ws store.Workspace, f File) error {
	if err := ws.EnsureStateDir(); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return store.WriteJSONAtomic(ws.HandoffsPath(), f)
}

// NextID builds the next handoff id, HO-YYYYMMDD-NNN. The sequence is
// scoped to the file's current length at write time, not to the day.
func NextID(f File, now time.Time) string {
	return fmt.Sprintf("HO-%s-%03d", now.UTC().Format("20060102"), len(f.Handoffs)+1)
}

// Append validates rec, assigns its id and initial audit entry, and
// appends it to handoffs.json. An invalid record is rejected outright: a
// malformed hand-off persisted is worse than none.
func Append(ws store.Workspace, rec Record, now time.Time) (Record, error) {
	if errs := Validate(rec); len(errs) > 0 {
		return Record{}, fmt.Errorf("invalid handoff: %s", strings.Join(errs, "; "))
	}

	f := Load(ws)
	rec.ID = NextID(f, now)
	rec.UpdatedAt = tracker.FormatISO(now)
	rec.StateHistory = append(rec.StateHistory, StateChange{
		From: "",
		To:   rec.Status,
		At:   tracker.FormatISO(now),
	})
	f.Handoffs = append(f.Handoffs, rec)

	if err := Save(ws, f); err != nil {
		return Record{}, err
	}
	handoffLog.Info("handoff_appended",
		slog.String("id", rec.ID),
		slog.String("from", rec.FromAgent),
		slog.String("owner_mode", rec.OwnerMode))
	return rec, nil
}

// UpdateStatus transitions a record's status, appending to its audit
// trail. Only status, updated_at and the history may change.
func UpdateStatus(ws store.Workspace, id, status string, now time.Time) (Record, error) {
	if strings.TrimSpace(status) == "" {
		return Record{}, fmt.Errorf("status is required")
	}

	f := Load(ws)
	for i := range f.Handoffs {
		if f.Handoffs[i].ID != id {
			continue
		}
		rec := &f.Handoffs[i]
		rec.StateHistory = append(rec.StateHistory, StateChange{
			From: rec.Status,
			To:   status,
			At:   tracker.FormatISO(now),
		})
		rec.Status = status
		rec.UpdatedAt = tracker.FormatISO(now)
		if err := Save(ws, f); err != nil {
			return Record{}, err
		}
		return *rec, nil
	}
	return Record{}, fmt.Errorf("handoff %s not found", id)
}

// MarkPromptCopied records that a pickup prompt reached the clipboard.
func MarkPromptCopied(ws store.Workspace, id string) error {
	f := Load(ws)
	for i := range f.Handoffs {
		if f.Handoffs[i].ID == id {
			f.Handoffs[i].PromptCopied = true
			return Save(ws, f)
		}
	}
	return fmt.Errorf("handoff %s not found", id)
}

// Open returns the open records, oldest first.
func Open(ws store.Workspace) []Record {
	var open []Record
	for _, r := range Load(ws).Handoffs {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	return open
}

// RenderSection renders the Agent Handoffs tracker body from the full
// open-record list. The section is always rewritten wholesale so it can
// never drift from handoffs.json.
func RenderSection(open []Record) string {
	if len(open) == 0 {
		return "*No open handoffs*"
	}
	var b strings.Builder
	for i, r := range open {
		if i > 0 {
			b.WriteString("\n")
		}
		target := strings.Join(r.ToAgents, ", ")
		if r.OwnerMode == OwnerAuto {
			target = "any agent with " + strings.Join(r.RequiredCapabilities, ", ")
		}
		fmt.Fprintf(&b, "- **%s** (%s) %s → %s: %s", r.ID, r.Status, r.FromAgent, target, r.Summary)
		if r.Branch != "" {
			fmt.Fprintf(&b, " [%s]", r.Branch)
		}
	}
	return b.String()
}
