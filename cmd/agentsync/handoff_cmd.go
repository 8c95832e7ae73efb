package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/runner"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

// refreshHandoffSection re-renders the Agent Handoffs tracker section and
// the handoff counters in state.json after handoffs.json changed.
func refreshHandoffSection(ws store.Workspace) error {
	open := handoff.Open(ws)

	if ws.TrackerExists() {
		doc, err := ws.ReadTracker()
		if err != nil {
			return err
		}
		doc = tracker.WithSection(doc, tracker.SecHandoffs, handoff.RenderSection(open))
		if err := ws.WriteTracker(doc); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(open))
	for _, r := range open {
		ids = append(ids, r.ID)
	}
	st := ws.LoadState()
	st.OpenHandoffCount = len(open)
	st.ActiveHandoffIDs = ids
	st.LastUpdated = tracker.FormatISO(time.Now())
	return ws.SaveState(st)
}

func handleHandoff(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: agentsync handoff <list|add|update> [flags]")
		os.Exit(1)
	}
	switch args[0] {
	case "list", "ls":
		handleHandoffList(args[1:])
	case "add":
		handleHandoffAdd(args[1:])
	case "update":
		handleHandoffUpdate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown handoff subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func handleHandoffList(args []string) {
	fs := flag.NewFlagSet("handoff list", flag.ExitOnError)
	cf := addCommonFlags(fs)
	all := fs.Bool("all", false, "include done and skip records")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	ws, err := resolveWorkspace(*cf.dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	records := handoff.Load(ws).Handoffs
	if !*all {
		var open []handoff.Record
		for _, r := range records {
			if r.IsOpen() {
				open = append(open, r)
			}
		}
		records = open
	}

	git := runner.Git{Dir: ws.Root}
	currentBranch := git.Branch()

	var b strings.Builder
	if len(records) == 0 {
		b.WriteString("No handoffs.\n")
	}
	for _, r := range records {
		target := strings.Join(r.ToAgents, ", ")
		if r.OwnerMode == handoff.OwnerAuto {
			target = "any agent with " + strings.Join(r.RequiredCapabilities, ", ")
		}
		if r.IsSkip() {
			fmt.Fprintf(&b, "%s %s (skipped) %s: %s\n", bulletSymbol, r.ID, r.FromAgent, *r.NoHandoffReason)
			continue
		}
		merged := ""
		if r.Branch != "" && r.Branch != currentBranch && git.IsAncestor(r.Branch, "HEAD") {
			merged = " [branch merged]"
		}
		fmt.Fprintf(&b, "%s %s (%s) %s → %s: %s%s\n", bulletSymbol, r.ID, r.Status, r.FromAgent, target, r.Summary, merged)
		if len(r.Files) > 0 {
			fmt.Fprintf(&b, "    files: %s\n", strings.Join(r.Files, ", "))
		}
	}

	out.Print(b.String(), map[string]interface{}{"handoffs": records})
}

func handleHandoffAdd(args []string) {
	fs := flag.NewFlagSet("handoff add", flag.ExitOnError)
	cf := addCommonFlags(fs)
	from := fs.String("from", "", "originating agent (required)")
	to := fs.String("to", "", "comma-separated target agents")
	ownerMode := fs.String("owner-mode", handoff.OwnerSingle, "owner mode: single, shared, auto")
	capabilities := fs.String("capabilities", "", "comma-separated required capabilities (auto mode)")
	summaryText := fs.String("summary", "", "one-line summary (required)")
	notes := fs.String("notes", "", "free-form notes")
	files := fs.String("files", "", "comma-separated files in flight")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	ws, err := resolveWorkspace(*cf.dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	now := time.Now()
	git := runner.Git{Dir: ws.Root}
	rec := handoff.Record{
		FromAgent:            strings.TrimSpace(*from),
		ToAgents:             splitList(*to),
		OwnerMode:            *ownerMode,
		RequiredCapabilities: splitList(*capabilities),
		Status:               handoff.StatusQueued,
		Summary:              strings.TrimSpace(*summaryText),
		Notes:                *notes,
		Files:                splitList(*files),
		Branch:               git.Branch(),
		Commit:               git.ShortCommit(),
		CreatedAt:            tracker.FormatISO(now),
	}

	stored, err := handoff.Append(ws, rec, now)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	if err := refreshHandoffSection(ws); err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	out.Success(fmt.Sprintf("handoff %s recorded", stored.ID), map[string]interface{}{
		"success": true,
		"handoff": stored,
	})
}

func handleHandoffUpdate(args []string) {
	fs := flag.NewFlagSet("handoff update", flag.ExitOnError)
	cf := addCommonFlags(fs)
	status := fs.String("status", "", "new status (required)")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	rest := fs.Args()
	if len(rest) == 0 {
		out.Error("handoff id is required", ErrCodeInvalidInput)
		os.Exit(1)
	}
	id := rest[0]

	ws, err := resolveWorkspace(*cf.dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	rec, err := handoff.UpdateStatus(ws, id, *status, time.Now())
	if err != nil {
		code := ErrCodeInvalidInput
		if strings.Contains(err.Error(), "not found") {
			code = ErrCodeNotFound
		}
		out.Error(err.Error(), code)
		os.Exit(1)
	}

	if err := refreshHandoffSection(ws); err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	out.Success(fmt.Sprintf("handoff %s is now %s", rec.ID, rec.Status), map[string]interface{}{
		"success": true,
		"handoff": rec,
	})
}
