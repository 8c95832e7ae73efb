package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/session"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cf := addCommonFlags(fs)
	force := fs.Bool("force", false, "overwrite existing files")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	ws, err := resolveWorkspace(*cf.dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	res, err := session.InitWorkspace(ws, *force)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	msg := fmt.Sprintf("workspace initialized: %d file(s) created", len(res.Created))
	if len(res.Skipped) > 0 {
		msg += fmt.Sprintf(", %d skipped (already exist)", len(res.Skipped))
	}
	out.Success(msg, map[string]interface{}{
		"success": true,
		"created": res.Created,
		"skipped": res.Skipped,
	})
}

func handleStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	cf := addCommonFlags(fs)
	agent := fs.String("agent", "", "agent name (required)")
	goal := fs.String("goal", "", "session goal")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, true)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	if err := svc.Start(*agent, *goal); err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}
	out.Success(fmt.Sprintf("session started for %s", *agent), map[string]interface{}{
		"success": true,
		"agent":   *agent,
		"goal":    *goal,
	})
}

func handleEnd(args []string) {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	cf := addCommonFlags(fs)
	agent := fs.String("agent", "", "agent name (defaults to the active session's)")
	summaryText := fs.String("summary", "", "one-line session summary")
	nextWork := fs.String("next-work", "", "suggested next work item")
	noHandoff := fs.String("no-handoff-reason", "", "reason for leaving hot files without a handoff")
	handoffTo := fs.String("handoff-to", "", "comma-separated agents to hand off to")
	handoffNote := fs.String("handoff-note", "", "handoff summary line")
	ownerMode := fs.String("owner-mode", "", "handoff owner mode: single, shared, auto")
	capabilities := fs.String("capabilities", "", "comma-separated required capabilities (auto mode)")
	zeroTouch := fs.Bool("zero-touch", false, "generate summary and route handoffs automatically")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, true)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	opts := session.EndOptions{
		Agent:           *agent,
		Summary:         *summaryText,
		NextWork:        *nextWork,
		NoHandoffReason: *noHandoff,
		ZeroTouch:       *zeroTouch,
	}
	if *handoffTo != "" || *ownerMode != "" || *capabilities != "" {
		opts.Handoff = &handoff.Record{
			ToAgents:             splitList(*handoffTo),
			OwnerMode:            *ownerMode,
			RequiredCapabilities: splitList(*capabilities),
			Summary:              *handoffNote,
		}
		if opts.Handoff.OwnerMode == "" {
			opts.Handoff.OwnerMode = handoff.OwnerSingle
		}
	}

	res, err := svc.End(context.Background(), opts)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s session ended for %s\n", successSymbol, res.Agent)
	fmt.Fprintf(&b, "%s summary: %s\n", bulletSymbol, res.Summary)
	if len(res.HotFiles) > 0 {
		fmt.Fprintf(&b, "%s hot files: %s\n", bulletSymbol, strings.Join(res.HotFiles, ", "))
	}
	b.WriteString(renderHealthHuman(res.Health))
	if res.Handoff != nil {
		fmt.Fprintf(&b, "%s handoff %s recorded\n", bulletSymbol, res.Handoff.ID)
	}
	if res.PromptCopied {
		fmt.Fprintf(&b, "%s pickup prompt copied to clipboard\n", bulletSymbol)
	} else if res.PickupPrompt != "" {
		fmt.Fprintf(&b, "%s pickup prompt: %s\n", bulletSymbol, res.PickupPrompt)
	}

	out.Print(b.String(), map[string]interface{}{
		"success":      true,
		"agent":        res.Agent,
		"summary":      res.Summary,
		"hotFiles":     res.HotFiles,
		"health":       res.Health,
		"handoff":      res.Handoff,
		"pickupPrompt": res.PickupPrompt,
	})
}

func handleClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	cf := addCommonFlags(fs)
	agent := fs.String("agent", "", "agent name (defaults to the active session's)")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, true)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	if err := svc.Clear(*agent); err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}
	out.Success("session cleared", map[string]interface{}{"success": true})
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cf := addCommonFlags(fs)
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, false)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	op := svc.OperationalState()
	st := svc.WS.LoadState()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s\n", stateSymbol(op.State), op.State, op.Reason)
	if st.ActiveSession != nil {
		fmt.Fprintf(&b, "%s active: %s working on %q since %s\n",
			bulletSymbol, st.ActiveSession.Agent, st.ActiveSession.Goal, st.ActiveSession.StartedAt)
	}
	trackerStale := false
	if st.LastSession != nil {
		fmt.Fprintf(&b, "%s last session: %s at %s", bulletSymbol, st.LastSession.Agent, st.LastSession.Date)
		if st.LastSession.Summary != "" {
			fmt.Fprintf(&b, " (%s)", st.LastSession.Summary)
		}
		if when, err := tracker.ParseISO(st.LastSession.Date); err == nil && svc.Cfg.StaleAfterHours > 0 {
			age := time.Since(when)
			if age >= time.Duration(svc.Cfg.StaleAfterHours*float64(time.Hour)) {
				trackerStale = true
				fmt.Fprintf(&b, " [stale, %.0fh ago]", age.Hours())
			}
		}
		b.WriteString("\n")
	}
	if st.OpenHandoffCount > 0 {
		fmt.Fprintf(&b, "%s open handoffs: %s\n", bulletSymbol, strings.Join(st.ActiveHandoffIDs, ", "))
	}

	out.Print(b.String(), map[string]interface{}{
		"state":        op.State,
		"reason":       op.Reason,
		"trackerStale": trackerStale,
		"status":       st,
	})
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	cf := addCommonFlags(fs)
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, false)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	health := svc.RunHealth(context.Background())
	out.Print(renderHealthHuman(health), map[string]interface{}{"health": health})

	for _, h := range health {
		if h.Status == store.HealthFail {
			os.Exit(1)
		}
	}
}

func renderHealthHuman(health map[string]store.HealthEntry) string {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		h := health[name]
		sym := successSymbol
		if h.Status == store.HealthFail {
			sym = errorSymbol
		} else if h.Status == store.HealthNotConfigured {
			sym = bulletSymbol
		}
		fmt.Fprintf(&b, "%s %s: %s\n", sym, name, h.Status)
	}
	return b.String()
}

func stateSymbol(state string) string {
	switch state {
	case session.StateReady:
		return successSymbol
	case session.StateBusy:
		return errorSymbol
	default:
		return bulletSymbol
	}
}

func splitList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}
