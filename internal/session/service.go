// Package session implements the workspace session lifecycle: starting,
// ending, and clearing agent sessions, and deriving the operational state
// other agents use to decide whether the workspace is safe to pick up.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/twistedxcom/agentsync/internal/config"
	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/runner"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/summary"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

// Operational states reported by OperationalState.
const (
	StateReady   = "ready"
	StateBusy    = "busy"
	StateWaiting = "waiting"
)

// healthOutputLines caps how many trailing output lines of a failed check
// land in the Current Health section.
const healthOutputLines = 20

// HistorySink receives session lifecycle events for the local journal.
// A nil sink disables journaling.
type HistorySink interface {
	RecordSession(kind, agent, detail string)
}

// Service coordinates tracker, state, handoff, git, and health check
// operations for one workspace.
type Service struct {
	WS      store.Workspace
	Cfg     config.Config
	Git     runner.Git
	Checker runner.Checker
	History HistorySink

	// Clip copies text to the user's clipboard. Nil disables clipboard
	// integration (tests, headless callers).
	Clip func(text string) error

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService builds a Service rooted at the workspace directory with the
// given configuration.
func NewService(ws store.Workspace, cfg config.Config) *Service {
	return &Service{
		WS:      ws,
		Cfg:     cfg,
		Git:     runner.Git{Dir: ws.Root},
		Checker: runner.Checker{Dir: ws.Root},
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start begins a session for agent with the given goal. The tracker document
// must exist; a non-stale active session blocks the start.
func (s *Service) Start(agent, goal string) error {
	log := logging.ForComponent(logging.CompSession)

	if strings.TrimSpace(agent) == "" {
		return fmt.Errorf("agent name is required")
	}
	agent = strings.TrimSpace(agent)
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "(no goal given)"
	}

	if !s.WS.TrackerExists() {
		return fmt.Errorf("%s not found, run 'agentsync init' first", tracker.FileName)
	}
	doc, err := s.WS.ReadTracker()
	if err != nil {
		return err
	}

	st := s.WS.LoadState()
	if st.SessionActive && st.ActiveSession != nil {
		if stale, _ := s.sessionStale(st.ActiveSession); !stale {
			return fmt.Errorf("session already active: %s working on %q since %s",
				st.ActiveSession.Agent, st.ActiveSession.Goal, st.ActiveSession.StartedAt)
		}
		log.Warn("taking over stale session",
			"previous_agent", st.ActiveSession.Agent, "started_at", st.ActiveSession.StartedAt)
	}

	now := s.now()
	startedAt := tracker.FormatISO(now)

	entry := fmt.Sprintf("- [ ] %s: %s (started %s)", agent, goal, startedAt)
	doc = tracker.WithSection(doc, tracker.SecInProgress,
		appendListLine(tracker.Section(doc, tracker.SecInProgress), entry))

	// Snapshot the tracker's Last Session block so state.json stays useful
	// even when the tracker was edited by hand.
	snap := snapshotLastSession(tracker.Section(doc, tracker.SecLastSession))

	open := handoff.Open(s.WS)

	newState := store.State{
		SessionActive: true,
		ActiveSession: &store.ActiveSession{
			Agent:     agent,
			Goal:      goal,
			StartedAt: startedAt,
		},
		LastSession:      snap,
		Health:           st.Health,
		HotFiles:         st.HotFiles,
		OpenHandoffCount: len(open),
		ActiveHandoffIDs: openIDs(open),
		LastUpdated:      startedAt,
	}

	if err := s.WS.WriteTracker(doc); err != nil {
		return err
	}
	if err := s.WS.SaveState(newState); err != nil {
		return err
	}

	if s.History != nil {
		s.History.RecordSession("session_start", agent, goal)
	}
	log.Info("session started", "agent", agent, "goal", goal)
	return nil
}

// EndOptions parameterizes End.
type EndOptions struct {
	Agent           string
	Summary         string
	NextWork        string
	Handoff         *handoff.Record
	NoHandoffReason string
	ZeroTouch       bool
}

// EndResult reports what End produced for display to the caller.
type EndResult struct {
	Agent         string
	Summary       string
	HotFiles      []string
	Health        map[string]store.HealthEntry
	Handoff       *handoff.Record
	PickupPrompt  string
	PromptCopied  bool
	SkippedReason string
}

// End finishes the active session: runs health checks, rewrites the tracker
// sections, records any hand-off, and deactivates the session. Validation
// failures abort before any file is written.
func (s *Service) End(ctx context.Context, opts EndOptions) (*EndResult, error) {
	log := logging.ForComponent(logging.CompSession)

	if !s.WS.TrackerExists() {
		return nil, fmt.Errorf("%s not found, run 'agentsync init' first", tracker.FileName)
	}
	doc, err := s.WS.ReadTracker()
	if err != nil {
		return nil, err
	}

	st := s.WS.LoadState()
	agent := strings.TrimSpace(opts.Agent)
	if agent == "" && st.ActiveSession != nil {
		agent = st.ActiveSession.Agent
	}
	if agent == "" {
		return nil, fmt.Errorf("agent name is required: no active session to infer it from")
	}
	goal := ""
	if st.ActiveSession != nil && strings.EqualFold(st.ActiveSession.Agent, agent) {
		goal = st.ActiveSession.Goal
	}

	now := s.now()
	hot := s.Git.HotFiles()
	branch := s.Git.Branch()
	commit := s.Git.ShortCommit()

	zt := s.Cfg.Automation.EndSessionZeroTouch
	zeroTouch := opts.ZeroTouch || zt.Enabled

	// Resolve the hand-off question before touching any file so a failure
	// here leaves the workspace untouched.
	var pending *handoff.Record
	if opts.Handoff != nil {
		cp := *opts.Handoff
		pending = &cp
	}
	reason := strings.TrimSpace(opts.NoHandoffReason)
	if pending == nil && reason == "" && len(hot) > 0 && zeroTouch {
		if route := s.Cfg.RouteFor(agent); route != nil {
			pending = &handoff.Record{
				OwnerMode:            route.OwnerMode,
				ToAgents:             append([]string(nil), route.ToAgents...),
				RequiredCapabilities: append([]string(nil), route.RequiredCapabilities...),
			}
			log.Info("auto-routing handoff", "agent", agent, "owner_mode", route.OwnerMode)
		}
	}
	if pending == nil && reason == "" && len(hot) > 0 && s.Cfg.RequireHandoffOnEndSession {
		return nil, fmt.Errorf("uncommitted work in %d file(s) but no handoff given: add a handoff or a skip reason", len(hot))
	}

	health := s.RunHealth(ctx)

	sum := strings.TrimSpace(opts.Summary)
	if sum == "" && zeroTouch {
		sum = summary.Session(goal, hot, health, zt.MaxSummaryLength)
	}
	if sum == "" {
		sum = goal
	}

	var stored *handoff.Record
	if pending != nil {
		if pending.FromAgent == "" {
			pending.FromAgent = agent
		}
		if pending.Status == "" {
			pending.Status = handoff.StatusQueued
		}
		if pending.Summary == "" {
			pending.Summary = summary.HandoffNote(goal, hot, branch, zt.MaxSummaryLength)
		}
		if len(pending.Files) == 0 {
			pending.Files = append([]string(nil), hot...)
		}
		pending.Branch = branch
		pending.Commit = commit
		pending.CreatedAt = tracker.FormatISO(now)
		rec, err := handoff.Append(s.WS, *pending, now)
		if err != nil {
			return nil, err
		}
		stored = &rec
	} else if reason != "" {
		skip := handoff.Record{
			FromAgent:       agent,
			OwnerMode:       handoff.OwnerSingle,
			Status:          handoff.StatusDone,
			Summary:         "no handoff: " + reason,
			NoHandoffReason: &reason,
			CreatedAt:       tracker.FormatISO(now),
		}
		if _, err := handoff.Append(s.WS, skip, now); err != nil {
			return nil, err
		}
	}

	doc = tracker.WithSection(doc, tracker.SecLastSession, renderLastSession(agent, sum, branch, commit, now))
	doc = tracker.WithSection(doc, tracker.SecHealth, renderHealth(health))
	doc = tracker.WithSection(doc, tracker.SecHotFiles, renderHotFiles(hot))
	doc = tracker.WithSection(doc, tracker.SecInProgress,
		stripAgentLines(tracker.Section(doc, tracker.SecInProgress), agent))
	if nw := strings.TrimSpace(opts.NextWork); nw != "" {
		doc = tracker.WithSection(doc, tracker.SecSuggestedNext,
			appendListLine(tracker.Section(doc, tracker.SecSuggestedNext), "- "+nw))
	}
	open := handoff.Open(s.WS)
	doc = tracker.WithSection(doc, tracker.SecHandoffs, handoff.RenderSection(open))

	if err := s.WS.WriteTracker(doc); err != nil {
		return nil, err
	}

	newState := store.State{
		SessionActive: false,
		LastSession: &store.LastSession{
			Agent:   agent,
			Date:    tracker.FormatISO(now),
			Summary: sum,
			Branch:  branch,
			Commit:  commit,
		},
		Health:           health,
		HotFiles:         hot,
		OpenHandoffCount: len(open),
		ActiveHandoffIDs: openIDs(open),
		LastUpdated:      tracker.FormatISO(now),
	}
	if err := s.WS.SaveState(newState); err != nil {
		return nil, err
	}

	res := &EndResult{
		Agent:         agent,
		Summary:       sum,
		HotFiles:      hot,
		Health:        health,
		Handoff:       stored,
		SkippedReason: reason,
	}

	if stored != nil {
		res.PickupPrompt = summary.PickupPrompt(*stored, zt.MaxSummaryLength)
		if zeroTouch && zt.CopyPromptToClipboard && s.Clip != nil {
			if err := s.Clip(res.PickupPrompt); err != nil {
				log.Warn("clipboard copy failed", "error", err)
			} else {
				res.PromptCopied = true
				if err := handoff.MarkPromptCopied(s.WS, stored.ID); err != nil {
					log.Warn("could not mark prompt copied", "handoff_id", stored.ID, "error", err)
				}
			}
		}
	}

	if s.History != nil {
		s.History.RecordSession("session_end", agent, sum)
	}
	log.Info("session ended", "agent", agent, "hot_files", len(hot), "handoff", stored != nil)
	return res, nil
}

// Clear deactivates the session without running health checks or requiring a
// hand-off. Used to recover from crashed or abandoned sessions.
func (s *Service) Clear(agent string) error {
	log := logging.ForComponent(logging.CompSession)

	st := s.WS.LoadState()
	agent = strings.TrimSpace(agent)
	if agent == "" && st.ActiveSession != nil {
		agent = st.ActiveSession.Agent
	}

	if s.WS.TrackerExists() && agent != "" {
		doc, err := s.WS.ReadTracker()
		if err != nil {
			return err
		}
		doc = tracker.WithSection(doc, tracker.SecInProgress,
			stripAgentLines(tracker.Section(doc, tracker.SecInProgress), agent))
		if err := s.WS.WriteTracker(doc); err != nil {
			return err
		}
	}

	st.SessionActive = false
	st.ActiveSession = nil
	st.LastUpdated = tracker.FormatISO(s.now())
	if err := s.WS.SaveState(st); err != nil {
		return err
	}

	if s.History != nil {
		s.History.RecordSession("session_clear", agent, "")
	}
	log.Info("session cleared", "agent", agent)
	return nil
}

// OpState is the coarse workspace state another agent polls before acting.
type OpState struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// OperationalState reports whether the workspace is ready, busy, or waiting.
func (s *Service) OperationalState() OpState {
	st := s.WS.LoadState()

	if st.SessionActive && st.ActiveSession != nil {
		as := st.ActiveSession
		if stale, age := s.sessionStale(as); stale {
			return OpState{
				State: StateWaiting,
				Reason: fmt.Sprintf("session by %s is stale (started %s ago, threshold %.0fm)",
					as.Agent, age.Round(time.Minute), s.Cfg.AutoStaleSessionMinutes),
			}
		}
		return OpState{
			State:  StateBusy,
			Reason: fmt.Sprintf("%s is working on %q", as.Agent, as.Goal),
		}
	}

	if open := handoff.Open(s.WS); len(open) > 0 {
		return OpState{
			State:  StateWaiting,
			Reason: fmt.Sprintf("%d open handoff(s): %s", len(open), strings.Join(openIDs(open), ", ")),
		}
	}

	if s.WS.TrackerExists() {
		if doc, err := s.WS.ReadTracker(); err == nil {
			body := tracker.Section(doc, tracker.SecInProgress)
			if body != "" && body != tracker.NothingActive {
				return OpState{State: StateWaiting, Reason: "unfinished work listed under In Progress"}
			}
		}
	}

	return OpState{State: StateReady, Reason: "no active session or pending work"}
}

// sessionStale reports whether an active session has outlived the configured
// auto-stale threshold. Disabled when the threshold is unset or startedAt
// fails strict ISO parsing; a corrupted timestamp keeps the session busy and
// clear remains the escape hatch.
func (s *Service) sessionStale(as *store.ActiveSession) (bool, time.Duration) {
	mins := s.Cfg.AutoStaleSessionMinutes
	if mins <= 0 {
		return false, 0
	}
	started, err := tracker.ParseISO(as.StartedAt)
	if err != nil {
		return false, 0
	}
	age := s.now().Sub(started)
	return age >= time.Duration(mins*float64(time.Minute)), age
}

// RunHealth executes the configured health checks and maps their outcomes.
func (s *Service) RunHealth(ctx context.Context) map[string]store.HealthEntry {
	cmds := s.Cfg.Commands.Map()
	health := make(map[string]store.HealthEntry, len(cmds))

	configured := make(map[string]string, len(cmds))
	for name, cmd := range cmds {
		if strings.TrimSpace(cmd) == "" {
			health[name] = store.HealthEntry{Status: store.HealthNotConfigured}
		} else {
			configured[name] = cmd
		}
	}

	for name, res := range s.Checker.RunChecks(ctx, configured) {
		entry := store.HealthEntry{Status: store.HealthPass}
		if !res.Ok {
			entry.Status = store.HealthFail
			entry.Output = res.Output
		}
		health[name] = entry
	}
	return health
}

func openIDs(open []handoff.Record) []string {
	ids := make([]string, 0, len(open))
	for _, r := range open {
		ids = append(ids, r.ID)
	}
	return ids
}

// appendListLine adds line to a bullet-list section body, dropping the
// placeholder text if it is all the section contains.
func appendListLine(body, line string) string {
	body = strings.TrimSpace(body)
	if body == "" || body == tracker.NothingActive {
		return line
	}
	return body + "\n" + line
}

// stripAgentLines removes every line mentioning agent (case-insensitive)
// from a section body. An emptied section gets the placeholder back.
func stripAgentLines(body, agent string) string {
	needle := strings.ToLower(agent)
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if needle != "" && strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		return tracker.NothingActive
	}
	return out
}

func renderLastSession(agent, sum, branch, commit string, now time.Time) string {
	lines := []string{
		tracker.FieldLine("Agent", agent),
		tracker.FieldLine("Date", tracker.FormatISO(now)),
		tracker.FieldLine("Summary", sum),
	}
	if branch != "" {
		lines = append(lines, tracker.FieldLine("Branch", branch))
	}
	if commit != "" {
		lines = append(lines, tracker.FieldLine("Commit", commit))
	}
	return strings.Join(lines, "\n")
}

func renderHealth(health map[string]store.HealthEntry) string {
	if len(health) == 0 {
		return "*No checks configured*"
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		h := health[name]
		fmt.Fprintf(&b, "- %s: %s\n", name, h.Status)
		if h.Status == store.HealthFail && h.Output != "" {
			for _, line := range tailLines(h.Output, healthOutputLines) {
				// Indented so raw check output cannot be mistaken for a
				// markdown heading.
				b.WriteString("    " + line + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHotFiles(hot []string) string {
	if len(hot) == 0 {
		return "*None*"
	}
	var b strings.Builder
	for _, f := range hot {
		b.WriteString("- " + f + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func tailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// snapshotLastSession parses the tracker's Last Session block into the state
// mirror. Returns nil when the block holds no agent.
func snapshotLastSession(block string) *store.LastSession {
	agent := tracker.Field(block, "Agent")
	if agent == "" {
		return nil
	}
	return &store.LastSession{
		Agent:   agent,
		Date:    tracker.Field(block, "Date"),
		Summary: tracker.Field(block, "Summary"),
		Branch:  tracker.Field(block, "Branch"),
		Commit:  tracker.Field(block, "Commit"),
	}
}
