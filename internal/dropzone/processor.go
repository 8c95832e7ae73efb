// Package dropzone implements file-based remote control of a workspace:
// an editor (or any other process) drops request.json into the state
// directory, and the watcher picks it up, executes the action, and writes
// result.json back. Claiming is done with an atomic rename so that two
// watchers on the same workspace execute a request exactly once.
package dropzone

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/twistedxcom/agentsync/internal/handoff"
	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/session"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

// Request actions understood by the processor.
const (
	ActionStartSession = "startSession"
	ActionEndSession   = "endSession"
	ActionStatus       = "status"
	ActionHealth       = "health"
)

// Request is the request.json document dropped into the state directory.
type Request struct {
	Action          string          `json:"action"`
	Agent           string          `json:"agent,omitempty"`
	Goal            string          `json:"goal,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	NextWork        string          `json:"nextWork,omitempty"`
	NoHandoffReason string          `json:"noHandoffReason,omitempty"`
	Handoff         *RequestHandoff `json:"handoff,omitempty"`
}

// RequestHandoff is the hand-off payload carried by an endSession
// request. Identity fields (from agent, files, branch, commit) are
// filled in by the session service.
type RequestHandoff struct {
	Summary              string   `json:"summary"`
	Notes                string   `json:"notes,omitempty"`
	OwnerMode            string   `json:"owner_mode"`
	ToAgents             []string `json:"to_agents,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	NoHandoffReason      string   `json:"no_handoff_reason,omitempty"`
}

// Result is the result.json document written after processing. It is
// always written, success or failure, so the requesting process never
// has to poll a file that will not appear.
type Result struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HistorySink receives processed drop-zone events for the local journal.
type HistorySink interface {
	Record(kind, agent, detail string, ok bool)
}

// Processor executes drop-zone requests against a session service. The
// in-flight guard lives on the processor, keyed by workspace root, so
// independent workspaces never block each other and a dropped guard
// cannot outlive the processor that owns it.
type Processor struct {
	svc     *session.Service
	history HistorySink

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewProcessor wraps a session service for drop-zone use.
func NewProcessor(svc *session.Service, history HistorySink) *Processor {
	return &Processor{
		svc:      svc,
		history:  history,
		inFlight: make(map[string]bool),
	}
}

// Notify is called when the drop zone may hold a new request. It is safe
// to call concurrently and redundantly: duplicate notifications for the
// same request collapse into a single execution.
func (p *Processor) Notify(ctx context.Context) {
	log := logging.ForComponent(logging.CompDropzone)
	ws := p.svc.WS

	if !p.acquire(ws.Root) {
		return
	}
	defer p.release(ws.Root)

	// An orphaned claim from a crashed run blocks the channel until it
	// is cleared externally. Renaming over it would discard whatever
	// request died mid-processing.
	if _, err := os.Stat(ws.ClaimPath()); err == nil {
		log.Warn("orphaned claim present, not processing", "path", ws.ClaimPath())
		return
	}

	// Claim by rename: the request file can only be renamed by one
	// process. Losing the race is the normal case for the second
	// notification and is not an error.
	if err := os.Rename(ws.RequestPath(), ws.ClaimPath()); err != nil {
		if !os.IsNotExist(err) {
			log.Warn("claim failed", "path", ws.RequestPath(), "error", err)
		}
		return
	}

	// The claim file is removed only after the result is on disk, so a
	// crash mid-processing leaves evidence instead of silence.
	defer func() {
		if err := os.Remove(ws.ClaimPath()); err != nil && !os.IsNotExist(err) {
			log.Warn("claim cleanup failed", "path", ws.ClaimPath(), "error", err)
		}
	}()

	res := p.execute(ctx)
	res.Timestamp = tracker.FormatISO(time.Now())
	if err := store.WriteJSONAtomic(ws.ResultPath(), res); err != nil {
		log.Error("result write failed", "path", ws.ResultPath(), "error", err)
	}

	if p.history != nil {
		p.history.Record("dropzone_"+res.Action, "", res.Error, res.OK)
	}
	log.Info("request processed", "action", res.Action, "ok", res.OK)
}

func (p *Processor) acquire(root string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[root] {
		return false
	}
	p.inFlight[root] = true
	return true
}

func (p *Processor) release(root string) {
	p.mu.Lock()
	delete(p.inFlight, root)
	p.mu.Unlock()
}

func (p *Processor) execute(ctx context.Context) Result {
	data, err := os.ReadFile(p.svc.WS.ClaimPath())
	if err != nil {
		return Result{Action: "unknown", Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Result{Action: "unknown", Error: fmt.Sprintf("invalid request JSON: %v", err)}
	}

	switch req.Action {
	case ActionStartSession:
		if err := p.svc.Start(req.Agent, req.Goal); err != nil {
			return Result{Action: req.Action, Error: err.Error()}
		}
		return Result{OK: true, Action: req.Action}

	case ActionEndSession:
		opts := session.EndOptions{
			Agent:           req.Agent,
			Summary:         req.Summary,
			NextWork:        req.NextWork,
			NoHandoffReason: req.NoHandoffReason,
		}
		if h := req.Handoff; h != nil {
			if h.NoHandoffReason != "" {
				opts.NoHandoffReason = h.NoHandoffReason
			} else {
				mode := h.OwnerMode
				if mode == "" {
					mode = handoff.OwnerSingle
				}
				opts.Handoff = &handoff.Record{
					Summary:              h.Summary,
					Notes:                h.Notes,
					OwnerMode:            mode,
					ToAgents:             h.ToAgents,
					RequiredCapabilities: h.RequiredCapabilities,
				}
			}
		}
		res, err := p.svc.End(ctx, opts)
		if err != nil {
			return Result{Action: req.Action, Error: err.Error()}
		}
		data := map[string]any{
			"summary":  res.Summary,
			"hotFiles": res.HotFiles,
			"health":   res.Health,
		}
		if res.Handoff != nil {
			data["handoffId"] = res.Handoff.ID
		}
		return Result{OK: true, Action: req.Action, Data: data}

	case ActionStatus:
		op := p.svc.OperationalState()
		st := p.svc.WS.LoadState()
		return Result{OK: true, Action: req.Action, Data: map[string]any{
			"state":         op.State,
			"reason":        op.Reason,
			"sessionActive": st.SessionActive,
			"activeSession": st.ActiveSession,
			"lastSession":   st.LastSession,
		}}

	case ActionHealth:
		return Result{OK: true, Action: req.Action, Data: p.svc.RunHealth(ctx)}

	case "":
		return Result{Action: "unknown", Error: "request has no action"}

	default:
		return Result{Action: req.Action, Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}
