// Package store persists agentsync's coordination files: the tracker
// markdown document and the JSON state/result documents, all written
// atomically so no reader ever observes a partial file.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

var storeLog = logging.ForComponent(logging.CompStore)

// StateDirName is the workspace-local directory holding agentsync's JSON
// files. The tracker document stays at the workspace root where humans
// read it.
const StateDirName = ".agentsync"

// Workspace addresses the coordination files of one workspace folder.
type Workspace struct {
	Root string
}

// NewWorkspace returns a Workspace rooted at dir.
func NewWorkspace(dir string) Workspace {
	return Workspace{Root: dir}
}

// TrackerPath returns the AgentTracker.md path.
func (w Workspace) TrackerPath() string {
	return filepath.Join(w.Root, tracker.FileName)
}

// StateDir returns the .agentsync directory path.
func (w Workspace) StateDir() string {
	return filepath.Join(w.Root, StateDirName)
}

// StatePath returns the state.json path.
func (w Workspace) StatePath() string {
	return filepath.Join(w.StateDir(), "state.json")
}

// HandoffsPath returns the handoffs.json path.
func (w Workspace) HandoffsPath() string {
	return filepath.Join(w.StateDir(), "handoffs.json")
}

// RequestPath returns the drop-zone request.json path.
func (w Workspace) RequestPath() string {
	return filepath.Join(w.StateDir(), "request.json")
}

// ClaimPath returns the path a request is renamed to while processing.
func (w Workspace) ClaimPath() string {
	return filepath.Join(w.StateDir(), "request.json.processing")
}

// ResultPath returns the drop-zone result.json path.
func (w Workspace) ResultPath() string {
	return filepath.Join(w.StateDir(), "result.json")
}

// HistoryDBPath returns the local session-history database path.
func (w Workspace) HistoryDBPath() string {
	return filepath.Join(w.StateDir(), "history.db")
}

// EnsureStateDir creates the .agentsync directory if absent.
func (w Workspace) EnsureStateDir() error {
	return os.MkdirAll(w.StateDir(), 0755)
}

// WriteFileAtomic writes data via a sibling temp file and rename. Rename
// within one volume is atomic on common filesystems, so a crash mid-write
// cannot leave a half-written file behind.
func WriteFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteJSONAtomic marshals v with indentation and writes it atomically.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// TrackerExists reports whether the tracker document is present.
func (w Workspace) TrackerExists() bool {
	_, err := os.Stat(w.TrackerPath())
	return err == nil
}

// ReadTracker reads the tracker document. Unlike the JSON loads this is
// NOT permissive: the caller has already confirmed existence and treats a
// read failure as fatal, surfaced as a user-facing error.
func (w Workspace) ReadTracker() (string, error) {
	data, err := os.ReadFile(w.TrackerPath())
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", tracker.FileName, err)
	}
	return string(data), nil
}

// WriteTracker writes the tracker document atomically.
func (w Workspace) WriteTracker(doc string) error {
	return WriteFileAtomic(w.TrackerPath(), []byte(doc))
}

// ActiveSession describes the session currently holding the workspace.
type ActiveSession struct {
	Agent     string `json:"agent"`
	Goal      string `json:"goal"`
	StartedAt string `json:"startedAt"`
}

// LastSession is the snapshot kept for continuity after a session ends.
type LastSession struct {
	Agent   string `json:"agent"`
	Date    string `json:"date"`
	Summary string `json:"summary,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Commit  string `json:"commit,omitempty"`
}

// Health check outcomes as written to state.json and the tracker.
const (
	HealthPass          = "Pass"
	HealthFail          = "Fail"
	HealthNotConfigured = "Not Configured"
)

// HealthEntry is one check's recorded outcome.
type HealthEntry struct {
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
}

// State is the process-wide state.json document, one per workspace.
type State struct {
	SessionActive    bool                   `json:"sessionActive"`
	ActiveSession    *ActiveSession         `json:"activeSession"`
	LastSession      *LastSession           `json:"lastSession"`
	Health           map[string]HealthEntry `json:"health,omitempty"`
	HotFiles         []string               `json:"hotFiles,omitempty"`
	OpenHandoffCount int                    `json:"openHandoffCount"`
	ActiveHandoffIDs []string               `json:"activeHandoffIds,omitempty"`
	LastUpdated      string                 `json:"lastUpdated"`
}

// LoadState reads state.json permissively: a missing or unparsable file
// yields the zero state (no active session) rather than an error, since
// the state file is created lazily on first session start.
func (w Workspace) LoadState() State {
	data, err := os.ReadFile(w.StatePath())
	if err != nil {
		return State{}
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		storeLog.Warn("state_parse_failed_using_empty",
			slog.String("path", w.StatePath()),
			slog.String("error", err.Error()))
		return State{}
	}
	return st
}

// SaveState writes state.json atomically, creating the state dir first.
func (w Workspace) SaveState(st State) error {
	if err := w.EnsureStateDir(); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return WriteJSONAtomic(w.StatePath(), st)
}
