package dropzone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/twistedxcom/agentsync/internal/logging"
)

// debounceInterval coalesces the create+write event pairs most editors
// emit for a single file drop.
const debounceInterval = 100 * time.Millisecond

// Watcher watches a workspace's state directory for request.json drops
// and feeds them to the processor.
type Watcher struct {
	proc    *Processor
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
}

// NewWatcher builds a watcher for the processor's workspace. The state
// directory is created if needed so fsnotify has something to attach to.
func NewWatcher(proc *Processor) (*Watcher, error) {
	if err := proc.svc.WS.EnsureStateDir(); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		proc:    proc,
		watcher: fw,
		// A malfunctioning client rewriting request.json in a tight loop
		// gets throttled rather than monopolizing the workspace.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}, nil
}

// Run watches until ctx is cancelled. A request already sitting in the
// drop zone when the watcher starts is processed immediately.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.ForComponent(logging.CompDropzone)
	ws := w.proc.svc.WS

	if err := w.watcher.Add(ws.StateDir()); err != nil {
		return fmt.Errorf("watch %s: %w", ws.StateDir(), err)
	}
	defer w.watcher.Close()

	log.Info("watching drop zone", "dir", ws.StateDir())

	if _, err := os.Stat(ws.RequestPath()); err == nil {
		w.dispatch(ctx)
	}

	var debounceTimer *time.Timer
	pending := false
	var pendingMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(ws.RequestPath()) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			pendingMu.Lock()
			pending = true
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceInterval, func() {
				pendingMu.Lock()
				had := pending
				pending = false
				pendingMu.Unlock()
				if had {
					w.dispatch(ctx)
				}
			})
			pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	w.proc.Notify(ctx)
}
