package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/twistedxcom/agentsync/internal/logging"
)

var runnerLog = logging.ForComponent(logging.CompRunner)

const (
	// CheckTimeout bounds a single health-check command.
	CheckTimeout = 60 * time.Second

	// killGrace is how long a check gets to exit after SIGTERM before
	// it is killed outright.
	killGrace = 5 * time.Second
)

// CheckResult holds the outcome of one health check.
type CheckResult struct {
	Ok     bool   `json:"ok"`
	Output string `json:"output"`
}

// Checker runs configured health-check commands (build/test/deploy)
// inside a workspace directory.
type Checker struct {
	Dir string

	// Timeout overrides CheckTimeout when positive. Tests use this.
	Timeout time.Duration
}

func (c Checker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return CheckTimeout
}

// RunCheck tokenizes and executes one check command without a shell.
// Output combines trimmed stdout and stderr. The command receives SIGTERM
// at the timeout boundary and SIGKILL after a grace period.
func (c Checker) RunCheck(ctx context.Context, command string) CheckResult {
	argv := SplitCommand(command)
	if len(argv) == 0 {
		return CheckResult{Ok: false, Output: "empty command"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Cancel = func() error {
		// termination first; WaitDelay escalates to SIGKILL
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	var buf strings.Builder
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := strings.TrimSpace(buf.String())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			output = strings.TrimSpace(output + "\n" + fmt.Sprintf("check timed out after %s", c.timeout()))
		} else if output == "" {
			output = err.Error()
		}
		runnerLog.Debug("check_failed",
			slog.String("command", argv[0]),
			slog.String("error", err.Error()))
		return CheckResult{Ok: false, Output: output}
	}
	return CheckResult{Ok: true, Output: output}
}

// RunChecks executes the named check commands concurrently and returns a
// result per name. Empty command strings are skipped (not configured).
func (c Checker) RunChecks(ctx context.Context, commands map[string]string) map[string]CheckResult {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(commands))
	)

	g, ctx := errgroup.WithContext(ctx)
	for name, command := range commands {
		if strings.TrimSpace(command) == "" {
			continue
		}
		name, command := name, command
		g.Go(func() error {
			res := c.RunCheck(ctx, command)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
