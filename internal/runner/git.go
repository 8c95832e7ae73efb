// Package runner executes external commands for agentsync: synchronous
// git fact queries and asynchronous health checks, always without a shell.
package runner

import (
	"os/exec"
	"strings"
)

// Git answers version-control fact queries for one workspace directory.
// Every query treats command failure as "fact unavailable" and returns an
// empty result: a missing git binary or a non-repo directory must never
// fail a session operation.
type Git struct {
	Dir string
}

// run executes a git subcommand and returns trimmed stdout, or "" on any
// launch failure or non-zero exit.
func (g Git) run(args ...string) string {
	full := append([]string{"-C", g.Dir}, args...)
	out, err := exec.Command("git", full...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// lines splits run output into non-empty lines.
func (g Git) lines(args ...string) []string {
	out := g.run(args...)
	if out == "" {
		return nil
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files
}

// Branch returns the current branch name, or "" when unavailable.
func (g Git) Branch() string {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// ShortCommit returns the abbreviated HEAD commit hash, or "".
func (g Git) ShortCommit() string {
	return g.run("rev-parse", "--short", "HEAD")
}

// IsAncestor reports whether ancestor is reachable from descendant.
// False on any git failure.
func (g Git) IsAncestor(ancestor, descendant string) bool {
	full := []string{"-C", g.Dir, "merge-base", "--is-ancestor", ancestor, descendant}
	return exec.Command("git", full...).Run() == nil
}

// UnstagedFiles returns paths with unstaged modifications.
func (g Git) UnstagedFiles() []string {
	return g.lines("diff", "--name-only")
}

// StagedFiles returns paths with staged modifications.
func (g Git) StagedFiles() []string {
	return g.lines("diff", "--cached", "--name-only")
}

// UntrackedFiles returns untracked, non-ignored paths.
func (g Git) UntrackedFiles() []string {
	return g.lines("ls-files", "--others", "--exclude-standard")
}

// LastCommitFiles returns the paths changed by the HEAD commit.
func (g Git) LastCommitFiles() []string {
	return g.lines("show", "--pretty=format:", "--name-only", "HEAD")
}

// HotFiles computes the union of unstaged, staged and untracked files,
// preserving first-seen order. When all three are empty it falls back to
// the last commit's changed files, so a session ended right after a commit
// still reports what it touched.
func (g Git) HotFiles() []string {
	seen := make(map[string]bool)
	var hot []string
	for _, group := range [][]string{g.UnstagedFiles(), g.StagedFiles(), g.UntrackedFiles()} {
		for _, f := range group {
			if !seen[f] {
				seen[f] = true
				hot = append(hot, f)
			}
		}
	}
	if len(hot) > 0 {
		return hot
	}
	return g.LastCommitFiles()
}
