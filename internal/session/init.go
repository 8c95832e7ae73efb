package session

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/store"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

//go:embed templates/*.md
var templateFS embed.FS

// InitResult reports what InitWorkspace did per file.
type InitResult struct {
	Created []string
	Skipped []string
}

// agent instruction files written at workspace init, template name to
// destination relative to the workspace root
var instructionFiles = []struct {
	src  string
	dest string
}{
	{"CLAUDE.md", "CLAUDE.md"},
	{"AGENTS.md", "AGENTS.md"},
	{"copilot-instructions.md", filepath.Join(".github", "copilot-instructions.md")},
}

// InitWorkspace seeds the workspace with the tracker document and the
// per-tool agent instruction files. Existing files are skipped unless force
// is set.
func InitWorkspace(ws store.Workspace, force bool) (*InitResult, error) {
	log := logging.ForComponent(logging.CompSession)
	res := &InitResult{}

	writeFile := func(rel string, data []byte) error {
		dest := filepath.Join(ws.Root, rel)
		if _, err := os.Stat(dest); err == nil && !force {
			res.Skipped = append(res.Skipped, rel)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(rel), err)
		}
		if err := store.WriteFileAtomic(dest, data); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		res.Created = append(res.Created, rel)
		return nil
	}

	for _, f := range instructionFiles {
		data, err := templateFS.ReadFile("templates/" + f.src)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", f.src, err)
		}
		if err := writeFile(f.dest, data); err != nil {
			return nil, err
		}
	}

	doc := tracker.DefaultDocument(filepath.Base(ws.Root))
	if err := writeFile(tracker.FileName, []byte(doc)); err != nil {
		return nil, err
	}

	if err := ws.EnsureStateDir(); err != nil {
		return nil, err
	}

	log.Info("workspace initialized", "root", ws.Root,
		"created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}
