package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/twistedxcom/agentsync/internal/clipboard"
	"github.com/twistedxcom/agentsync/internal/config"
	"github.com/twistedxcom/agentsync/internal/historydb"
	"github.com/twistedxcom/agentsync/internal/session"
	"github.com/twistedxcom/agentsync/internal/store"
)

// Error codes for JSON consumers
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeInvalidInput     = "INVALID_INPUT"
)

// Output symbols, degraded to ASCII when stdout is not a terminal
var (
	successSymbol = "✓"
	errorSymbol   = "✕"
	bulletSymbol  = "•"
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		successSymbol = "OK"
		errorSymbol = "ERROR"
		bulletSymbol = "-"
	}
}

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which
// means "handoff update HO-1 --status done" would silently ignore
// --status. This moves all flags to the front so they get parsed.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// CLIOutput handles consistent output formatting across all commands
type CLIOutput struct {
	jsonMode  bool
	quietMode bool
}

func NewCLIOutput(jsonMode, quietMode bool) *CLIOutput {
	return &CLIOutput{jsonMode: jsonMode, quietMode: quietMode}
}

// Success prints a success message or JSON response
func (c *CLIOutput) Success(message string, data interface{}) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(data)
		return
	}
	fmt.Printf("%s %s\n", successSymbol, message)
}

// Error prints an error message or JSON error response
func (c *CLIOutput) Error(message string, code string) {
	if c.jsonMode {
		c.printJSON(map[string]interface{}{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// Print prints data (human-readable or JSON)
func (c *CLIOutput) Print(humanOutput string, jsonData interface{}) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(jsonData)
		return
	}
	fmt.Print(humanOutput)
}

func (c *CLIOutput) printJSON(data interface{}) {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to format JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}

// commonFlags registers the flags every subcommand shares.
type commonFlags struct {
	dir   *string
	json  *bool
	quiet *bool
	qik   *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		dir:   fs.String("dir", ".", "workspace directory"),
		json:  fs.Bool("json", false, "machine-readable output"),
		quiet: fs.Bool("quiet", false, "suppress non-error output"),
		qik:   fs.Bool("q", false, "suppress non-error output (shorthand)"),
	}
}

func (f commonFlags) out() *CLIOutput {
	return NewCLIOutput(*f.json, *f.quiet || *f.qik)
}

// resolveWorkspace turns the --dir flag into an absolute workspace.
func resolveWorkspace(dir string) (store.Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return store.Workspace{}, fmt.Errorf("resolve %s: %v", dir, err)
	}
	return store.NewWorkspace(abs), nil
}

// buildService wires a session service with history journal and clipboard
// per the user config. The returned closer flushes the journal; callers
// must invoke it before exit. Read-only commands pass mutating=false so
// they never create the state directory as a side effect.
func buildService(dir string, mutating bool) (*session.Service, func(), error) {
	ws, err := resolveWorkspace(dir)
	if err != nil {
		return nil, nil, err
	}
	cfg := config.Load(ws.Root)
	svc := session.NewService(ws, cfg)

	userCfg := config.LoadUserConfig()
	if !userCfg.Clipboard.Disabled {
		svc.Clip = func(text string) error {
			_, err := clipboard.Copy(text)
			return err
		}
	}

	closer := func() {}
	haveStateDir := false
	if _, serr := os.Stat(ws.StateDir()); serr == nil {
		haveStateDir = true
	}
	if !userCfg.History.Disabled && (mutating || haveStateDir) {
		if db, err := historydb.Open(ws.HistoryDBPath()); err == nil {
			// Retention is enforced opportunistically on open.
			_, _ = db.Prune(userCfg.History.GetRetentionDays())
			svc.History = db
			closer = func() { _ = db.Close() }
		}
	}

	return svc, closer, nil
}
