// Command agentsync coordinates coding-agent sessions in a shared
// repository through the AgentTracker.md protocol.
package main

import (
	"fmt"
	"os"

	"github.com/twistedxcom/agentsync/internal/config"
	"github.com/twistedxcom/agentsync/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	initLogging()
	defer logging.Shutdown()

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("agentsync v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "init":
		handleInit(args[1:])
	case "start":
		handleStart(args[1:])
	case "end":
		handleEnd(args[1:])
	case "clear":
		handleClear(args[1:])
	case "status":
		handleStatus(args[1:])
	case "health":
		handleHealth(args[1:])
	case "handoff":
		handleHandoff(args[1:])
	case "watch":
		handleWatch(args[1:])
	case "history":
		handleHistory(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

// initLogging enables file logging when AGENTSYNC_DEBUG is set, with
// overrides from the user config. Without debug mode logs are discarded
// so normal CLI output stays clean.
func initLogging() {
	debug := os.Getenv("AGENTSYNC_DEBUG") != ""

	logCfg := logging.Config{Debug: debug}
	if debug {
		if dir, err := config.BaseDir(); err == nil {
			logCfg.LogDir = dir
			logCfg.Level = "debug"
		}
	}

	ls := config.LoadUserConfig().Logs
	if ls.DebugLevel != "" {
		logCfg.Level = ls.DebugLevel
	}
	if ls.DebugFormat != "" {
		logCfg.Format = ls.DebugFormat
	}
	if ls.DebugMaxMB > 0 {
		logCfg.MaxSizeMB = ls.DebugMaxMB
	}
	if ls.DebugBackups > 0 {
		logCfg.MaxBackups = ls.DebugBackups
	}
	if ls.DebugRetentionDays > 0 {
		logCfg.MaxAgeDays = ls.DebugRetentionDays
	}
	if ls.DebugCompress {
		logCfg.Compress = true
	}

	logging.Init(logCfg)
}

func printHelp() {
	fmt.Print(`agentsync - file-based coordination for coding agents

Usage:
  agentsync <command> [flags]

Commands:
  init      Seed the workspace with AgentTracker.md and agent instructions
  start     Start a session (--agent, --goal)
  end       End the active session (--agent, --summary, --next-work,
            --no-handoff-reason, --handoff-to, --zero-touch)
  clear     Deactivate the session without checks (--agent)
  status    Show the workspace operational state
  health    Run the configured health checks
  handoff   Manage hand-off records (list, add, update)
  watch     Watch the drop zone for editor requests
  history   Show the recent session event journal
  version   Print the version

Common flags:
  --dir <path>   Workspace directory (default: current directory)
  --json         Machine-readable output
  -q, --quiet    Suppress non-error output

Environment:
  AGENTSYNC_DEBUG=1   Write debug logs to ~/.agentsync/debug.log
`)
}
