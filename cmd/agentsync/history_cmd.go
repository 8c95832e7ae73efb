package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/twistedxcom/agentsync/internal/config"
	"github.com/twistedxcom/agentsync/internal/historydb"
)

func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cf := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "maximum events to show")
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	ws, err := resolveWorkspace(*cf.dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	if config.LoadUserConfig().History.Disabled {
		out.Error("history recording is disabled in the user config", ErrCodeInvalidOperation)
		os.Exit(1)
	}
	if _, err := os.Stat(ws.HistoryDBPath()); err != nil {
		out.Print("No history recorded yet.\n", map[string]interface{}{"events": []historydb.Event{}})
		return
	}

	db, err := historydb.Open(ws.HistoryDBPath())
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}
	defer db.Close()

	events, err := db.Recent(*limit)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	var b strings.Builder
	if len(events) == 0 {
		b.WriteString("No history recorded yet.\n")
	}
	for _, e := range events {
		line := fmt.Sprintf("%s %s %s", bulletSymbol, e.At.Format("2006-01-02 15:04"), e.Kind)
		if e.Agent != "" {
			line += " " + e.Agent
		}
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		if !e.OK {
			line += " (failed)"
		}
		b.WriteString(line + "\n")
	}

	out.Print(b.String(), map[string]interface{}{"events": events})
}
