package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/twistedxcom/agentsync/internal/dropzone"
	"github.com/twistedxcom/agentsync/internal/platform"
)

func handleWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cf := addCommonFlags(fs)
	fs.Parse(normalizeArgs(fs, args))
	out := cf.out()

	svc, closeHistory, err := buildService(*cf.dir, true)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}
	defer closeHistory()

	if warning := platform.CheckFsnotifySupport(svc.WS.Root); warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	var sink dropzone.HistorySink
	if db, ok := svc.History.(dropzone.HistorySink); ok {
		sink = db
	}
	proc := dropzone.NewProcessor(svc, sink)
	w, err := dropzone.NewWatcher(proc)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.Success(fmt.Sprintf("watching %s (Ctrl+C to stop)", svc.WS.StateDir()), map[string]interface{}{
		"success":  true,
		"watching": svc.WS.StateDir(),
		"platform": platform.Detect().String(),
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}
}
