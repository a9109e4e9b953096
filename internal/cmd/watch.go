package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/ui"
	"github.com/steipete/sheetcal/internal/watch"
)

type WatchCmd struct {
	Schedule string `name:"schedule" help:"Cron schedule (5 fields or @every 1m); defaults to watch.schedule from config"`
	Once     bool   `name:"once" help:"Poll once and exit"`
}

func (c *WatchCmd) Run(ctx context.Context, flags *RootFlags) error {
	if err := dryRunExit(ctx, flags, "watch", map[string]any{"schedule": c.Schedule, "once": c.Once}); err != nil {
		return err
	}

	s, err := openSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	schedule := strings.TrimSpace(c.Schedule)
	if schedule == "" {
		schedule = s.cfg.Watch.Schedule
	}
	w, err := watch.New(s.engine, watch.Options{
		Schedule: schedule,
		Location: s.engine.Location(),
		OnTick:   func(t watch.Tick) { writeTick(ctx, t) },
	})
	if err != nil {
		return newUsageError(err)
	}

	if c.Once {
		t := w.Poll(ctx)
		writeTick(ctx, t)
		if t.Err != nil {
			return t.Err
		}
		return rowsFailedError(t.Rows)
	}

	if u := ui.FromContext(ctx); u != nil && !outfmt.IsJSON(ctx) {
		u.Err().Dim(fmt.Sprintf("watching (%s); Ctrl-C to stop", w.Schedule()))
	}
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(runCtx)
}

// writeTick prints one poll. Idle polls stay silent outside JSON mode.
func writeTick(ctx context.Context, t watch.Tick) {
	if outfmt.IsJSON(ctx) {
		_ = outfmt.WriteJSON(ctx, os.Stdout, t)
		return
	}
	if t.Idle() {
		return
	}
	if t.Download != nil {
		_ = writeDownloadText(ctx, *t.Download)
	}
	if len(t.Rows) > 0 {
		_ = writeRowsText(ctx, t.Rows)
	}
	if t.Err != nil {
		if u := ui.FromContext(ctx); u != nil {
			u.Err().Error(t.Error)
		}
	}
}
