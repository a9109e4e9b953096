// Package watch polls the sheet on a cron schedule and turns checked
// controls into downloads and uploads, for hosts that cannot deliver edit
// notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/steipete/sheetcal/internal/sheetsync"
)

const DefaultSchedule = "*/5 * * * *"

// Engine is the part of sheetsync.Engine a poll needs.
type Engine interface {
	DownloadRequested(ctx context.Context) (bool, error)
	Download(ctx context.Context, period *sheetsync.Period) (sheetsync.DownloadResult, error)
	UploadChecked(ctx context.Context) ([]sheetsync.RowResult, error)
}

// Tick is the outcome of one poll.
type Tick struct {
	At       time.Time                 `json:"at"`
	Download *sheetsync.DownloadResult `json:"download,omitempty"`
	Rows     []sheetsync.RowResult     `json:"rows,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Err      error                     `json:"-"`
}

// Idle reports whether the poll found nothing to do.
func (t Tick) Idle() bool {
	return t.Download == nil && len(t.Rows) == 0 && t.Err == nil
}

type Options struct {
	Schedule string
	Location *time.Location
	// OnTick receives every poll result; it runs on the scheduler goroutine.
	OnTick func(Tick)
	Logger *slog.Logger

	now func() time.Time
}

type Watcher struct {
	engine   Engine
	schedule string
	loc      *time.Location
	onTick   func(Tick)
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// New validates the schedule (standard five-field cron or a descriptor such
// as @every 1m).
func New(engine Engine, opts Options) (*Watcher, error) {
	if engine == nil {
		return nil, errors.New("watch: engine is required")
	}
	schedule := strings.TrimSpace(opts.Schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	w := &Watcher{
		engine:   engine,
		schedule: schedule,
		loc:      opts.Location,
		onTick:   opts.OnTick,
		logger:   opts.Logger,
		now:      opts.now,
	}
	if w.loc == nil {
		w.loc = time.Local
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

func (w *Watcher) Schedule() string { return w.schedule }

// Poll runs one check: a requested download first, then every row whose
// upload checkbox is set. Concurrent polls are serialized.
func (w *Watcher) Poll(ctx context.Context) Tick {
	w.mu.Lock()
	defer w.mu.Unlock()

	tick := Tick{At: w.now().In(w.loc)}

	requested, err := w.engine.DownloadRequested(ctx)
	if err != nil {
		tick.setErr(err)
		return tick
	}
	if requested {
		res, err := w.engine.Download(ctx, nil)
		tick.Download = &res
		if err != nil {
			tick.setErr(fmt.Errorf("download: %w", err))
		}
	}

	rows, err := w.engine.UploadChecked(ctx)
	tick.Rows = rows
	if err != nil {
		tick.setErr(fmt.Errorf("upload: %w", err))
	}
	return tick
}

func (t *Tick) setErr(err error) {
	t.Err = errors.Join(t.Err, err)
	t.Error = t.Err.Error()
}

// Run polls on the schedule until ctx is done. A poll still running when
// the next one is due is skipped. Run waits for an in-flight poll before
// returning.
func (w *Watcher) Run(ctx context.Context) error {
	logger := cronLogger{l: w.logger}
	c := cron.New(
		cron.WithLocation(w.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.report(w.Poll(ctx)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("watching sheet", "schedule", w.schedule, "location", w.loc.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (w *Watcher) report(t Tick) {
	switch {
	case t.Err != nil:
		w.logger.Warn("poll failed", "err", t.Err)
	case !t.Idle():
		w.logger.Info("poll handled edits", "download", t.Download != nil, "rows", len(t.Rows))
	}
	if w.onTick != nil {
		w.onTick(t)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
