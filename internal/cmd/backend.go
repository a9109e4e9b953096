package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/googleapi"
	"github.com/steipete/sheetcal/internal/sheetsync"
	"github.com/steipete/sheetcal/internal/store/gcal"
	"github.com/steipete/sheetcal/internal/store/gsheets"
	"github.com/steipete/sheetcal/internal/store/icsfile"
	"github.com/steipete/sheetcal/internal/store/sqlitecal"
)

var (
	newSheetsService   = googleapi.NewSheets
	newCalendarService = googleapi.NewCalendar
	openSheetStore     = googleSheetStore
)

// session is everything a sync command needs: the loaded config and an
// engine over the configured sheet and calendar.
type session struct {
	cfg     config.File
	account string
	engine  *sheetsync.Engine
	closers []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("close backend", "err", err)
		}
	}
}

// loadConfig reads and validates the config file. Validation failures map
// to the config exit code.
func loadConfig() (config.File, error) {
	cfg, err := config.ReadConfig()
	if err != nil {
		return config.File{}, &ExitError{Code: exitCodeConfig, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		path, _ := config.ConfigPath()
		return config.File{}, &ExitError{Code: exitCodeConfig, Err: fmt.Errorf("%s: %w", path, err)}
	}
	return cfg, nil
}

func resolveAccount(flags *RootFlags, cfg config.File) string {
	if flags != nil {
		if a := strings.TrimSpace(flags.Account); a != "" {
			return a
		}
	}
	return strings.TrimSpace(cfg.Account)
}

func resolveClient(flags *RootFlags, cfg config.File) string {
	if flags != nil {
		if c := strings.TrimSpace(flags.Client); c != "" {
			return c
		}
	}
	if c := strings.TrimSpace(cfg.Client); c != "" {
		return c
	}
	return config.DefaultClientName
}

// withAuth attaches the OAuth client bucket and service account key file
// used by googleapi.
func withAuth(ctx context.Context, flags *RootFlags, cfg config.File) context.Context {
	return googleapi.WithAuth(ctx, googleapi.Auth{
		Client:             resolveClient(flags, cfg),
		ServiceAccountFile: cfg.ServiceAccountFile,
	})
}

func googleSheetStore(ctx context.Context, cfg config.File, account string) (sheetsync.SheetStore, error) {
	svc, err := newSheetsService(ctx, account)
	if err != nil {
		return nil, err
	}
	return gsheets.New(svc, cfg.SpreadsheetID, cfg.Layout.Sheet), nil
}

// openCalendarStore returns the configured backend and, for Google
// Calendar, the calendar's own zone.
func openCalendarStore(ctx context.Context, cfg config.File, account string) (sheetsync.CalendarStore, func() (*time.Location, error), func() error, error) {
	switch cfg.Calendar.Backend {
	case config.BackendGoogle:
		svc, err := newCalendarService(ctx, account)
		if err != nil {
			return nil, nil, nil, err
		}
		st := gcal.New(svc, cfg.Calendar.ID)
		return st, func() (*time.Location, error) { return st.Location(ctx) }, nil, nil
	case config.BackendICS:
		path, err := config.ExpandPath(cfg.Calendar.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		st, err := icsfile.New(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, nil, nil, nil
	case config.BackendSQLite:
		path, err := config.ExpandPath(cfg.Calendar.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		st, err := sqlitecal.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, nil, st.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown calendar backend %q", cfg.Calendar.Backend)
	}
}

// openSession loads the config, opens both stores and builds the engine.
// The caller must Close the session.
func openSession(ctx context.Context, flags *RootFlags) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ctx = withAuth(ctx, flags, cfg)
	s := &session{cfg: cfg, account: accountFor(flags, cfg, resolveClient(flags, cfg))}

	sheet, err := openSheetStore(ctx, cfg, s.account)
	if err != nil {
		return nil, err
	}
	cal, calendarZone, closer, err := openCalendarStore(ctx, cfg, s.account)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	loc, err := resolveLocation(cfg, calendarZone)
	if err != nil {
		s.Close()
		return nil, err
	}
	if zoned, ok := cal.(interface{ SetLocation(*time.Location) }); ok {
		zoned.SetLocation(loc)
	}

	compiled, err := cfg.Layout.Compile()
	if err != nil {
		s.Close()
		return nil, err
	}
	engine, err := sheetsync.NewEngine(ctx, sheet, cal, compiled, loc)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = engine
	slog.Debug("session ready", "backend", cfg.Calendar.Backend, "spreadsheet", cfg.SpreadsheetID, "location", loc.String())
	return s, nil
}

// resolveLocation prefers the configured timezone, then the calendar's,
// then the local zone.
func resolveLocation(cfg config.File, calendarZone func() (*time.Location, error)) (*time.Location, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, &ExitError{Code: exitCodeConfig, Err: err}
	}
	if loc != nil {
		return loc, nil
	}
	if calendarZone != nil {
		calLoc, err := calendarZone()
		if err == nil {
			return calLoc, nil
		}
		slog.Warn("could not read calendar timezone; using local time", "err", err)
	}
	return time.Local, nil
}
