// Package sqlitecal is a CalendarStore kept in a local SQLite database.
package sqlitecal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store"
)

// Store implements sheetsync.CalendarStore on SQLite.
type Store struct {
	db *sqlx.DB
}

type eventRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	StartUnix int64  `db:"start_unix"`
	EndUnix   int64  `db:"end_unix"`
}

func (r eventRow) toModel() model.Event {
	return model.Event{
		ID:    r.ID,
		Title: r.Title,
		Start: time.Unix(r.StartUnix, 0).UTC(),
		End:   time.Unix(r.EndUnix, 0).UTC(),
	}
}

// Open opens (or creates) the database at dbPath, enables WAL mode and
// applies pending migrations. ":memory:" gives a private database.
func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: %w", store.ErrMissingLocation)
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, "SELECT id, title, start_unix, end_unix FROM events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}
	ev := row.toModel()
	return &ev, nil
}

func (s *Store) CreateEvent(ctx context.Context, title string, start, end time.Time) (model.Event, error) {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return model.Event{}, err
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, title, start_unix, end_unix) VALUES (?, ?, ?, ?)",
		id, title, start.Unix(), end.Unix(),
	)
	if err != nil {
		return model.Event{}, fmt.Errorf("creating event: %w", err)
	}
	return model.Event{ID: id, Title: title, Start: start, End: end}, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id, title string, start, end time.Time) error {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			title = ?, start_unix = ?, end_unix = ?, updated_at = ?
		WHERE id = ?`,
		title, start.Unix(), end.Unix(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	return requireOne(result, "update", id)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return requireOne(result, "delete", id)
}

func (s *Store) ListEvents(ctx context.Context, start, endExclusive time.Time) ([]model.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, title, start_unix, end_unix FROM events
		WHERE start_unix >= ? AND start_unix < ?
		ORDER BY start_unix, id`,
		start.Unix(), endExclusive.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func requireOne(result sql.Result, op, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", op, id, store.ErrEventNotFound)
	}
	return nil
}
