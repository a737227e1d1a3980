package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghostreplay/internal/session"
	"ghostreplay/internal/timesync"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for sessions missing from the index
var ErrNotFound = errors.New("session not indexed")

// Entry is the indexed summary of one persisted session
type Entry struct {
	ID                 string           `json:"id"`
	RecordedAt         time.Time        `json:"recordedAt"`
	RecordingStartTime int64            `json:"recordingStartTime,omitempty"`
	ActivePlayerName   string           `json:"activePlayerName,omitempty"`
	TotalEvents        int              `json:"totalEvents"`
	Legacy             bool             `json:"legacy"`
	Sync               *timesync.Result `json:"sync,omitempty"`
}

// Catalog indexes session files in a local SQLite database and caches the
// derived timeline alignment beside them. Session files stay the source of truth.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// init creates the schema
func (c *Catalog) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			recording_start_time INTEGER NOT NULL DEFAULT 0,
			active_player_name TEXT NOT NULL DEFAULT '',
			total_events INTEGER NOT NULL DEFAULT 0,
			legacy INTEGER NOT NULL DEFAULT 0,
			indexed_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sync_annotations (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id),
			offset_seconds REAL NOT NULL,
			is_mid_game INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			computed_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_recorded_at ON sessions(recorded_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index records a persisted session. Sessions are immutable, so an existing
// row is left untouched.
func (c *Catalog) Index(ctx context.Context, s *session.RecordingSession) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions
			(id, recorded_at, recording_start_time, active_player_name, total_events, legacy, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.Metadata.RecordedAt.UTC().Format(time.RFC3339Nano),
		s.Metadata.RecordingStartTime,
		s.Metadata.ActivePlayerName,
		s.Metadata.TotalEvents,
		boolToInt(s.Legacy),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to index session %s: %w", s.ID, err)
	}
	return nil
}

const selectEntry = `
	SELECT s.id, s.recorded_at, s.recording_start_time, s.active_player_name, s.total_events, s.legacy,
		a.offset_seconds, a.is_mid_game, a.strategy
	FROM sessions s
	LEFT JOIN sync_annotations a ON a.session_id = s.id`

// Get returns one indexed session
func (c *Catalog) Get(ctx context.Context, id string) (Entry, error) {
	row := c.db.QueryRowContext(ctx, selectEntry+` WHERE s.id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// List returns indexed sessions, newest first. limit <= 0 means no limit.
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, selectEntry+` ORDER BY s.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Annotation returns the cached alignment of a session, if any
func (c *Catalog) Annotation(ctx context.Context, id string) (timesync.Result, bool, error) {
	var (
		res     timesync.Result
		midGame int
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT offset_seconds, is_mid_game, strategy FROM sync_annotations WHERE session_id = ?`, id,
	).Scan(&res.OffsetSeconds, &midGame, &res.Strategy)
	if errors.Is(err, sql.ErrNoRows) {
		return timesync.Result{}, false, nil
	}
	if err != nil {
		return timesync.Result{}, false, fmt.Errorf("failed to read annotation %s: %w", id, err)
	}
	res.IsMidGame = midGame != 0
	return res, true, nil
}

// SaveAnnotation caches the first alignment computed for a session
func (c *Catalog) SaveAnnotation(ctx context.Context, id string, res timesync.Result) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_annotations (session_id, offset_seconds, is_mid_game, strategy, computed_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, res.OffsetSeconds, boolToInt(res.IsMidGame), res.Strategy, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save annotation %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		recordedAt string
		legacy     int
		offset     sql.NullFloat64
		midGame    sql.NullInt64
		strategy   sql.NullString
	)
	if err := row.Scan(&e.ID, &recordedAt, &e.RecordingStartTime, &e.ActivePlayerName, &e.TotalEvents, &legacy,
		&offset, &midGame, &strategy); err != nil {
		return Entry{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
		e.RecordedAt = t
	}
	e.Legacy = legacy != 0
	if offset.Valid {
		e.Sync = &timesync.Result{
			OffsetSeconds: offset.Float64,
			IsMidGame:     midGame.Int64 != 0,
			Strategy:      strategy.String,
		}
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
