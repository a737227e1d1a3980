package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghostreplay/internal/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDisabled is returned by Connect when no database URL is configured
	ErrDisabled = errors.New("archive disabled")
	// ErrNotFound is returned for sessions missing from the archive
	ErrNotFound = errors.New("session not archived")
)

// Archive mirrors finalized sessions into PostgreSQL. Rows are written once
// and never updated.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool and ensures the schema exists
func Connect(ctx context.Context, databaseURL string) (*Archive, error) {
	if databaseURL == "" {
		return nil, ErrDisabled
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{pool: pool}
	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the connection pool
func (a *Archive) Close() {
	a.pool.Close()
}

func (a *Archive) migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recording_sessions (
			id TEXT PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			recording_start_time BIGINT,
			active_player_name TEXT,
			total_events INTEGER NOT NULL,
			payload JSONB NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS recording_events (
			session_id TEXT NOT NULL REFERENCES recording_sessions(id),
			event_id INTEGER NOT NULL,
			event_name TEXT NOT NULL,
			event_time DOUBLE PRECISION NOT NULL,
			captured_at BIGINT,
			killer_champion TEXT,
			victim_champion TEXT,
			PRIMARY KEY (session_id, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_recording_events_name ON recording_events(event_name);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return nil
}

// Store archives a session. It reports false when the session was already
// archived, in which case nothing is written.
func (a *Archive) Store(ctx context.Context, s *session.RecordingSession) (bool, error) {
	payload, err := session.Encode(s)
	if err != nil {
		return false, err
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO recording_sessions (id, recorded_at, recording_start_time, active_player_name, total_events, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		s.ID,
		s.Metadata.RecordedAt,
		nullableInt(s.Metadata.RecordingStartTime),
		nullableString(s.Metadata.ActivePlayerName),
		s.Metadata.TotalEvents,
		payload,
	)
	if err != nil {
		return false, fmt.Errorf("failed to archive session %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for _, e := range s.Events {
		batch.Queue(`
			INSERT INTO recording_events (session_id, event_id, event_name, event_time, captured_at, killer_champion, victim_champion)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			s.ID, e.EventID, e.EventName, e.EventTime,
			nullableInt(e.CapturedAt), nullableString(e.KillerChampion), nullableString(e.VictimChampion),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("failed to archive events of %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit archive of %s: %w", s.ID, err)
	}
	return true, nil
}

// Load reads an archived session back
func (a *Archive) Load(ctx context.Context, id string) (*session.RecordingSession, error) {
	var payload []byte
	err := a.pool.QueryRow(ctx, `SELECT payload FROM recording_sessions WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load archived session %s: %w", id, err)
	}
	return session.Decode(id, payload)
}

// EventCounts returns how many events of each type were archived since t
func (a *Archive) EventCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT e.event_name, COUNT(*)
		FROM recording_events e
		JOIN recording_sessions s ON s.id = e.session_id
		WHERE s.recorded_at >= $1
		GROUP BY e.event_name`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func nullableInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
