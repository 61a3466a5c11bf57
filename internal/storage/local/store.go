// Package local implements the storage interfaces on the local machine:
// a SQLite database for the record tables and a directory on disk for the
// photo bucket. It exists for offline use and for tests; the interface
// contract is identical to the Supabase backend.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_timeline (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT,
	date        TEXT NOT NULL,
	raw_date    TIMESTAMP NOT NULL,
	image_url   TEXT,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memory_details (
	id           TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL,
	display_name TEXT NOT NULL,
	description  TEXT,
	date_taken   TIMESTAMP,
	location     TEXT,
	timeline_id  TEXT,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS love_notes (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_timeline_raw_date ON memory_timeline(raw_date);
CREATE INDEX IF NOT EXISTS idx_details_created_at ON memory_details(created_at);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for tests.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("local: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ListTimeline(ctx context.Context) ([]types.TimelineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), date, raw_date,
		       COALESCE(image_url, ''), created_at, updated_at
		FROM memory_timeline
		ORDER BY raw_date DESC, id DESC`)
	if err != nil {
		return nil, &types.FetchError{Store: "memory_timeline", Err: err}
	}
	defer rows.Close()

	var records []types.TimelineRecord
	for rows.Next() {
		var rec types.TimelineRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Date,
			&rec.RawDate, &rec.ImageURL, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, &types.FetchError{Store: "memory_timeline", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.FetchError{Store: "memory_timeline", Err: err}
	}
	return records, nil
}

func (s *Store) InsertTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_timeline (id, title, description, date, raw_date, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, nullable(rec.Description), rec.Date, rec.RawDate,
		nullable(rec.ImageURL), now, now)
	return err
}

func (s *Store) UpdateTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_timeline
		SET title = ?, description = ?, date = ?, raw_date = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		rec.Title, nullable(rec.Description), rec.Date, rec.RawDate,
		nullable(rec.ImageURL), time.Now().UTC(), rec.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetTimelineImageURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_timeline SET image_url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteTimeline(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_timeline WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListDetails(ctx context.Context) ([]types.DetailsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, display_name, COALESCE(description, ''), date_taken,
		       COALESCE(location, ''), COALESCE(timeline_id, ''), created_at, updated_at
		FROM memory_details
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &types.FetchError{Store: "memory_details", Err: err}
	}
	defer rows.Close()

	var records []types.DetailsRecord
	for rows.Next() {
		var rec types.DetailsRecord
		var dateTaken sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.DisplayName, &rec.Description,
			&dateTaken, &rec.Location, &rec.TimelineID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, &types.FetchError{Store: "memory_details", Err: err}
		}
		if dateTaken.Valid {
			t := dateTaken.Time
			rec.DateTaken = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.FetchError{Store: "memory_details", Err: err}
	}
	return records, nil
}

func (s *Store) InsertDetails(ctx context.Context, rec *types.DetailsRecord) error {
	if rec.FileName == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now().UTC()
	var dateTaken any
	if rec.DateTaken != nil {
		dateTaken = *rec.DateTaken
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_details (id, file_name, display_name, description, date_taken, location, timeline_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.DisplayName, nullable(rec.Description),
		dateTaken, nullable(rec.Location), nullable(rec.TimelineID), now, now)
	return err
}

func (s *Store) DeleteDetails(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_details WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListNotes(ctx context.Context) ([]types.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at FROM love_notes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &types.FetchError{Store: "love_notes", Err: err}
	}
	defer rows.Close()

	var notes []types.Note
	for rows.Next() {
		var n types.Note
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, &types.FetchError{Store: "love_notes", Err: err}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.FetchError{Store: "love_notes", Err: err}
	}
	return notes, nil
}

func (s *Store) InsertNote(ctx context.Context, note *types.Note) error {
	if note.Content == "" {
		return storage.ErrInvalidInput
	}
	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO love_notes (id, content, created_at) VALUES (?, ?, ?)`,
		note.ID, note.Content, createdAt)
	return err
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM love_notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow converts a zero-row write into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
