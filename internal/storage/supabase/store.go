// Package supabase implements the storage interfaces against a Supabase
// project: PostgREST for the memory_timeline, memory_details, and
// love_notes tables, and Supabase Storage for the photo bucket.
package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

const (
	timelineTable = "memory_timeline"
	detailsTable  = "memory_details"
	notesTable    = "love_notes"
)

// Store talks to a Supabase project. It implements storage.Store and,
// via its Objects method, exposes the bucket-backed object store.
type Store struct {
	client  *supa.Client
	breaker *backendBreaker
	objects *ObjectStore
}

// New creates a Store for the given project URL and service role key.
func New(projectURL, serviceKey string) (*Store, error) {
	client, err := supa.NewClient(projectURL, serviceKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: creating client: %w", err)
	}

	s := &Store{
		client:  client,
		breaker: newBackendBreaker(),
	}
	s.objects = &ObjectStore{client: client}
	return s, nil
}

// Objects returns the bucket-backed object store sharing this client.
func (s *Store) Objects() *ObjectStore { return s.objects }

// BreakerState exposes the circuit breaker state for diagnostics.
func (s *Store) BreakerState() string { return s.breaker.State() }

// Close is a no-op; the underlying client is plain HTTP.
func (s *Store) Close() error { return nil }

func descending() *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: false}
}

// ListTimeline returns all timeline rows, newest raw_date first with id
// as the deterministic tiebreak.
func (s *Store) ListTimeline(ctx context.Context) ([]types.TimelineRecord, error) {
	var rows []types.TimelineRecord
	err := s.breaker.execute(ctx, func() error {
		_, err := s.client.From(timelineTable).
			Select("*", "", false).
			Order("raw_date", descending()).
			Order("id", descending()).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, &types.FetchError{Store: timelineTable, Err: err}
	}
	return rows, nil
}

func (s *Store) InsertTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	row := map[string]any{
		"id":          rec.ID,
		"title":       rec.Title,
		"description": nullable(rec.Description),
		"date":        rec.Date,
		"raw_date":    rec.RawDate.Format(time.RFC3339),
		"image_url":   nullable(rec.ImageURL),
	}
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(timelineTable).
			Insert(row, false, "", "minimal", "").
			Execute()
		return err
	})
}

func (s *Store) UpdateTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	patch := map[string]any{
		"title":       rec.Title,
		"description": nullable(rec.Description),
		"date":        rec.Date,
		"raw_date":    rec.RawDate.Format(time.RFC3339),
		"image_url":   nullable(rec.ImageURL),
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(timelineTable).
			Update(patch, "minimal", "").
			Eq("id", rec.ID).
			Execute()
		return err
	})
}

func (s *Store) SetTimelineImageURL(ctx context.Context, id, url string) error {
	patch := map[string]any{
		"image_url":  url,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(timelineTable).
			Update(patch, "minimal", "").
			Eq("id", id).
			Execute()
		return err
	})
}

func (s *Store) DeleteTimeline(ctx context.Context, id string) error {
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(timelineTable).
			Delete("minimal", "").
			Eq("id", id).
			Execute()
		return err
	})
}

// ListDetails returns all details rows, newest created_at first.
func (s *Store) ListDetails(ctx context.Context) ([]types.DetailsRecord, error) {
	var rows []types.DetailsRecord
	err := s.breaker.execute(ctx, func() error {
		_, err := s.client.From(detailsTable).
			Select("*", "", false).
			Order("created_at", descending()).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, &types.FetchError{Store: detailsTable, Err: err}
	}
	return rows, nil
}

func (s *Store) InsertDetails(ctx context.Context, rec *types.DetailsRecord) error {
	if rec.FileName == "" {
		return storage.ErrInvalidInput
	}
	row := map[string]any{
		"id":           rec.ID,
		"file_name":    rec.FileName,
		"display_name": rec.DisplayName,
		"description":  nullable(rec.Description),
		"location":     nullable(rec.Location),
		"timeline_id":  nullable(rec.TimelineID),
	}
	if rec.DateTaken != nil {
		row["date_taken"] = rec.DateTaken.Format(time.RFC3339)
	}
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(detailsTable).
			Insert(row, false, "", "minimal", "").
			Execute()
		return err
	})
}

func (s *Store) DeleteDetails(ctx context.Context, id string) error {
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(detailsTable).
			Delete("minimal", "").
			Eq("id", id).
			Execute()
		return err
	})
}

func (s *Store) ListNotes(ctx context.Context) ([]types.Note, error) {
	var rows []types.Note
	err := s.breaker.execute(ctx, func() error {
		_, err := s.client.From(notesTable).
			Select("*", "", false).
			Order("created_at", descending()).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, &types.FetchError{Store: notesTable, Err: err}
	}
	return rows, nil
}

func (s *Store) InsertNote(ctx context.Context, note *types.Note) error {
	if note.Content == "" {
		return storage.ErrInvalidInput
	}
	row := map[string]any{
		"id":      note.ID,
		"content": note.Content,
	}
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(notesTable).
			Insert(row, false, "", "minimal", "").
			Execute()
		return err
	})
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return s.breaker.execute(ctx, func() error {
		_, _, err := s.client.From(notesTable).
			Delete("minimal", "").
			Eq("id", id).
			Execute()
		return err
	})
}

// nullable maps empty strings to SQL NULL so optional text columns stay
// null instead of accumulating empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
