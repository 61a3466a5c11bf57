// Package storage provides composable storage interfaces for Keepsake.
//
// The backing service is split into two record stores (the narrative
// timeline and the per-upload details) plus a public object store. The
// interfaces are small so that backends can be implemented independently:
// the Supabase backend reaches PostgREST tables and storage buckets, the
// local backend uses SQLite and the filesystem. Any key-value record store
// and any public-URL-capable blob store can satisfy them.
package storage

import (
	"context"
	"io"

	"github.com/scrypster/keepsake/pkg/types"
)

// TimelineStore provides CRUD over memory_timeline records.
type TimelineStore interface {
	// ListTimeline returns all timeline records ordered newest raw_date
	// first, ties broken by id descending so the order is deterministic.
	ListTimeline(ctx context.Context) ([]types.TimelineRecord, error)

	// InsertTimeline creates a record. The caller supplies the id.
	InsertTimeline(ctx context.Context, rec *types.TimelineRecord) error

	// UpdateTimeline replaces the mutable fields of an existing record.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateTimeline(ctx context.Context, rec *types.TimelineRecord) error

	// SetTimelineImageURL caches a discovered image address on a record.
	// Used by the card image resolver; returns ErrNotFound when the
	// record has been deleted in the meantime.
	SetTimelineImageURL(ctx context.Context, id, url string) error

	// DeleteTimeline removes a record by id.
	DeleteTimeline(ctx context.Context, id string) error
}

// DetailsStore provides CRUD over memory_details records.
type DetailsStore interface {
	// ListDetails returns all details records ordered newest created_at first.
	ListDetails(ctx context.Context) ([]types.DetailsRecord, error)

	// InsertDetails creates a record. The caller supplies the id.
	InsertDetails(ctx context.Context, rec *types.DetailsRecord) error

	// DeleteDetails removes a record by id. Used by the upload pipeline's
	// compensating action when the paired timeline write fails.
	DeleteDetails(ctx context.Context, id string) error
}

// NoteStore provides CRUD over love_notes records.
type NoteStore interface {
	ListNotes(ctx context.Context) ([]types.Note, error)
	InsertNote(ctx context.Context, note *types.Note) error
	DeleteNote(ctx context.Context, id string) error
}

// ObjectStore provides access to the photo bucket.
type ObjectStore interface {
	// EnsureBucket makes sure the named bucket exists and is publicly
	// readable with the configured object size limit. Idempotent: calling
	// it against an existing bucket reasserts the public setting and
	// succeeds. Failures are reported as *types.ProvisionError.
	EnsureBucket(ctx context.Context, name string) error

	// ListObjects returns the objects in the bucket, newest first.
	ListObjects(ctx context.Context, bucket string) ([]types.ObjectInfo, error)

	// Upload writes an object. When overwrite is true an existing object
	// under the same key is replaced.
	Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, overwrite bool) error

	// PublicURL returns the public address for an object key. It is a pure
	// address computation and does not verify the object exists.
	PublicURL(bucket, key string) string
}

// Store combines the record stores a backend must provide.
type Store interface {
	TimelineStore
	DetailsStore
	NoteStore

	// Close releases any resources held by the store.
	Close() error
}
