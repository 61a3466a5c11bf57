package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

// fakeStore is an in-memory implementation of the record-store interfaces
// used across the engine tests.
type fakeStore struct {
	mu       sync.Mutex
	timeline []types.TimelineRecord
	details  []types.DetailsRecord
	notes    []types.Note

	failTimeline error
	failDetails  error
	failInsert   map[string]error // keyed by "timeline"/"details"
	fetchBarrier func()           // if set, invoked at the top of ListTimeline

	deletedDetails []string
	cachedURLs     map[string]string
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		failInsert: make(map[string]error),
		cachedURLs: make(map[string]string),
	}
}

func (s *fakeStore) ListTimeline(ctx context.Context) ([]types.TimelineRecord, error) {
	if s.fetchBarrier != nil {
		s.fetchBarrier()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimeline != nil {
		return nil, s.failTimeline
	}
	out := append([]types.TimelineRecord(nil), s.timeline...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RawDate.Equal(out[j].RawDate) {
			return out[i].RawDate.After(out[j].RawDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *fakeStore) InsertTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failInsert["timeline"]; err != nil {
		return err
	}
	s.timeline = append(s.timeline, *rec)
	return nil
}

func (s *fakeStore) UpdateTimeline(ctx context.Context, rec *types.TimelineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timeline {
		if s.timeline[i].ID == rec.ID {
			s.timeline[i] = *rec
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) SetTimelineImageURL(ctx context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timeline {
		if s.timeline[i].ID == id {
			s.timeline[i].ImageURL = url
			s.cachedURLs[id] = url
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) DeleteTimeline(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timeline {
		if s.timeline[i].ID == id {
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) ListDetails(ctx context.Context) ([]types.DetailsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDetails != nil {
		return nil, s.failDetails
	}
	return append([]types.DetailsRecord(nil), s.details...), nil
}

func (s *fakeStore) InsertDetails(ctx context.Context, rec *types.DetailsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failInsert["details"]; err != nil {
		return err
	}
	s.details = append(s.details, *rec)
	return nil
}

func (s *fakeStore) DeleteDetails(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedDetails = append(s.deletedDetails, id)
	for i := range s.details {
		if s.details[i].ID == id {
			s.details = append(s.details[:i], s.details[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) ListNotes(ctx context.Context) ([]types.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Note(nil), s.notes...), nil
}

func (s *fakeStore) InsertNote(ctx context.Context, note *types.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, *note)
	return nil
}

func (s *fakeStore) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) Close() error { return nil }

// fakeObjects is an in-memory object store whose public URLs use a fixed
// fake host so tests can predict them.
type fakeObjects struct {
	mu         sync.Mutex
	objects    map[string][]byte // key within the single bucket
	order      []string
	failUpload error
	ensured    int
}

var _ storage.ObjectStore = (*fakeObjects)(nil)

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (o *fakeObjects) EnsureBucket(ctx context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ensured++
	return nil
}

func (o *fakeObjects) ListObjects(ctx context.Context, bucket string) ([]types.ObjectInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.ObjectInfo, 0, len(o.order))
	for i := len(o.order) - 1; i >= 0; i-- {
		out = append(out, types.ObjectInfo{Name: o.order[i], CreatedAt: time.Now()})
	}
	return out, nil
}

func (o *fakeObjects) Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, overwrite bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failUpload != nil {
		return o.failUpload
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	if _, exists := o.objects[key]; !exists {
		o.order = append(o.order, key)
	}
	o.objects[key] = buf.Bytes()
	return nil
}

func (o *fakeObjects) PublicURL(bucket, key string) string {
	return fmt.Sprintf("https://cdn.example.test/%s/%s", bucket, key)
}
