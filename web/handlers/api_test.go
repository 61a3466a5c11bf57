package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/engine"
	"github.com/scrypster/keepsake/internal/storage/local"
	"github.com/scrypster/keepsake/pkg/types"
)

const testBucket = "memories"

type fixture struct {
	handlers  *APIHandlers
	slides    *SlideshowHandlers
	store     *local.Store
	objects   *local.ObjectStore
	slideshow *engine.Slideshow
}

// newFixture wires the full handler stack over the local backend.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := local.NewStore(filepath.Join(t.TempDir(), "keepsake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	objects := local.NewObjectStore(t.TempDir(), "http://127.0.0.1:6464")
	require.NoError(t, objects.EnsureBucket(t.Context(), testBucket))

	cfg := &config.Config{}
	cfg.Backend.Engine = "local"
	cfg.Backend.Bucket = testBucket
	cfg.Upload.MaxBytes = 5 << 20
	cfg.Anniversary.Month = 5
	cfg.Anniversary.Day = 20
	cfg.Security.SecurityMode = "development"

	// nil checker: availability flagging is skipped in handler tests.
	reconciler := engine.NewReconciler(store, store, objects, testBucket, nil)
	slideshow := engine.NewSlideshow(0, "", nil)
	uploader := engine.NewUploader(store, store, objects, testBucket, cfg.Upload.MaxBytes)
	resolver := engine.NewResolver(store, store, objects, testBucket, nil)

	return &fixture{
		handlers:  NewAPIHandlers(cfg, store, reconciler, slideshow, uploader, resolver),
		slides:    NewSlideshowHandlers(slideshow),
		store:     store,
		objects:   objects,
		slideshow: slideshow,
	}
}

func (f *fixture) createMemory(t *testing.T, title, date string) types.TimelineRecord {
	t.Helper()
	body, _ := json.Marshal(MemoryRequest{Title: title, Date: date})
	req := httptest.NewRequest(http.MethodPost, "/api/memories", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.CreateMemory(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.TimelineRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	f.handlers.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"local"`)
}

func TestCreateAndListMemories(t *testing.T) {
	f := newFixture(t)
	f.createMemory(t, "Beach Day", "2024-06-01")

	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	rec := httptest.NewRecorder()
	f.handlers.ListMemories(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MemoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Memories, 1)
	assert.Equal(t, "Beach Day", resp.Memories[0].DisplayName)
}

func TestListMemoriesEmpty(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	rec := httptest.NewRecorder()
	f.handlers.ListMemories(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MemoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Memories)
}

func TestCreateMemoryValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body MemoryRequest
	}{
		{name: "missing title", body: MemoryRequest{Date: "2024-06-01"}},
		{name: "missing date", body: MemoryRequest{Title: "No Date"}},
		{name: "bad date", body: MemoryRequest{Title: "Bad Date", Date: "June first"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/memories", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			f.handlers.CreateMemory(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateMemory(t *testing.T) {
	f := newFixture(t)
	created := f.createMemory(t, "Old Title", "2024-06-01")

	body, _ := json.Marshal(MemoryRequest{Title: "New Title"})
	req := httptest.NewRequest(http.MethodPatch, "/api/memories/"+created.ID, bytes.NewReader(body))
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	f.handlers.UpdateMemory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated types.TimelineRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, "June 1, 2024", updated.Date, "untouched fields survive a partial edit")
}

func TestUpdateMemoryNotFound(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(MemoryRequest{Title: "Whatever"})
	req := httptest.NewRequest(http.MethodPatch, "/api/memories/nope", bytes.NewReader(body))
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	f.handlers.UpdateMemory(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMemory(t *testing.T) {
	f := newFixture(t)
	created := f.createMemory(t, "Short Lived", "2024-06-01")

	req := httptest.NewRequest(http.MethodDelete, "/api/memories/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	f.handlers.DeleteMemory(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	f.handlers.DeleteMemory(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, displayName, date string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="photo.jpg"`}
	h["Content-Type"] = []string{"image/jpeg"}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)

	require.NoError(t, mw.WriteField("display_name", displayName))
	require.NoError(t, mw.WriteField("date_taken", date))
	require.NoError(t, mw.WriteField("location", "Malibu"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.Upload(rec, uploadRequest(t, "Beach Day", "2024-06-01"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Key, "beach_day_"))

	// The post-upload refresh makes the memory visible without ?refresh.
	listRec := httptest.NewRecorder()
	f.handlers.ListMemories(listRec, httptest.NewRequest(http.MethodGet, "/api/memories", nil))
	var list MemoriesResponse
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &list))
	require.Len(t, list.Memories, 1)
	assert.Equal(t, "Beach Day", list.Memories[0].DisplayName)
	assert.Equal(t, "Malibu", list.Memories[0].Location)
	assert.True(t, list.Memories[0].HasImage())
}

func TestUploadRejectsWrongType(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="doc.pdf"`},
		"Content-Type":        {"application/pdf"},
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	fmt.Fprint(part, "%PDF")
	require.NoError(t, mw.WriteField("display_name", "Not A Photo"))
	require.NoError(t, mw.WriteField("date_taken", "2024-06-01"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handlers.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveImage(t *testing.T) {
	f := newFixture(t)
	created := f.createMemory(t, "Beach Day", "2024-06-01")

	err := f.objects.Upload(t.Context(), testBucket, "beach_day_1717200000.jpg",
		strings.NewReader("img"), "image/jpeg", true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/memories/"+created.ID+"/resolve-image", nil)
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	f.handlers.ResolveImage(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res engine.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, engine.ConfidenceTitle, res.Confidence)
	assert.Contains(t, res.URL, "beach_day_1717200000.jpg")
}

func TestResolveImageNotFound(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/memories/nope/resolve-image", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	f.handlers.ResolveImage(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotesLifecycle(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(NoteRequest{Content: "happy anniversary"})
	rec := httptest.NewRecorder()
	f.handlers.CreateNote(rec, httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var note types.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))

	rec = httptest.NewRecorder()
	f.handlers.ListNotes(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []types.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "happy anniversary", notes[0].Content)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/notes/"+note.ID, nil)
	delReq.SetPathValue("id", note.ID)
	rec = httptest.NewRecorder()
	f.handlers.DeleteNote(rec, delReq)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateNoteRequiresContent(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateNote(rec, httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountdown(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.Countdown(rec, httptest.NewRequest(http.MethodGet, "/api/countdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CountdownResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, time.May, resp.Target.Month())
	assert.Equal(t, 20, resp.Target.Day())
	assert.False(t, resp.Target.Before(time.Now().Add(-24*time.Hour)))
}
