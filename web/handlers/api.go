package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/keepsake/internal/anniversary"
	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/engine"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	config     *config.Config
	store      storage.Store
	reconciler *engine.Reconciler
	slideshow  *engine.Slideshow
	uploader   *engine.Uploader
	resolver   *engine.Resolver
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(cfg *config.Config, store storage.Store, reconciler *engine.Reconciler, slideshow *engine.Slideshow, uploader *engine.Uploader, resolver *engine.Resolver) *APIHandlers {
	return &APIHandlers{
		config:     cfg,
		store:      store,
		reconciler: reconciler,
		slideshow:  slideshow,
		uploader:   uploader,
		resolver:   resolver,
	}
}

// Health handles GET /api/health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": h.config.Backend.Engine,
	})
}

// ListMemories handles GET /api/memories - the current reconciled snapshot.
// A pass runs when no snapshot exists yet or ?refresh=1 is given.
func (h *APIHandlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	snap, lastErr := h.reconciler.Current()

	if snap == nil || r.URL.Query().Get("refresh") == "1" {
		var err error
		snap, err = h.refresh(r)
		if err != nil {
			respondError(w, http.StatusBadGateway, "failed to load memories", err)
			return
		}
		lastErr = nil
	}

	if snap == nil {
		if lastErr != nil {
			respondError(w, http.StatusBadGateway, "failed to load memories", lastErr)
			return
		}
		respondJSON(w, http.StatusOK, MemoriesResponse{Memories: []types.Memory{}})
		return
	}

	respondJSON(w, http.StatusOK, MemoriesResponse{
		Memories:    snap.Memories,
		Generation:  snap.Generation,
		RefreshedAt: snap.RefreshedAt,
	})
}

// refresh runs a reconciliation pass, keeping the slideshow informed. A
// pass already in flight is not an error; the previous snapshot is served.
func (h *APIHandlers) refresh(r *http.Request) (*engine.Snapshot, error) {
	h.slideshow.BeginRefresh()
	snap, err := h.reconciler.Reconcile(r.Context())
	if errors.Is(err, engine.ErrRefreshInFlight) {
		// The concurrent pass completes the slideshow refresh.
		return snap, nil
	}
	h.slideshow.CompleteRefresh(snap, err)
	return snap, err
}

// CreateMemory handles POST /api/memories - create a timeline entry.
func (h *APIHandlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req MemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rawDate, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	now := time.Now()
	rec := &types.TimelineRecord{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Date:        rawDate.Format("January 2, 2006"),
		RawDate:     rawDate,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rec.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid memory", err)
		return
	}

	if err := h.store.InsertTimeline(r.Context(), rec); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create memory", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// UpdateMemory handles PATCH /api/memories/{id} - edit a timeline entry.
// Omitted fields keep their current values.
func (h *APIHandlers) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req MemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rec, err := h.findTimeline(r, id)
	if err != nil {
		respondError(w, http.StatusNotFound, "memory not found", err)
		return
	}

	if req.Title != "" {
		rec.Title = req.Title
	}
	if req.Description != "" {
		rec.Description = req.Description
	}
	if req.ImageURL != "" {
		rec.ImageURL = req.ImageURL
	}
	if req.Date != "" {
		rawDate, err := parseDate(req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		rec.RawDate = rawDate
		rec.Date = rawDate.Format("January 2, 2006")
	}
	rec.UpdatedAt = time.Now()

	if err := h.store.UpdateTimeline(r.Context(), rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "memory not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update memory", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// DeleteMemory handles DELETE /api/memories/{id}.
func (h *APIHandlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteTimeline(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "memory not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete memory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveImage handles POST /api/memories/{id}/resolve-image - run the
// card image fallback chain for one timeline entry.
func (h *APIHandlers) ResolveImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.findTimeline(r, id)
	if err != nil {
		respondError(w, http.StatusNotFound, "memory not found", err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), rec)
	if err != nil {
		respondError(w, http.StatusBadGateway, "image resolution failed", err)
		return
	}
	if res == nil {
		respondError(w, http.StatusNotFound, "no displayable image found", nil)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Upload handles POST /api/upload - the multipart upload pipeline. On
// success a fresh reconciliation pass is triggered so the new memory is
// visible immediately.
func (h *APIHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.config.Upload.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.Upload.MaxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(h.config.Upload.MaxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field", err)
		return
	}
	defer file.Close()

	var dateTaken time.Time
	if v := r.FormValue("date_taken"); v != "" {
		dateTaken, err = parseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date_taken", err)
			return
		}
	}

	req := &engine.UploadRequest{
		DisplayName: r.FormValue("display_name"),
		Description: r.FormValue("description"),
		DateTaken:   dateTaken,
		Location:    r.FormValue("location"),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	}

	result, err := h.uploader.Upload(r.Context(), req)
	if err != nil {
		var upErr *types.UploadError
		if errors.As(err, &upErr) {
			respondError(w, http.StatusBadGateway, "upload failed", err)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}

	if _, err := h.refresh(r); err != nil {
		log.Printf("WARNING: post-upload refresh failed: %v", err)
	}

	respondJSON(w, http.StatusCreated, UploadResponse{
		UploadResult: *result,
		Message:      "memory uploaded",
	})
}

// Countdown handles GET /api/countdown.
func (h *APIHandlers) Countdown(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	target := anniversary.NextOccurrence(now, time.Month(h.config.Anniversary.Month), h.config.Anniversary.Day)
	respondJSON(w, http.StatusOK, CountdownResponse{
		Target:    target,
		TargetFmt: anniversary.FormatDate(target),
		Left:      anniversary.Until(now, target),
	})
}

// ListNotes handles GET /api/notes.
func (h *APIHandlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ListNotes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notes", err)
		return
	}
	if notes == nil {
		notes = []types.Note{}
	}
	respondJSON(w, http.StatusOK, notes)
}

// CreateNote handles POST /api/notes.
func (h *APIHandlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required", nil)
		return
	}

	note := &types.Note{
		ID:        uuid.NewString(),
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.store.InsertNote(r.Context(), note); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create note", err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *APIHandlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteNote(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "note not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findTimeline looks a timeline record up by id. The record stores expose
// list-only reads, so this scans the full listing.
func (h *APIHandlers) findTimeline(r *http.Request, id string) (*types.TimelineRecord, error) {
	records, err := h.store.ListTimeline(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

// parseDate accepts an ISO calendar date or a full RFC 3339 instant.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
