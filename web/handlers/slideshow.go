package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/scrypster/keepsake/internal/engine"
)

// SlideshowHandlers contains HTTP handlers for the slideshow controller.
type SlideshowHandlers struct {
	slideshow *engine.Slideshow
	client    *http.Client
}

// NewSlideshowHandlers creates a new SlideshowHandlers instance.
func NewSlideshowHandlers(slideshow *engine.Slideshow) *SlideshowHandlers {
	return &SlideshowHandlers{
		slideshow: slideshow,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetState handles GET /api/slideshow.
func (h *SlideshowHandlers) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.slideshow.State())
}

// actionRequest carries the optional parameters of a slideshow action.
type actionRequest struct {
	Index     int    `json:"index"`      // goto
	Enabled   *bool  `json:"enabled"`    // autoplay; nil toggles
	Key       string `json:"key"`        // key
	Direction string `json:"direction"`  // swipe
	MemoryID  string `json:"memory_id"`  // loaded / failed
}

// Action handles POST /api/slideshow/{action}. Unknown actions are a 404.
func (h *SlideshowHandlers) Action(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var req actionRequest
	// An empty body is fine for parameterless actions.
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	switch action {
	case "next":
		h.slideshow.Next()
	case "prev":
		h.slideshow.Prev()
	case "goto":
		h.slideshow.GoTo(req.Index)
	case "autoplay":
		if req.Enabled != nil {
			h.slideshow.SetAutoplay(*req.Enabled)
		} else {
			h.slideshow.SetAutoplay(!h.slideshow.State().Autoplay)
		}
	case "fullscreen":
		h.slideshow.ToggleFullscreen()
	case "info":
		h.slideshow.ToggleInfo()
	case "bookmark":
		h.slideshow.ToggleBookmark()
	case "key":
		if !h.slideshow.HandleKey(req.Key) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"handled": false,
				"state":   h.slideshow.State(),
			})
			return
		}
	case "swipe":
		h.slideshow.Swipe(req.Direction)
	case "loaded":
		h.slideshow.MarkLoaded(req.MemoryID)
	case "failed":
		h.slideshow.MarkFailed(req.MemoryID)
	case "share":
		url, err := h.slideshow.Share()
		if err != nil {
			if errors.Is(err, engine.ErrShareUnsupported) {
				respondError(w, http.StatusNotImplemented, "sharing is not configured", nil)
				return
			}
			respondError(w, http.StatusConflict, "nothing to share", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	default:
		respondError(w, http.StatusNotFound, "unknown slideshow action", fmt.Errorf("action %q", action))
		return
	}

	respondJSON(w, http.StatusOK, h.slideshow.State())
}

// Download handles GET /api/slideshow/download - streams the current
// slide's image with an attachment disposition.
func (h *SlideshowHandlers) Download(w http.ResponseWriter, r *http.Request) {
	current := h.slideshow.Current()
	if current == nil || !current.HasImage() {
		respondError(w, http.StatusNotFound, "no downloadable slide", nil)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, current.URL, nil)
	if err != nil {
		respondError(w, http.StatusBadGateway, "invalid slide url", err)
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to fetch slide image", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respondError(w, http.StatusBadGateway, "slide image unavailable",
			fmt.Errorf("upstream status %d", resp.StatusCode))
		return
	}

	name := current.FileName
	if name == "" {
		name = path.Base(req.URL.Path)
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Response already streaming; nothing useful to send.
		return
	}
}

// decodeOptionalJSON decodes a JSON body into v, treating an empty body
// as a no-op.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
