package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scrypster/keepsake/internal/anniversary"
	"github.com/scrypster/keepsake/internal/engine"
	"github.com/scrypster/keepsake/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MemoriesResponse is the response format for GET /api/memories.
type MemoriesResponse struct {
	Memories    []types.Memory `json:"memories"`
	Generation  uint64         `json:"generation"`
	RefreshedAt time.Time      `json:"refreshed_at"`
}

// MemoryRequest is the request body for creating or editing a timeline
// entry.
type MemoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"` // ISO date, e.g. "2024-06-01"
	ImageURL    string `json:"image_url,omitempty"`
}

// NoteRequest is the request body for POST /api/notes.
type NoteRequest struct {
	Content string `json:"content"`
}

// CountdownResponse is the response format for GET /api/countdown.
type CountdownResponse struct {
	Target    time.Time            `json:"target"`
	TargetFmt string               `json:"target_formatted"`
	Left      anniversary.TimeLeft `json:"left"`
}

// UploadResponse is the response format for POST /api/upload.
type UploadResponse struct {
	engine.UploadResult
	Message string `json:"message"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; log and move on.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
