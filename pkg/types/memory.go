package types

import (
	"strings"
	"time"
)

// Memory is the unified, UI-facing entity representing one displayable
// remembrance. It is produced by a reconciliation pass that merges the
// timeline table and the details table into a single de-duplicated list;
// the UI never talks to the backing tables directly.
type Memory struct {
	// ID is an opaque identifier, unique within one reconciled list.
	// It is sourced from whichever backing record produced the entry;
	// the timeline record id takes precedence when both exist.
	ID string `json:"id"`

	// URL is the absolute address of the displayable image.
	// Empty while resolution is pending; a Memory with an empty URL must
	// never be rendered as an image.
	URL string `json:"url,omitempty"`

	// FileName is the object-storage key backing this memory. Empty when
	// the memory originates from a timeline entry with a direct external URL.
	FileName string `json:"file_name,omitempty"`

	// DisplayName is the human-readable label shown on the slide or card.
	DisplayName string `json:"display_name"`

	Description string `json:"description,omitempty"`

	// Date is the display-formatted date string from the timeline entry.
	Date string `json:"date,omitempty"`

	// DateTaken is the instant the photo was taken, when known. It doubles
	// as the weak join key between the two backing tables.
	DateTaken *time.Time `json:"date_taken,omitempty"`

	Location string `json:"location,omitempty"`

	// Broken is set when the availability pre-check could not load URL.
	// It informs logging and placeholder rendering; broken entries are
	// flagged, not excluded.
	Broken bool `json:"broken,omitempty"`

	// Source records which backing store produced the entry:
	// "timeline", "details", or "merged".
	Source string `json:"source"`
}

// HasImage reports whether the memory carries a renderable image address.
func (m *Memory) HasImage() bool {
	return m.URL != ""
}

// TimelineRecord is a row of the memory_timeline table: a narrative entry
// (title, description, date), optionally self-contained with its own
// image reference.
type TimelineRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	RawDate     time.Time `json:"raw_date"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields required before a timeline write.
func (r *TimelineRecord) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrMissingTitle
	}
	if r.RawDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// DetailsRecord is a row of the memory_details table: metadata for an
// uploaded blob, keyed by its object-storage file name.
//
// TimelineID is the explicit link to the timeline entry created in the
// same upload. Legacy rows predate the column and leave it empty; those
// are matched by the best-effort calendar-day linker instead.
type DetailsRecord struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	DateTaken   *time.Time `json:"date_taken,omitempty"`
	Location    string     `json:"location,omitempty"`
	TimelineID  string     `json:"timeline_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Note is a row of the love_notes table.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ObjectInfo describes one object in the storage bucket.
type ObjectInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// imageExtensions are the object key suffixes treated as displayable images.
var imageExtensions = []string{".jpeg", ".jpg", ".png", ".gif", ".webp"}

// IsImageKey reports whether an object-storage key names a displayable image.
func IsImageKey(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DisplayNameFromKey derives a human-readable label from an object key,
// matching how keys are derived from display names at upload time.
func DisplayNameFromKey(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return strings.ReplaceAll(name, "_", " ")
}
