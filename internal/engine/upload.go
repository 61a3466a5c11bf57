package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/keepsake/internal/imagecheck"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

// UploadRequest carries one image and its metadata through the pipeline.
type UploadRequest struct {
	DisplayName string
	Description string
	DateTaken   time.Time
	Location    string

	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult reports where the uploaded memory landed.
type UploadResult struct {
	Key        string `json:"key"`
	URL        string `json:"url"`
	TimelineID string `json:"timeline_id"`
	DetailsID  string `json:"details_id"`
}

// Uploader writes a new memory: the blob to object storage, then a details
// record and a timeline record referencing it. The two metadata writes are
// ordered details-then-timeline with a compensating delete of the details
// record when the timeline write fails, so a partially written memory is
// never left visible to only one read path.
type Uploader struct {
	timeline storage.TimelineStore
	details  storage.DetailsStore
	objects  storage.ObjectStore
	bucket   string
	maxBytes int64
}

// NewUploader wires an upload pipeline. maxBytes caps the accepted blob
// size; zero or negative means no ceiling.
func NewUploader(timeline storage.TimelineStore, details storage.DetailsStore, objects storage.ObjectStore, bucket string, maxBytes int64) *Uploader {
	return &Uploader{
		timeline: timeline,
		details:  details,
		objects:  objects,
		bucket:   bucket,
		maxBytes: maxBytes,
	}
}

// Upload runs the full pipeline. Validation failures surface the sentinel
// errors from pkg/types; infrastructure failures are wrapped in a
// *types.UploadError naming the stage that failed.
func (u *Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := u.validate(req); err != nil {
		return nil, err
	}

	key := objectKey(req.DisplayName, req.ContentType, time.Now())
	if err := u.objects.Upload(ctx, u.bucket, key, req.Data, req.ContentType, true); err != nil {
		return nil, &types.UploadError{Stage: "blob upload", Err: err}
	}
	url := u.objects.PublicURL(u.bucket, key)

	// Both ids are minted up front so the details record can carry the
	// timeline link before the timeline row exists.
	timelineID := uuid.NewString()
	detailsID := uuid.NewString()
	now := time.Now()
	taken := req.DateTaken

	details := &types.DetailsRecord{
		ID:          detailsID,
		FileName:    key,
		DisplayName: req.DisplayName,
		Description: req.Description,
		DateTaken:   &taken,
		Location:    req.Location,
		TimelineID:  timelineID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.details.InsertDetails(ctx, details); err != nil {
		return nil, &types.UploadError{Stage: "details write", Err: err}
	}

	rec := &types.TimelineRecord{
		ID:          timelineID,
		Title:       req.DisplayName,
		Description: req.Description,
		Date:        req.DateTaken.Format("January 2, 2006"),
		RawDate:     req.DateTaken,
		ImageURL:    url,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.timeline.InsertTimeline(ctx, rec); err != nil {
		// Roll back the details write so the stores stay consistent.
		if delErr := u.details.DeleteDetails(ctx, detailsID); delErr != nil {
			log.Printf("ERROR: failed to roll back details record %s after timeline write failure: %v", detailsID, delErr)
		}
		return nil, &types.UploadError{Stage: "timeline write", Err: err}
	}

	return &UploadResult{
		Key:        key,
		URL:        url,
		TimelineID: timelineID,
		DetailsID:  detailsID,
	}, nil
}

func (u *Uploader) validate(req *UploadRequest) error {
	if strings.TrimSpace(req.DisplayName) == "" {
		return types.ErrMissingDisplayName
	}
	if req.DateTaken.IsZero() {
		return types.ErrMissingDate
	}
	if !imagecheck.IsImageContentType(req.ContentType) {
		return types.ErrUnsupportedImageType
	}
	if u.maxBytes > 0 && req.Size > u.maxBytes {
		return types.ErrImageTooLarge
	}
	return nil
}

// extensions maps accepted MIME types to the object key suffix.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// objectKey derives a collision-resistant storage key from the display
// name and upload instant: sanitized name, unix timestamp, extension.
func objectKey(displayName, contentType string, now time.Time) string {
	return fmt.Sprintf("%s_%d%s", sanitizeName(displayName), now.Unix(), extensions[normalizeContentType(contentType)])
}

func normalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// sanitizeName lowercases the display name and collapses anything that is
// not a letter or digit into single underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
