package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/scrypster/keepsake/internal/imagecheck"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

// Confidence tiers for a resolved card image, strongest first. The "guess"
// tier is a better-than-nothing fallback and is surfaced to the UI so it is
// never presented as a verified match.
const (
	ConfidenceDirect = "direct"
	ConfidenceTitle  = "title"
	ConfidenceDate   = "date"
	ConfidenceGuess  = "guess"
)

// Resolution is the outcome of one resolver run.
type Resolution struct {
	URL        string `json:"url"`
	Confidence string `json:"confidence"`
}

// Resolver finds a displayable image for a timeline record whose own
// image reference is absent or broken. Strategies run in order: the
// record's own URL, a title-substring match over object keys, a same-day
// details match, and finally the first object that loads. Every candidate
// is verified with the availability checker and, except for the direct
// tier, cached back onto the timeline record.
type Resolver struct {
	timeline storage.TimelineStore
	details  storage.DetailsStore
	objects  storage.ObjectStore
	bucket   string
	checker  *imagecheck.Checker
}

// NewResolver wires a resolver over the given stores.
func NewResolver(timeline storage.TimelineStore, details storage.DetailsStore, objects storage.ObjectStore, bucket string, checker *imagecheck.Checker) *Resolver {
	return &Resolver{
		timeline: timeline,
		details:  details,
		objects:  objects,
		bucket:   bucket,
		checker:  checker,
	}
}

// Resolve runs the strategy chain for one timeline record. Returns nil
// without error when nothing displayable could be found.
func (r *Resolver) Resolve(ctx context.Context, rec *types.TimelineRecord) (*Resolution, error) {
	if rec.ImageURL != "" && r.check(ctx, rec.ImageURL) {
		return &Resolution{URL: rec.ImageURL, Confidence: ConfidenceDirect}, nil
	}

	objects, err := r.objects.ListObjects(ctx, r.bucket)
	if err != nil {
		return nil, &types.FetchError{Store: "object storage", Err: err}
	}

	if res := r.matchTitle(ctx, rec, objects); res != nil {
		r.cache(ctx, rec, res)
		return res, nil
	}
	if res := r.matchDate(ctx, rec); res != nil {
		r.cache(ctx, rec, res)
		return res, nil
	}
	if res := r.firstWorking(ctx, objects); res != nil {
		r.cache(ctx, rec, res)
		return res, nil
	}
	return nil, nil
}

// matchTitle scans object keys for one containing the record's title in
// key form (lowercased, spaces as underscores).
func (r *Resolver) matchTitle(ctx context.Context, rec *types.TimelineRecord, objects []types.ObjectInfo) *Resolution {
	needle := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(rec.Title), " ", "_"))
	if needle == "" {
		return nil
	}
	for _, obj := range objects {
		if !types.IsImageKey(obj.Name) {
			continue
		}
		if strings.Contains(strings.ToLower(obj.Name), needle) {
			url := r.objects.PublicURL(r.bucket, obj.Name)
			if r.check(ctx, url) {
				return &Resolution{URL: url, Confidence: ConfidenceTitle}
			}
		}
	}
	return nil
}

// matchDate reuses the calendar-day linker against the details store.
func (r *Resolver) matchDate(ctx context.Context, rec *types.TimelineRecord) *Resolution {
	details, err := r.details.ListDetails(ctx)
	if err != nil {
		log.Printf("WARNING: resolver skipping date match for %s: %v", rec.ID, err)
		return nil
	}
	match := NewLinker(details).Match(rec)
	if match == nil || !types.IsImageKey(match.FileName) {
		return nil
	}
	url := r.objects.PublicURL(r.bucket, match.FileName)
	if !r.check(ctx, url) {
		return nil
	}
	return &Resolution{URL: url, Confidence: ConfidenceDate}
}

// firstWorking returns the first object in storage that loads.
func (r *Resolver) firstWorking(ctx context.Context, objects []types.ObjectInfo) *Resolution {
	for _, obj := range objects {
		if !types.IsImageKey(obj.Name) {
			continue
		}
		url := r.objects.PublicURL(r.bucket, obj.Name)
		if r.check(ctx, url) {
			return &Resolution{URL: url, Confidence: ConfidenceGuess}
		}
	}
	return nil
}

func (r *Resolver) check(ctx context.Context, url string) bool {
	if r.checker == nil {
		return true
	}
	return r.checker.Check(ctx, url)
}

// cache writes a discovered URL back onto the timeline record so future
// reconciliation passes skip the search. A record deleted in the meantime
// is not an error.
func (r *Resolver) cache(ctx context.Context, rec *types.TimelineRecord, res *Resolution) {
	if err := r.timeline.SetTimelineImageURL(ctx, rec.ID, res.URL); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("WARNING: failed to cache resolved image for %s: %v", rec.ID, err)
		}
		return
	}
	rec.ImageURL = res.URL
}
