package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/scrypster/keepsake/internal/imagecheck"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/pkg/types"
)

// ErrRefreshInFlight is returned when a reconciliation pass is requested
// while another is still running. Callers keep the snapshot they have.
var ErrRefreshInFlight = errors.New("a refresh is already in flight")

// defaultCheckWorkers bounds the availability-check fan-out per pass.
const defaultCheckWorkers = 4

// Snapshot is the immutable result of one reconciliation pass. It is
// published atomically and never mutated afterwards; consumers treat the
// slice as read-only.
type Snapshot struct {
	Memories    []types.Memory `json:"memories"`
	Generation  uint64         `json:"generation"`
	RefreshedAt time.Time      `json:"refreshed_at"`
}

// Reconciler merges the timeline and details stores into one de-duplicated,
// availability-flagged Memory list. At most one pass runs at a time: the
// pass holding the in-flight guard is always the newest, so it publishes
// unconditionally; concurrent callers get ErrRefreshInFlight and keep the
// snapshot they have. Each published snapshot carries a monotonically
// increasing generation number.
type Reconciler struct {
	timeline storage.TimelineStore
	details  storage.DetailsStore
	objects  storage.ObjectStore
	bucket   string
	checker  *imagecheck.Checker
	workers  int

	mu         sync.Mutex
	inFlight   bool
	generation uint64
	snapshot   *Snapshot
	lastErr    error
	onRefresh  func(*Snapshot)
}

// NewReconciler wires a reconciler over the given stores. The checker may
// be nil, in which case availability flagging is skipped.
func NewReconciler(timeline storage.TimelineStore, details storage.DetailsStore, objects storage.ObjectStore, bucket string, checker *imagecheck.Checker) *Reconciler {
	return &Reconciler{
		timeline: timeline,
		details:  details,
		objects:  objects,
		bucket:   bucket,
		checker:  checker,
		workers:  defaultCheckWorkers,
	}
}

// OnRefresh registers a callback invoked after each published snapshot.
// Must be set before the first Reconcile call.
func (r *Reconciler) OnRefresh(fn func(*Snapshot)) {
	r.onRefresh = fn
}

// Current returns the latest published snapshot and the error of the last
// pass, if it failed. The snapshot is nil until the first successful pass.
func (r *Reconciler) Current() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, r.lastErr
}

// Reconcile runs one full fetch-merge-dedupe pass and publishes the
// resulting snapshot. A store fetch failure fails the whole pass as a
// *types.FetchError; individual records that cannot be processed are
// skipped and logged. Returns ErrRefreshInFlight if a pass is already
// running.
func (r *Reconciler) Reconcile(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	if r.inFlight {
		snap := r.snapshot
		r.mu.Unlock()
		return snap, ErrRefreshInFlight
	}
	r.inFlight = true
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	memories, err := r.build(ctx)
	if err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		return nil, err
	}

	snap := &Snapshot{
		Memories:    memories,
		Generation:  gen,
		RefreshedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snap
	r.lastErr = nil
	if r.onRefresh != nil {
		go r.onRefresh(snap)
	}
	return snap, nil
}

func (r *Reconciler) build(ctx context.Context) ([]types.Memory, error) {
	timeline, err := r.timeline.ListTimeline(ctx)
	if err != nil {
		return nil, &types.FetchError{Store: "memory_timeline", Err: err}
	}
	details, err := r.details.ListDetails(ctx)
	if err != nil {
		return nil, &types.FetchError{Store: "memory_details", Err: err}
	}

	linker := NewLinker(details)
	memories := make([]types.Memory, 0, len(timeline)+len(details))

	// Timeline records first: narrative fields take priority, storage
	// fields fill in from a linked details record.
	for i := range timeline {
		rec := &timeline[i]
		mem := types.Memory{
			ID:          rec.ID,
			URL:         rec.ImageURL,
			DisplayName: rec.Title,
			Description: rec.Description,
			Date:        rec.Date,
			Source:      "timeline",
		}
		if !rec.RawDate.IsZero() {
			raw := rec.RawDate
			mem.DateTaken = &raw
		}
		if match := linker.Match(rec); match != nil {
			mem.Source = "merged"
			mem.FileName = match.FileName
			mem.Location = match.Location
			if mem.URL == "" && match.FileName != "" && types.IsImageKey(match.FileName) {
				mem.URL = r.objects.PublicURL(r.bucket, match.FileName)
			}
		}
		memories = append(memories, mem)
	}

	// Remaining details records become standalone memories addressed by
	// the object store's public URL.
	for _, d := range linker.Unconsumed() {
		if d.FileName == "" || !types.IsImageKey(d.FileName) {
			log.Printf("WARNING: skipping details record %s: file name %q is not a displayable image", d.ID, d.FileName)
			continue
		}
		mem := types.Memory{
			ID:          d.ID,
			URL:         r.objects.PublicURL(r.bucket, d.FileName),
			FileName:    d.FileName,
			DisplayName: d.DisplayName,
			Description: d.Description,
			DateTaken:   d.DateTaken,
			Location:    d.Location,
			Source:      "details",
		}
		if mem.DisplayName == "" {
			mem.DisplayName = types.DisplayNameFromKey(d.FileName)
		}
		memories = append(memories, mem)
	}

	r.flagUnavailable(ctx, memories)

	return dedupeByURL(memories), nil
}

// flagUnavailable runs the availability checker over every memory carrying
// a URL, with a bounded worker fan-out. Broken entries are flagged, never
// excluded; the flag informs logging and placeholder rendering only.
func (r *Reconciler) flagUnavailable(ctx context.Context, memories []types.Memory) {
	if r.checker == nil {
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if !r.checker.Check(ctx, memories[i].URL) {
					memories[i].Broken = true
					log.Printf("WARNING: image unavailable for memory %s: %s", memories[i].ID, memories[i].URL)
				}
			}
		}()
	}
	for i := range memories {
		if memories[i].HasImage() {
			jobs <- i
		}
	}
	close(jobs)
	wg.Wait()
}

// dedupeByURL drops later entries sharing a non-empty URL with an earlier
// one. Entries without a URL are exempt and all kept.
func dedupeByURL(memories []types.Memory) []types.Memory {
	seen := make(map[string]bool, len(memories))
	out := memories[:0]
	for _, m := range memories {
		if m.URL != "" {
			if seen[m.URL] {
				continue
			}
			seen[m.URL] = true
		}
		out = append(out, m)
	}
	return out
}
