package engine

import (
	"github.com/scrypster/keepsake/pkg/types"
)

// Linker associates details records with timeline records. The primary path
// is the explicit timeline_id foreign key written at upload time; rows that
// predate the column fall back to a best-effort calendar-day match between
// raw_date and date_taken.
//
// The date match is weak and lossy: two unrelated memories taken the same
// day collide, and a missing date on either side never matches. Each details
// record links to at most one timeline record per pass, first match wins in
// timeline order.
type Linker struct {
	byTimelineID map[string]int // timeline id -> details index
	byDay        map[string]int // yyyy-mm-dd -> details index
	consumed     map[int]bool
	details      []types.DetailsRecord
}

// NewLinker indexes the details records for matching.
func NewLinker(details []types.DetailsRecord) *Linker {
	l := &Linker{
		byTimelineID: make(map[string]int),
		byDay:        make(map[string]int),
		consumed:     make(map[int]bool),
		details:      details,
	}
	for i, d := range details {
		if d.TimelineID != "" {
			if _, ok := l.byTimelineID[d.TimelineID]; !ok {
				l.byTimelineID[d.TimelineID] = i
			}
		}
		// Only legacy rows without the foreign key participate in the
		// date fallback.
		if d.TimelineID == "" && d.DateTaken != nil {
			day := d.DateTaken.Format("2006-01-02")
			if _, ok := l.byDay[day]; !ok {
				l.byDay[day] = i
			}
		}
	}
	return l
}

// Match finds the details record for a timeline record and marks it
// consumed. The explicit foreign key is checked first; the calendar-day
// fallback only applies to details rows without one. Returns nil when
// nothing links.
func (l *Linker) Match(rec *types.TimelineRecord) *types.DetailsRecord {
	if i, ok := l.byTimelineID[rec.ID]; ok && !l.consumed[i] {
		l.consumed[i] = true
		return &l.details[i]
	}
	if rec.RawDate.IsZero() {
		return nil
	}
	day := rec.RawDate.Format("2006-01-02")
	if i, ok := l.byDay[day]; ok && !l.consumed[i] {
		l.consumed[i] = true
		return &l.details[i]
	}
	return nil
}

// Unconsumed returns the details records no timeline record claimed,
// preserving their input order.
func (l *Linker) Unconsumed() []types.DetailsRecord {
	var out []types.DetailsRecord
	for i := range l.details {
		if !l.consumed[i] {
			out = append(out, l.details[i])
		}
	}
	return out
}
