// Package anniversary provides the countdown date math for the recurring
// annual date the site celebrates.
package anniversary

import "time"

// TimeLeft is the breakdown of the interval between now and the target
// date. When the target is in the past the units report the elapsed time
// and IsPast is set.
type TimeLeft struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	IsPast  bool `json:"is_past"`

	// IsAnniversaryDay is set when now falls on the anniversary's calendar
	// day, regardless of year.
	IsAnniversaryDay bool `json:"is_anniversary_day"`
}

// NextOccurrence returns the next time the anniversary (month/day) occurs,
// at midnight local to now. If this year's date has already passed, next
// year's date is returned.
func NextOccurrence(now time.Time, month time.Month, day int) time.Time {
	target := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	if now.After(target) {
		target = time.Date(now.Year()+1, month, day, 0, 0, 0, 0, now.Location())
	}
	return target
}

// Until computes the countdown breakdown from now to target.
func Until(now, target time.Time) TimeLeft {
	diff := target.Sub(now)
	isPast := diff < 0
	if isPast {
		diff = -diff
	}

	return TimeLeft{
		Days:             int(diff / (24 * time.Hour)),
		Hours:            int(diff % (24 * time.Hour) / time.Hour),
		Minutes:          int(diff % time.Hour / time.Minute),
		Seconds:          int(diff % time.Minute / time.Second),
		IsPast:           isPast,
		IsAnniversaryDay: now.Day() == target.Day() && now.Month() == target.Month(),
	}
}

// FormatDate renders a date the way the timeline displays it.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
