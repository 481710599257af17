// Package dates provides calendar-date arithmetic for the venue's locale.
//
// The backend buckets reservations by Istanbul calendar days. Turkey has kept
// a fixed UTC+03 offset since 2016, so a fixed zone is used instead of the IANA
// database; there is no DST to adjust for.
package dates

import (
	"fmt"
	"regexp"
	"time"
)

// Zone is the venue's fixed offset zone.
var Zone = time.FixedZone("TRT", 3*60*60)

const layout = "2006-01-02"

var isoRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Valid reports whether s has the strict YYYY-MM-DD shape and parses as a real date.
func Valid(s string) bool {
	if !isoRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}

// Today returns the current date in the venue zone as an ISO string.
func Today() string {
	return time.Now().In(Zone).Format(layout)
}

// AddDays shifts an ISO date by n calendar days.
// The computation pivots on UTC noon so day boundaries can never drift.
// Malformed input is returned unchanged.
func AddDays(iso string, n int) string {
	t, err := time.Parse(layout, iso)
	if err != nil {
		return iso
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	return t.AddDate(0, 0, n).Format(layout)
}

// StartOfWeek returns the Monday on or before the given ISO date.
// Weeks start Monday regardless of locale.
func StartOfWeek(iso string) string {
	t, err := time.Parse(layout, iso)
	if err != nil {
		return iso
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	diff := int(t.Weekday()) - int(time.Monday)
	if diff < 0 {
		diff += 7 // Sunday wraps back six days
	}
	return t.AddDate(0, 0, -diff).Format(layout)
}

// Week returns the n consecutive ISO dates starting at iso.
// A non-positive n yields an empty slice.
func Week(iso string, n int) []string {
	if n < 0 {
		n = 0
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, AddDays(iso, i))
	}
	return out
}

// RangeLabel formats a window as "Jan 2 – Jan 8" for display.
func RangeLabel(fromISO string, days int) string {
	from, err := time.Parse(layout, fromISO)
	if err != nil {
		return fromISO
	}
	to := from.AddDate(0, 0, days-1)
	return fmt.Sprintf("%s – %s", from.Format("Jan 2"), to.Format("Jan 2"))
}

// DayLabel formats an ISO date as "Mon, Jan 2" for display.
func DayLabel(iso string) string {
	t, err := time.Parse(layout, iso)
	if err != nil {
		return iso
	}
	return t.Format("Mon, Jan 2")
}
