// Package util holds NSE calendar helpers shared by the adapters.
package util

import "time"

// IST is the NSE exchange zone.
var IST = time.FixedZone("IST", 5*3600+30*60)

const (
	sessionOpenMin  = 9*60 + 15
	sessionCloseMin = 15*60 + 30
)

// ParseDay parses YYYY-MM-DD as an IST calendar day. Empty means the IST day of now.
func ParseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		n := now.In(IST)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, IST), nil
	}
	return time.ParseInLocation("2006-01-02", s, IST)
}

// SessionBounds returns the cash session open and close for the IST day containing t.
func SessionBounds(t time.Time) (open, close time.Time) {
	d := t.In(IST)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, IST)
	return day.Add(sessionOpenMin * time.Minute), day.Add(sessionCloseMin * time.Minute)
}

// InSession reports whether t falls in [open, close) of a weekday session.
func InSession(t time.Time) bool {
	d := t.In(IST)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	open, close := SessionBounds(d)
	return !d.Before(open) && d.Before(close)
}

// AlignToBar floors t to the start of its bar, counting from session open
// so 5m and 15m bars line up with 09:15.
func AlignToBar(t time.Time, bar time.Duration) time.Time {
	if bar <= 0 {
		return t
	}
	open, _ := SessionBounds(t)
	if t.Before(open) {
		return t.Truncate(bar)
	}
	return open.Add(t.Sub(open) / bar * bar)
}
