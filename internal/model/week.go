package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the ISO calendar date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

// Week identifies an ISO week by its Monday at 00:00 UTC.
type Week struct {
	time.Time
}

// WeekOf returns the week containing t. The calendar date of t is taken as-is
// (its own location), so a Sunday-evening timestamp stays in its own week.
func WeekOf(t time.Time) Week {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return Week{day.AddDate(0, 0, -offset)}
}

// ParseWeek parses an ISO date and normalizes it to the Monday of its week.
func ParseWeek(s string) (Week, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Week{}, eris.Wrapf(err, "model: parse week %q", s)
	}
	return WeekOf(t), nil
}

// AddWeeks returns the week n weeks after w (n may be negative).
func (w Week) AddWeeks(n int) Week {
	return Week{w.Time.AddDate(0, 0, 7*n)}
}

// End returns the first instant after the week.
func (w Week) End() time.Time {
	return w.Time.AddDate(0, 0, 7)
}

// Before reports whether w is earlier than o.
func (w Week) Before(o Week) bool { return w.Time.Before(o.Time) }

// After reports whether w is later than o.
func (w Week) After(o Week) bool { return w.Time.After(o.Time) }

func (w Week) String() string {
	if w.IsZero() {
		return ""
	}
	return w.Format(DateLayout)
}

// MarshalJSON encodes the week as an ISO date, or null when zero.
func (w Week) MarshalJSON() ([]byte, error) {
	if w.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(w.String())
}

// UnmarshalJSON accepts an ISO date (or full RFC 3339 timestamp) and
// normalizes it to its Monday.
func (w *Week) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: decode week")
	}
	if s == "" {
		*w = Week{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*w = WeekOf(t)
		return nil
	}
	parsed, err := ParseWeek(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// TrailingWeeks returns the n completed weeks before asOf's week, oldest first.
func TrailingWeeks(asOf Week, n int) []Week {
	if n <= 0 {
		return nil
	}
	weeks := make([]Week, n)
	for i := 0; i < n; i++ {
		weeks[i] = asOf.AddWeeks(i - n)
	}
	return weeks
}
