package playback

import (
	"fmt"
	"time"

	"imagery-timeline/internal/common"
)

const secondsPerDay = 24 * 60 * 60

// Date is a civil calendar day stored as the number of days since 1970-01-01.
// It carries no time of day, so every Date is normalized by construction.
type Date int

// DateOf returns the Date for a calendar year, month and day. Out-of-range
// values are normalized the way time.Date does (Feb 29 of a non-leap year is Mar 1).
func DateOf(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Normalize truncates t to its calendar day as seen in loc.
func Normalize(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return DateOf(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := common.ParseISO8601(s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t.Date()), nil
}

func (d Date) civil() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	y, m, day := d.civil().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// String returns the ISO form (YYYY-MM-DD) used for the layer TIME parameter.
func (d Date) String() string {
	return common.FormatISO8601(d.civil())
}

// Display returns the human-readable form shown next to the slider.
func (d Date) Display() string {
	return common.FormatDisplay(d.civil())
}

// Range is an inclusive span of days.
type Range struct {
	Min Date
	Max Date
}

// YearsBack returns [today - years, today] using calendar years.
func YearsBack(today Date, years int) Range {
	y, m, d := today.civil().Date()
	return Range{Min: DateOf(y-years, m, d), Max: today}
}

// Clamp limits d to the range.
func (r Range) Clamp(d Date) Date {
	if d < r.Min {
		return r.Min
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// Contains reports whether d lies within the range.
func (r Range) Contains(d Date) bool {
	return d >= r.Min && d <= r.Max
}

// Days returns the number of days in the range, both ends included.
func (r Range) Days() int {
	return int(r.Max-r.Min) + 1
}
