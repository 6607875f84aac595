package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// MaxRangeDays caps the length of any requested range; it matches one
// year of inventory counted inclusively.
const MaxRangeDays = 366

// ErrInvalidRange is returned when a range ends before it starts, spans
// more than MaxRangeDays or a date cannot be parsed.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of calendar days [Start, End].  Both ends
// are normalized to midnight UTC so that ranges compare and iterate by day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange normalizes both ends and rejects ranges whose end precedes
// their start or that are longer than MaxRangeDays.  A single-day range
// (start == end) is valid.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	if r.Days() > MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: %s spans more than %d days", ErrInvalidRange, r, MaxRangeDays)
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}
	return NewDateRange(s, e)
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// Dates lists every day of the range in ascending order.
func (r DateRange) Dates() []time.Time {
	out := make([]time.Time, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Contains reports whether the day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
