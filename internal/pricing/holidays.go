package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// HolidayCalendar is the injected holiday predicate.
type HolidayCalendar interface {
	IsHoliday(day time.Time) bool
}

// NoHolidays never reports a holiday.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// StaticCalendar is a fixed set of holiday dates.
type StaticCalendar map[time.Time]struct{}

func (s StaticCalendar) IsHoliday(day time.Time) bool {
	_, ok := s[model.Day(day)]
	return ok
}

// ParseCalendar builds a StaticCalendar from YYYY-MM-DD strings; blank
// entries are skipped.
func ParseCalendar(dates []string) (StaticCalendar, error) {
	cal := make(StaticCalendar, len(dates))
	for _, raw := range dates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", raw, err)
		}
		cal[model.Day(d)] = struct{}{}
	}
	return cal, nil
}
