// Package calendar provides a US business-day calendar: weekends and observed
// federal holidays are skipped when stepping between trade dates.
package calendar

import (
	"sync"
	"time"
)

const dayKeyLayout = "2006-01-02"

var (
	mu       sync.Mutex
	holidays = make(map[int]map[string]struct{}) // year -> observed holiday dates in that year
)

// IsBusinessDay reports whether t falls on a weekday that is not an observed
// US federal holiday.
func IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !isHoliday(t)
}

// PriorBusinessDay returns the closest business day strictly before t.
func PriorBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func isHoliday(t time.Time) bool {
	mu.Lock()
	set, ok := holidays[t.Year()]
	if !ok {
		set = observedHolidays(t.Year())
		holidays[t.Year()] = set
	}
	mu.Unlock()
	_, hit := set[t.Format(dayKeyLayout)]
	return hit
}

// observedHolidays returns the observed federal holiday dates landing in the
// given year. Nominal holidays from adjacent years are included because
// observation can shift a date across the year boundary (Jan 1 on a Saturday
// is observed Dec 31).
func observedHolidays(year int) map[string]struct{} {
	set := make(map[string]struct{})
	for y := year - 1; y <= year+1; y++ {
		for _, h := range nominalHolidays(y) {
			obs := observe(h)
			if obs.Year() == year {
				set[obs.Format(dayKeyLayout)] = struct{}{}
			}
		}
	}
	return set
}

// observe shifts a fixed-date holiday to the nearest weekday: Saturday is
// observed on Friday, Sunday on Monday.
func observe(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

// nominalHolidays lists the US federal holidays for a year before observation
// shifting. Juneteenth applies from 2021 onward.
func nominalHolidays(year int) []time.Time {
	hs := []time.Time{
		date(year, time.January, 1),                       // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),    // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3),   // Washington's Birthday
		lastWeekday(year, time.May, time.Monday),          // Memorial Day
		date(year, time.July, 4),                          // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.October, time.Monday, 2),    // Columbus Day
		date(year, time.November, 11),                     // Veterans Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		date(year, time.December, 25),                     // Christmas Day
	}
	if year >= 2021 {
		hs = append(hs, date(year, time.June, 19)) // Juneteenth
	}
	return hs
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := date(year, month, 1)
	offset := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	t := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(weekday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}
