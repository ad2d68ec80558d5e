package app

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Relative date text as captured from the listings page: "2 weeks ago",
// "an hour ago". Resolution is anchored to the capture timestamp so the same
// input always yields the same date.

var (
	relDateRe       = regexp.MustCompile(`^(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago$`)
	relDateSingleRe = regexp.MustCompile(`^(?:a|an)\s+(second|minute|hour|day|week|month|year)\s+ago$`)
)

// ResolveRelativeDate converts free-text relative dates into absolute ones.
// Unparseable input returns ok=false; a missing date is a normal outcome for
// callers, never an error.
func ResolveRelativeDate(text string, anchor time.Time) (time.Time, bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	if m := relDateRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return subtract(anchor, n, m[2]), true
	}
	if m := relDateSingleRe.FindStringSubmatch(t); m != nil {
		return subtract(anchor, 1, m[1]), true
	}
	return time.Time{}, false
}

func subtract(from time.Time, n int, unit string) time.Time {
	switch unit {
	case "second":
		return from.Add(-time.Duration(n) * time.Second)
	case "minute":
		return from.Add(-time.Duration(n) * time.Minute)
	case "hour":
		return from.Add(-time.Duration(n) * time.Hour)
	case "day":
		return from.AddDate(0, 0, -n)
	case "week":
		return from.AddDate(0, 0, -7*n)
	case "month":
		return addMonthsClamped(from, -n)
	case "year":
		return addMonthsClamped(from, -12*n)
	}
	return from
}

// addMonthsClamped shifts by whole months keeping the day-of-month, clamping
// to the last valid day of the target month (Mar 31 - 1 month = Feb 28/29,
// not AddDate's normalized Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
