// Package navigation moves the calendar between months. The current month
// travels in the ?month=YYYY-MM query parameter so every page is bookmarkable.
package navigation

import (
	"net/url"
	"time"

	"budgetcal/internal/core"
)

// MonthParam is the query parameter carrying the current month.
const MonthParam = "month"

// Previous returns the month before m.
func Previous(m core.Month) core.Month {
	return m.AddMonths(-1)
}

// Next returns the month after m.
func Next(m core.Month) core.Month {
	return m.AddMonths(1)
}

// Today returns the month containing now.
func Today(now time.Time) core.Month {
	return core.MonthOf(now)
}

// Adjacent returns the months on either side of m, the ones worth
// prefetching while m is displayed.
func Adjacent(m core.Month) (prev, next core.Month) {
	return Previous(m), Next(m)
}

// FromQuery reads the month from q. A missing or malformed value resolves to
// the month containing now.
func FromQuery(q url.Values, now time.Time) core.Month {
	if m, err := core.ParseMonth(q.Get(MonthParam)); err == nil {
		return m
	}
	return Today(now)
}

// Link returns path with the month parameter set to m, keeping any other
// parameters of base.
func Link(path string, base url.Values, m core.Month) string {
	q := url.Values{}
	for k, v := range base {
		q[k] = append([]string(nil), v...)
	}
	q.Set(MonthParam, m.String())
	return path + "?" + q.Encode()
}

// Links are the navigation targets shown above a month.
type Links struct {
	Previous string
	Next     string
	Today    string
	// IsCurrent is true when the displayed month already contains today.
	IsCurrent bool
}

// LinksFor builds the previous/next/today links of path for month m.
func LinksFor(path string, m core.Month, now time.Time) Links {
	today := Today(now)
	return Links{
		Previous:  Link(path, nil, Previous(m)),
		Next:      Link(path, nil, Next(m)),
		Today:     Link(path, nil, today),
		IsCurrent: m == today,
	}
}
