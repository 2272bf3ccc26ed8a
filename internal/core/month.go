package core

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// String formats the month as "2006-01", the form used by the budget API.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label formats the month for display, e.g. "2024年6月".
func (m Month) Label() string {
	return fmt.Sprintf("%d年%d月", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// AddMonths moves n months forward, or backward when n is negative.
func (m Month) AddMonths(n int) Month {
	return MonthOf(time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

func (m Month) FirstDay() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

func (m Month) LastDay() Date {
	return Date{Time: time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)}
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}
