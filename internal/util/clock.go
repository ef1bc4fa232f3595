// Package util provides calendar, text and scheduling helpers shared by the services.
package util

import (
	"fmt"
	"time"
)

// DateLayout is the backend's calendar date format.
const DateLayout = "2006-01-02"

// Clock answers calendar questions in the campus timezone, whatever zone
// the server or the user is in.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a clock reading wall time in loc.
func NewClock(loc *time.Location) *Clock {
	return NewClockAt(loc, time.Now)
}

// NewClockAt returns a clock with a custom time source.
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: now}
}

// Now returns the current instant in the campus zone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Location returns the campus zone.
func (c *Clock) Location() *time.Location { return c.loc }

// Today returns the campus calendar date as YYYY-MM-DD.
func (c *Clock) Today() string { return c.Now().Format(DateLayout) }

// Yesterday returns the calendar date before Today.
func (c *Clock) Yesterday() string { return c.Now().AddDate(0, 0, -1).Format(DateLayout) }

// StartOfToday returns midnight of the campus day.
func (c *Clock) StartOfToday() time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DaysBetween returns the number of calendar days from from to to.
// Both are YYYY-MM-DD; the result is negative when to is earlier.
func DaysBetween(from, to string) (int, error) {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", from, err)
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", to, err)
	}
	return int(b.Sub(a).Hours() / 24), nil
}
