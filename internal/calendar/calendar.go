// Package calendar provides US business-day and holiday resolution for
// staleness windows. All computations are rule-based so that replaying an
// evaluation at a historical as-of instant yields the same answers.
package calendar

import "time"

// Calendar resolves business days against the US federal holiday schedule.
type Calendar struct {
	loc *time.Location
}

// New creates a calendar pinned to the given location. A nil location
// defaults to UTC so the engine stays independent of the host timezone.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// IsBusinessDay reports whether t falls on a weekday that is not an observed
// federal holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	t = t.In(c.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.isHoliday(t)
}

// NextBusinessDay returns the first business day strictly after t, at the
// same clock time.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	t = t.In(c.loc)
	for {
		t = t.AddDate(0, 0, 1)
		if c.IsBusinessDay(t) {
			return t
		}
	}
}

// RollForward returns t unchanged when t is a business day, otherwise the
// next business day. Staleness deadlines landing on a weekend or holiday
// extend to the following business day rather than expiring early.
func (c *Calendar) RollForward(t time.Time) time.Time {
	if c.IsBusinessDay(t) {
		return t
	}
	return c.NextBusinessDay(t)
}

// BusinessDaysBetween counts business days in (from, to]. Returns 0 when to
// is not after from.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	n := 0
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, c.loc)
	for d.Before(end) {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			n++
		}
	}
	return n
}

// isHoliday checks observed US federal holidays. Saturday holidays are
// observed the preceding Friday, Sunday holidays the following Monday.
func (c *Calendar) isHoliday(t time.Time) bool {
	y := t.Year()
	for _, h := range federalHolidays(y, c.loc) {
		if sameDate(t, observed(h)) {
			return true
		}
	}
	// A Friday can pick up a Saturday holiday from January 1 of next year.
	for _, h := range federalHolidays(y+1, c.loc) {
		if sameDate(t, observed(h)) {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func observed(h time.Time) time.Time {
	switch h.Weekday() {
	case time.Saturday:
		return h.AddDate(0, 0, -1)
	case time.Sunday:
		return h.AddDate(0, 0, 1)
	}
	return h
}

func federalHolidays(year int, loc *time.Location) []time.Time {
	fixed := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, loc)
	}
	return []time.Time{
		fixed(time.January, 1),                       // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3, loc),   // MLK Day
		nthWeekday(year, time.February, time.Monday, 3, loc),  // Presidents Day
		lastWeekday(year, time.May, time.Monday, loc),         // Memorial Day
		fixed(time.June, 19),                         // Juneteenth
		fixed(time.July, 4),                          // Independence Day
		nthWeekday(year, time.September, time.Monday, 1, loc), // Labor Day
		nthWeekday(year, time.October, time.Monday, 2, loc),   // Columbus Day
		fixed(time.November, 11),                     // Veterans Day
		nthWeekday(year, time.November, time.Thursday, 4, loc), // Thanksgiving
		fixed(time.December, 25),                     // Christmas
	}
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int, loc *time.Location) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	count := 0
	for {
		if t.Weekday() == wd {
			count++
			if count == n {
				return t
			}
		}
		t = t.AddDate(0, 0, 1)
	}
}

func lastWeekday(year int, month time.Month, wd time.Weekday, loc *time.Location) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for t.Weekday() != wd {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
