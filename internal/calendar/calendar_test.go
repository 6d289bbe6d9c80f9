package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestCalendar_IsBusinessDay(t *testing.T) {
	cal := New(time.UTC)

	testCases := []struct {
		name     string
		day      time.Time
		expected bool
	}{
		{"regular_wednesday", date(2025, time.March, 12), true},
		{"saturday", date(2025, time.March, 15), false},
		{"sunday", date(2025, time.March, 16), false},
		{"new_years_day", date(2025, time.January, 1), false},
		{"independence_day", date(2025, time.July, 4), false},
		{"thanksgiving_2025", date(2025, time.November, 27), false},
		{"christmas", date(2025, time.December, 25), false},
		{"mlk_2025_third_monday", date(2025, time.January, 20), false},
		{"memorial_2025_last_monday", date(2025, time.May, 26), false},
		{"juneteenth", date(2025, time.June, 19), false},
		// July 4 2026 is a Saturday, observed Friday July 3.
		{"observed_friday_before_sat_holiday", date(2026, time.July, 3), false},
		{"day_after_observed_holiday", date(2026, time.July, 6), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, cal.IsBusinessDay(tc.day))
		})
	}
}

func TestCalendar_RollForward(t *testing.T) {
	cal := New(time.UTC)

	// Friday stays put.
	fri := date(2025, time.March, 14)
	assert.Equal(t, fri, cal.RollForward(fri))

	// Saturday rolls to Monday.
	sat := date(2025, time.March, 15)
	rolled := cal.RollForward(sat)
	require.Equal(t, time.Monday, rolled.Weekday())
	assert.Equal(t, 17, rolled.Day())

	// Christmas 2025 (Thursday) rolls to Friday the 26th.
	rolled = cal.RollForward(date(2025, time.December, 25))
	assert.Equal(t, 26, rolled.Day())
}

func TestCalendar_BusinessDaysBetween(t *testing.T) {
	cal := New(time.UTC)

	// Mon Mar 10 -> Mon Mar 17 2025: Tue-Fri + Mon = 5.
	from := date(2025, time.March, 10)
	to := date(2025, time.March, 17)
	assert.Equal(t, 5, cal.BusinessDaysBetween(from, to))

	// Reversed range counts zero.
	assert.Equal(t, 0, cal.BusinessDaysBetween(to, from))

	// Week containing Thanksgiving 2025 loses a day.
	from = date(2025, time.November, 24) // Monday
	to = date(2025, time.November, 28)   // Friday
	assert.Equal(t, 3, cal.BusinessDaysBetween(from, to))
}
