package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func helsinki(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   civil.Date
		n    int
		want civil.Date
	}{
		{"plain", date(2024, 3, 15), 1, date(2024, 4, 15)},
		{"clamp to leap february", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"clamp to february", date(2023, 1, 31), 1, date(2023, 2, 28)},
		{"clamp to thirty day month", date(2024, 3, 31), 1, date(2024, 4, 30)},
		{"year rollover", date(2024, 11, 30), 3, date(2025, 2, 28)},
		{"twelve months", date(2024, 2, 29), 12, date(2025, 2, 28)},
		{"negative", date(2024, 3, 31), -1, date(2024, 2, 29)},
		{"negative across year", date(2024, 1, 15), -2, date(2023, 11, 15)},
		{"zero", date(2024, 5, 5), 0, date(2024, 5, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.in, tt.n))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 30, DaysBetween(date(2024, 4, 1), date(2024, 5, 1)))
	assert.Equal(t, 366, DaysBetween(date(2024, 1, 1), date(2025, 1, 1)))
	assert.Equal(t, 0, DaysBetween(date(2024, 4, 1), date(2024, 4, 1)))
	assert.Equal(t, 0, DaysBetween(date(2024, 4, 2), date(2024, 4, 1)))
}

func TestDaysBetweenInstantsAcrossDST(t *testing.T) {
	loc := helsinki(t)

	// clocks move forward on 2025-03-30 and back on 2025-10-26 in Helsinki
	spring := DaysBetweenInstants(
		time.Date(2025, 3, 29, 0, 0, 0, 0, loc),
		time.Date(2025, 3, 31, 0, 0, 0, 0, loc),
		loc,
	)
	assert.Equal(t, 2, spring)

	autumn := DaysBetweenInstants(
		time.Date(2025, 10, 1, 0, 0, 0, 0, loc),
		time.Date(2025, 11, 1, 0, 0, 0, 0, loc),
		loc,
	)
	assert.Equal(t, 31, autumn)
}

func TestDateOfUsesCivilTimezone(t *testing.T) {
	loc := helsinki(t)
	// 22:30 UTC on the 31st is already the 1st in Helsinki
	instant := time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, date(2024, 2, 1), DateOf(instant, loc))
}

func TestMonthBoundaries(t *testing.T) {
	var got []Period
	for p := range MonthBoundaries(date(2024, 1, 31), 3) {
		got = append(got, p)
	}
	require.Len(t, got, 3)
	assert.Equal(t, Period{date(2024, 1, 31), date(2024, 2, 29)}, got[0])
	assert.Equal(t, Period{date(2024, 2, 29), date(2024, 3, 31)}, got[1])
	assert.Equal(t, Period{date(2024, 3, 31), date(2024, 4, 30)}, got[2])

	// restartable
	count := 0
	for range MonthBoundaries(date(2024, 1, 31), 3) {
		count++
	}
	assert.Equal(t, 3, count)

	// early break stops the sequence
	count = 0
	for range MonthBoundaries(date(2024, 1, 1), 12) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestDiffMonthsCeil(t *testing.T) {
	tests := []struct {
		name       string
		start, end civil.Date
		want       int
	}{
		{"empty", date(2024, 1, 1), date(2024, 1, 1), 0},
		{"reversed", date(2024, 2, 1), date(2024, 1, 1), 0},
		{"one day", date(2024, 1, 1), date(2024, 1, 2), 1},
		{"exact month", date(2024, 1, 15), date(2024, 2, 15), 1},
		{"just over", date(2024, 1, 15), date(2024, 2, 16), 2},
		{"clamped month end", date(2024, 1, 31), date(2024, 2, 29), 1},
		{"year", date(2024, 3, 1), date(2025, 3, 1), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiffMonthsCeil(tt.start, tt.end))
		})
	}
}

func TestEndOfPeriod(t *testing.T) {
	loc := helsinki(t)
	start := time.Date(2024, 1, 15, 9, 30, 0, 0, loc)

	end := EndOfPeriod(start, 1, loc)
	assert.True(t, time.Date(2024, 2, 14, 23, 59, 59, 999999000, loc).Equal(end), end)
	assert.Equal(t, date(2024, 2, 15), ExclusiveEnd(end, loc))
}

func TestCeilDate(t *testing.T) {
	loc := helsinki(t)
	assert.Equal(t, date(2024, 5, 10), CeilDate(time.Date(2024, 5, 10, 0, 0, 0, 0, loc), loc))
	assert.Equal(t, date(2024, 5, 11), CeilDate(time.Date(2024, 5, 10, 0, 0, 1, 0, loc), loc))
}

func TestPreviousDayEnd(t *testing.T) {
	loc := helsinki(t)
	got := PreviousDayEnd(time.Date(2024, 5, 10, 13, 0, 0, 0, loc), loc)
	assert.True(t, time.Date(2024, 5, 9, 23, 59, 59, 999999000, loc).Equal(got), got)
}

func TestPeriodIntersect(t *testing.T) {
	a := Period{date(2024, 1, 1), date(2024, 2, 1)}
	b := Period{date(2024, 1, 20), date(2024, 3, 1)}

	got := a.Intersect(b)
	assert.Equal(t, Period{date(2024, 1, 20), date(2024, 2, 1)}, got)
	assert.Equal(t, 12, got.Days())

	disjoint := a.Intersect(Period{date(2024, 3, 1), date(2024, 4, 1)})
	assert.True(t, disjoint.IsEmpty())
	assert.Equal(t, 0, disjoint.Days())
	assert.True(t, a.Contains(date(2024, 1, 31)))
	assert.False(t, a.Contains(date(2024, 2, 1)))
}

func TestPeriodContaining(t *testing.T) {
	start := date(2025, time.January, 31)

	tests := []struct {
		name string
		d    civil.Date
		want Period
	}{
		{"first day", start, Period{Start: start, End: date(2025, time.February, 28)}},
		{"clamped boundary", date(2025, time.February, 28), Period{Start: date(2025, time.February, 28), End: date(2025, time.March, 31)}},
		{"mid third period", date(2025, time.April, 15), Period{Start: date(2025, time.March, 31), End: date(2025, time.April, 30)}},
		{"before start", date(2025, time.January, 1), Period{Start: start, End: date(2025, time.February, 28)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodContaining(start, tt.d))
		})
	}
}
