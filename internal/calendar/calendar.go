// Package calendar does month and day arithmetic on civil dates.
//
// Every computation happens on dates of a single civil calendar, never on
// instants, so a charge that starts at a local midnight is not shifted by
// daylight-saving transitions. Periods are half-open: start inclusive, end
// exclusive.
package calendar

import (
	"iter"
	"time"

	"cloud.google.com/go/civil"
)

// Period is a half-open range of civil dates [Start, End)
type Period struct {
	Start civil.Date
	End   civil.Date
}

// Days returns the number of days in the period
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End)
}

// IsEmpty reports whether the period contains no days
func (p Period) IsEmpty() bool {
	return !p.Start.Before(p.End)
}

// Contains reports whether d falls inside the period
func (p Period) Contains(d civil.Date) bool {
	return !d.Before(p.Start) && d.Before(p.End)
}

// Intersect returns the overlap of two periods; the result may be empty
func (p Period) Intersect(o Period) Period {
	return Period{Start: MaxDate(p.Start, o.Start), End: MinDate(p.End, o.End)}
}

// DaysBetween counts the days in [start, end). It is zero when end is not after start.
func DaysBetween(start, end civil.Date) int {
	days := end.DaysSince(start)
	if days < 0 {
		return 0
	}
	return days
}

// DaysBetweenInstants normalizes both instants to civil dates in loc and counts the days between them
func DaysBetweenInstants(start, end time.Time, loc *time.Location) int {
	return DaysBetween(DateOf(start, loc), DateOf(end, loc))
}

// DateOf returns the civil date of t in loc
func DateOf(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}

// StartOf returns the instant the civil date begins in loc
func StartOf(d civil.Date, loc *time.Location) time.Time {
	return d.In(loc)
}

// CeilDate returns the first civil date that has not started at t.
// A day that is partially elapsed counts as used.
func CeilDate(t time.Time, loc *time.Location) civil.Date {
	d := DateOf(t, loc)
	if t.Equal(d.In(loc)) {
		return d
	}
	return d.AddDays(1)
}

// AddMonths moves d by n calendar months. When the resulting month is shorter
// than d's day-of-month, the result is clamped to the month's last day.
func AddMonths(d civil.Date, n int) civil.Date {
	total := int(d.Month) - 1 + n
	year := d.Year + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := d.Day
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// DaysInMonth returns the number of days of the month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBoundaries yields months consecutive month periods starting at start.
// Period i is [AddMonths(start, i), AddMonths(start, i+1)); every period is
// anchored at start so clamping in a short month never drifts later periods.
// The sequence is a pure function of its inputs and may be ranged over again.
func MonthBoundaries(start civil.Date, months int) iter.Seq[Period] {
	return func(yield func(Period) bool) {
		for i := 0; i < months; i++ {
			p := Period{Start: AddMonths(start, i), End: AddMonths(start, i+1)}
			if !yield(p) {
				return
			}
		}
	}
}

// DiffMonthsCeil returns the number of month periods anchored at start needed
// to cover [start, end). It is zero for an empty range.
func DiffMonthsCeil(start, end civil.Date) int {
	if !start.Before(end) {
		return 0
	}
	months := (end.Year-start.Year)*12 + int(end.Month) - int(start.Month)
	if months < 0 {
		months = 0
	}
	// step back when the estimate already overshoots, then forward until covered
	for months > 0 && !AddMonths(start, months-1).Before(end) {
		months--
	}
	for AddMonths(start, months).Before(end) {
		months++
	}
	return months
}

// EndOfPeriod returns the last instant of an n-month period that starts at start:
// 23:59:59.999999 local time on the day before AddMonths(start, months).
func EndOfPeriod(start time.Time, months int, loc *time.Location) time.Time {
	end := AddMonths(DateOf(start, loc), months)
	return end.In(loc).Add(-time.Microsecond)
}

// PreviousDayEnd returns the last instant of the day before t
func PreviousDayEnd(t time.Time, loc *time.Location) time.Time {
	return DateOf(t, loc).In(loc).Add(-time.Microsecond)
}

// ExclusiveEnd converts an inclusive end instant into the first civil date after the range
func ExclusiveEnd(end time.Time, loc *time.Location) civil.Date {
	return CeilDate(end, loc)
}

// MinDate returns the earlier of two dates
func MinDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of two dates
func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// PeriodContaining returns the month period anchored at start that contains d.
// Dates before start resolve to the first period.
func PeriodContaining(start, d civil.Date) Period {
	i := DiffMonthsCeil(start, d.AddDays(1)) - 1
	if i < 0 {
		i = 0
	}
	return Period{Start: AddMonths(start, i), End: AddMonths(start, i+1)}
}
