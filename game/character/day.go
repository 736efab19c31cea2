package character

import (
	"fmt"
	"time"
)

// Day is a calendar date with no time of day. The zero Day means "never".
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// DayFromTime reads a stored date column. Drivers return midnight in UTC (or
// in the connection location), so the wall-clock date is taken as is.
func DayFromTime(t *time.Time) Day {
	if t == nil || t.IsZero() {
		return Day{}
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) IsZero() bool { return d == Day{} }

func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Time returns midnight UTC of d, the form stored in date columns.
// The zero Day maps to nil.
func (d Day) Time() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return &t
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
