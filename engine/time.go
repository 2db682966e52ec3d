package engine

import (
	"time"
)

// =============================================================================
// DATE - Calendar day (the engine never needs finer granularity)
// =============================================================================

// Date is a calendar day, normalized to UTC midnight.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// PERIOD - Pay periods (timesheet week, expense-report month)
// =============================================================================

// Period is an inclusive date range.
type Period struct {
	Start Date
	End   Date
}

func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day in the period in order.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// StartOfWeek returns the Monday of the week containing d.
func StartOfWeek(d Date) Date {
	offset := int(d.Weekday()-time.Monday+7) % 7
	return d.AddDays(-offset)
}

// WeekOf returns the Monday..Sunday pay period containing d.
func WeekOf(d Date) Period {
	start := StartOfWeek(d)
	return Period{Start: start, End: start.AddDays(6)}
}

// StartOfMonth returns the first day of d's month.
func StartOfMonth(d Date) Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// MonthOf returns the calendar-month period containing d.
func MonthOf(d Date) Period {
	start := StartOfMonth(d)
	end := DateOf(start.t.AddDate(0, 1, -1))
	return Period{Start: start, End: end}
}

// =============================================================================
// HOLIDAY CALENDAR - Injected, never computed here
// =============================================================================

// HolidayCalendar answers whether a date is a designated holiday.
// The calendar is supplied by the surrounding system; the engine only
// consults it for pay classification.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
}

// SetCalendar is a HolidayCalendar backed by a fixed set of dates.
type SetCalendar map[Date]struct{}

func NewSetCalendar(dates ...Date) SetCalendar {
	c := make(SetCalendar, len(dates))
	for _, d := range dates {
		c[d] = struct{}{}
	}
	return c
}

func (c SetCalendar) IsHoliday(d Date) bool {
	_, ok := c[d]
	return ok
}

// NoHolidays is the calendar used when none is configured.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool { return false }
