/*
calculator.go - Hour classification and gross pay

PURPOSE:
  Classifies a user's worked time into regular/overtime/weekend/holiday
  buckets and computes gross pay per bucket. Deterministic and
  side-effect-free so it can be unit-tested against literal fixtures.

CLASSIFICATION RULES:
  - Holiday date (per the injected calendar): holiday bucket, x2.0.
    Holiday takes precedence over weekend when both apply.
  - Saturday/Sunday: weekend bucket, x2.0, regardless of daily total.
  - Regular weekday: first 8 hours regular (x1.0), the remainder
    overtime (x1.5). Overtime is computed per day, not per week.

EDGE CASES:
  - Zero-hour days produce a zero-valued record, not an omitted one:
    weekly aggregates need every day present.
  - Negative minutes or entries dated outside the requested day fail with
    InvalidHoursError.

SEE ALSO:
  - rates.go: Where the hourly rate comes from
  - types.go: HourBuckets
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY POLICY - Multipliers and the daily regular-hours cap
// =============================================================================

// Policy holds the classification knobs. Defaults reproduce the agency's
// standing policy; configuration may override them.
type Policy struct {
	RegularHoursPerDay decimal.Decimal
	OvertimeMultiplier decimal.Decimal
	WeekendMultiplier  decimal.Decimal
	HolidayMultiplier  decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		RegularHoursPerDay: decimal.NewFromInt(8),
		OvertimeMultiplier: decimal.RequireFromString("1.5"),
		WeekendMultiplier:  decimal.NewFromInt(2),
		HolidayMultiplier:  decimal.NewFromInt(2),
	}
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator classifies hours and prices them. Safe for concurrent use.
type Calculator struct {
	Policy   Policy
	Calendar HolidayCalendar
}

func NewCalculator(calendar HolidayCalendar) *Calculator {
	if calendar == nil {
		calendar = NoHolidays{}
	}
	return &Calculator{Policy: DefaultPolicy(), Calendar: calendar}
}

// DayPay is the calculated result for one user-day.
type DayPay struct {
	Date     Date
	Buckets  HourBuckets
	GrossPay decimal.Decimal
}

// WeekPay is the roll-up for a timesheet week.
type WeekPay struct {
	Week     Period
	Days     []DayPay
	Buckets  HourBuckets
	GrossPay decimal.Decimal
}

// RateFunc supplies the hourly rate for a project on a date. Usually
// (*RateResolver).Resolve curried over the user.
type RateFunc func(projectID ProjectID, date Date) (decimal.Decimal, error)

// DailyPay calculates one user-day at a single hourly rate.
// All entries must be dated on day; classification does not depend on the
// order of entries within the day.
func (c *Calculator) DailyPay(day Date, entries []TimeEntry, rate decimal.Decimal) (DayPay, error) {
	group := ratedGroup{rate: rate, entries: entries}
	return c.dailyPay(day, []ratedGroup{group})
}

// WeeklyPay calculates every day of the week, resolving rates per project.
// Days without entries appear as zero-valued records.
func (c *Calculator) WeeklyPay(week Period, entries []TimeEntry, rate RateFunc) (WeekPay, error) {
	byDay := make(map[Date][]TimeEntry)
	for _, e := range entries {
		if !week.Contains(e.Date) {
			return WeekPay{}, &InvalidHoursError{EntryID: e.ID, Minutes: e.Minutes, Reason: "entry outside pay period " + week.String()}
		}
		byDay[e.Date] = append(byDay[e.Date], e)
	}

	result := WeekPay{Week: week, Buckets: ZeroBuckets(), GrossPay: decimal.Zero}
	for _, day := range week.Days() {
		groups, err := groupByProject(byDay[day], day, rate)
		if err != nil {
			return WeekPay{}, err
		}
		dp, err := c.dailyPay(day, groups)
		if err != nil {
			return WeekPay{}, err
		}
		result.Days = append(result.Days, dp)
		result.Buckets = result.Buckets.Add(dp.Buckets)
		result.GrossPay = result.GrossPay.Add(dp.GrossPay)
	}
	return result, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// ratedGroup is a day's entries sharing one hourly rate (one project).
type ratedGroup struct {
	rate    decimal.Decimal
	entries []TimeEntry
}

func (g ratedGroup) hours() decimal.Decimal {
	minutes := 0
	for _, e := range g.entries {
		minutes += e.Minutes
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

// groupByProject partitions a day's entries by project and resolves one
// rate per group. Groups are ordered by project ID so the weekday
// regular/overtime split is deterministic.
func groupByProject(entries []TimeEntry, day Date, rate RateFunc) ([]ratedGroup, error) {
	byProject := make(map[ProjectID][]TimeEntry)
	for _, e := range entries {
		byProject[e.ProjectID] = append(byProject[e.ProjectID], e)
	}

	ids := make([]ProjectID, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groups := make([]ratedGroup, 0, len(ids))
	for _, id := range ids {
		r, err := rate(id, day)
		if err != nil {
			return nil, err
		}
		groups = append(groups, ratedGroup{rate: r, entries: byProject[id]})
	}
	return groups, nil
}

func (c *Calculator) dailyPay(day Date, groups []ratedGroup) (DayPay, error) {
	for _, g := range groups {
		for _, e := range g.entries {
			if e.Minutes < 0 {
				return DayPay{}, &InvalidHoursError{EntryID: e.ID, Minutes: e.Minutes, Reason: "negative duration"}
			}
			if !e.Date.Equal(day) {
				return DayPay{}, &InvalidHoursError{EntryID: e.ID, Minutes: e.Minutes, Reason: "entry dated " + e.Date.String() + ", expected " + day.String()}
			}
		}
	}

	dp := DayPay{Date: day, Buckets: ZeroBuckets(), GrossPay: decimal.Zero}

	// Holiday beats weekend; both price at their own multiplier with no
	// daily cap.
	if c.Calendar.IsHoliday(day) {
		for _, g := range groups {
			h := g.hours()
			dp.Buckets.Holiday = dp.Buckets.Holiday.Add(h)
			dp.GrossPay = dp.GrossPay.Add(h.Mul(g.rate).Mul(c.Policy.HolidayMultiplier))
		}
		return dp, nil
	}
	if day.IsWeekend() {
		for _, g := range groups {
			h := g.hours()
			dp.Buckets.Weekend = dp.Buckets.Weekend.Add(h)
			dp.GrossPay = dp.GrossPay.Add(h.Mul(g.rate).Mul(c.Policy.WeekendMultiplier))
		}
		return dp, nil
	}

	// Weekday: regular up to the daily cap, overtime beyond. The cap is
	// consumed across groups in their deterministic order; bucket totals
	// are independent of entry order within the day.
	remaining := c.Policy.RegularHoursPerDay
	for _, g := range groups {
		h := g.hours()
		reg := decimal.Min(h, remaining)
		ot := h.Sub(reg)
		remaining = remaining.Sub(reg)

		dp.Buckets.Regular = dp.Buckets.Regular.Add(reg)
		dp.Buckets.Overtime = dp.Buckets.Overtime.Add(ot)
		dp.GrossPay = dp.GrossPay.
			Add(reg.Mul(g.rate)).
			Add(ot.Mul(g.rate).Mul(c.Policy.OvertimeMultiplier))
	}
	return dp, nil
}
