/*
builder.go - Aggregation of approved records into export rows

PURPOSE:
  Rolls payroll-approved timesheets and expense reports up into the three
  row shapes. Eligibility filtering happens before any grouping: records
  that are not payroll_approved (and, for billing, items that are not
  billable) never reach a row, so they cannot leak into an export through
  a formatting bug.

ERROR POLICY:
  A malformed record (dangling user, missing project, unresolvable rate)
  is skipped with a warning instead of aborting the batch. Everything
  upstream of this package surfaces errors; only the batch builder skips.

USAGE:
  b := export.NewBuilder(st, logger)
  rows, err := b.PayrollRows(ctx, engine.WeekOf(monday))

SEE ALSO:
  - rows.go: Row shapes
  - workflow/service.go: How records become payroll_approved
*/
package export

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/westend/payroll-engine/engine"
)

// Builder aggregates approved records into export rows.
type Builder struct {
	Store engine.Store
	Rates *engine.RateResolver
	Log   *zap.Logger
}

func NewBuilder(store engine.Store, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{Store: store, Rates: engine.NewRateResolver(store), Log: log}
}

// =============================================================================
// PAYROLL ROWS
// =============================================================================

// PayrollRows produces one row per employee-week whose timesheet reached
// payroll_approved, with the employee's approved expense reimbursements
// in the period folded in.
func (b *Builder) PayrollRows(ctx context.Context, period engine.Period) ([]PayrollRow, error) {
	type key struct {
		user engine.UserID
		week engine.Date
	}
	rows := make(map[key]*PayrollRow)

	sheets, err := b.approvedTimesheets(ctx, period)
	if err != nil {
		return nil, err
	}
	for _, ts := range sheets {
		u, err := b.Store.GetUser(ctx, ts.UserID)
		if err != nil {
			b.Log.Warn("skipping timesheet with dangling user",
				zap.String("timesheet_id", string(ts.ID)),
				zap.String("user_id", string(ts.UserID)),
				zap.Error(err))
			continue
		}
		k := key{ts.UserID, ts.WeekStart}
		row, ok := rows[k]
		if !ok {
			row = &PayrollRow{
				UserID: u.ID, UserName: u.Name, Department: u.Department,
				WeekStart: ts.WeekStart, GrossPay: decimal.Zero, Expenses: decimal.Zero,
			}
			rows[k] = row
		}
		row.RegularHours = row.RegularHours.Add(ts.Buckets.Regular)
		row.OvertimeHours = row.OvertimeHours.Add(ts.Buckets.Overtime)
		row.WeekendHours = row.WeekendHours.Add(ts.Buckets.Weekend)
		row.HolidayHours = row.HolidayHours.Add(ts.Buckets.Holiday)
		row.GrossPay = row.GrossPay.Add(ts.GrossPay)
	}

	// Approved reimbursements attach to the week of each item's date.
	err = b.eachApprovedExpense(ctx, period, func(u *engine.User, item engine.ExpenseItem) {
		k := key{u.ID, engine.StartOfWeek(item.Date)}
		row, ok := rows[k]
		if !ok {
			row = &PayrollRow{
				UserID: u.ID, UserName: u.Name, Department: u.Department,
				WeekStart: k.week,
				RegularHours: decimal.Zero, OvertimeHours: decimal.Zero,
				WeekendHours: decimal.Zero, HolidayHours: decimal.Zero,
				GrossPay: decimal.Zero, Expenses: decimal.Zero,
			}
			rows[k] = row
		}
		row.Expenses = row.Expenses.Add(item.Amount)
	})
	if err != nil {
		return nil, err
	}

	out := make([]PayrollRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out, nil
}

// =============================================================================
// BILLING ROWS
// =============================================================================

// BillingRows produces one client-facing row per employee-week-project.
// Time is priced at the resolved hourly rate; expense amounts include
// billable items only.
func (b *Builder) BillingRows(ctx context.Context, period engine.Period) ([]BillingRow, error) {
	type key struct {
		project engine.ProjectID
		user    engine.UserID
		week    engine.Date
	}
	rows := make(map[key]*BillingRow)

	upsert := func(ctx context.Context, pid engine.ProjectID, u *engine.User, week engine.Date) *BillingRow {
		k := key{pid, u.ID, week}
		if row, ok := rows[k]; ok {
			return row
		}
		p, err := b.Store.GetProject(ctx, pid)
		if err != nil {
			b.Log.Warn("skipping entries on unknown project",
				zap.String("project_id", string(pid)), zap.Error(err))
			return nil
		}
		c, err := b.Store.GetClient(ctx, p.ClientID)
		if err != nil {
			b.Log.Warn("skipping entries on project with unknown client",
				zap.String("project_id", string(pid)),
				zap.String("client_id", string(p.ClientID)), zap.Error(err))
			return nil
		}
		row := &BillingRow{
			ClientID: c.ID, ClientName: c.Name,
			ProjectID: p.ID, ProjectCode: p.Code,
			UserID: u.ID, UserName: u.Name, WeekStart: week,
			Hours: decimal.Zero, Billed: decimal.Zero, Expenses: decimal.Zero,
		}
		rows[k] = row
		return row
	}

	sheets, err := b.approvedTimesheets(ctx, period)
	if err != nil {
		return nil, err
	}
	for _, ts := range sheets {
		u, err := b.Store.GetUser(ctx, ts.UserID)
		if err != nil {
			b.Log.Warn("skipping timesheet with dangling user",
				zap.String("timesheet_id", string(ts.ID)), zap.Error(err))
			continue
		}
		entries, err := b.Store.ListTimeEntriesByUserAndRange(ctx, ts.UserID, ts.Week())
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			rate, err := b.Rates.Resolve(ctx, e.UserID, e.ProjectID, e.Date)
			if err != nil {
				b.Log.Warn("skipping entry with unresolvable rate",
					zap.String("entry_id", string(e.ID)),
					zap.String("project_id", string(e.ProjectID)),
					zap.String("date", e.Date.String()),
					zap.Error(err))
				continue
			}
			row := upsert(ctx, e.ProjectID, u, ts.WeekStart)
			if row == nil {
				continue
			}
			row.Hours = row.Hours.Add(e.Hours())
			row.Billed = row.Billed.Add(e.Hours().Mul(rate))
		}
	}

	err = b.eachApprovedExpense(ctx, period, func(u *engine.User, item engine.ExpenseItem) {
		if !item.Billable || item.ProjectID == nil {
			return
		}
		row := upsert(ctx, *item.ProjectID, u, engine.StartOfWeek(item.Date))
		if row == nil {
			return
		}
		row.Expenses = row.Expenses.Add(item.Amount)
	})
	if err != nil {
		return nil, err
	}

	out := make([]BillingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, z := out[i], out[j]
		if a.ClientID != z.ClientID {
			return a.ClientID < z.ClientID
		}
		if a.ProjectID != z.ProjectID {
			return a.ProjectID < z.ProjectID
		}
		if a.UserID != z.UserID {
			return a.UserID < z.UserID
		}
		return a.WeekStart.Before(z.WeekStart)
	})
	return out, nil
}

// =============================================================================
// COMPLIANCE ROWS
// =============================================================================

// ComplianceRows reports budget consumption for funded projects. Spend is
// the sum of billed time and billable expenses over the period; projects
// without a budget are omitted.
func (b *Builder) ComplianceRows(ctx context.Context, period engine.Period) ([]ComplianceRow, error) {
	billing, err := b.BillingRows(ctx, period)
	if err != nil {
		return nil, err
	}

	spend := make(map[engine.ProjectID]decimal.Decimal)
	for _, r := range billing {
		spend[r.ProjectID] = spend[r.ProjectID].Add(r.Billed).Add(r.Expenses)
	}

	out := make([]ComplianceRow, 0, len(spend))
	for pid, billed := range spend {
		p, err := b.Store.GetProject(ctx, pid)
		if err != nil {
			b.Log.Warn("skipping compliance row for unknown project",
				zap.String("project_id", string(pid)), zap.Error(err))
			continue
		}
		if p.Budget == nil {
			continue
		}
		c, err := b.Store.GetClient(ctx, p.ClientID)
		if err != nil {
			b.Log.Warn("skipping compliance row with unknown client",
				zap.String("project_id", string(pid)), zap.Error(err))
			continue
		}
		out = append(out, ComplianceRow{
			ProjectID:   p.ID,
			ProjectCode: p.Code,
			ClientName:  c.Name,
			Budget:      *p.Budget,
			Billed:      billed,
			Remaining:   p.Budget.Sub(billed),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

// =============================================================================
// ELIGIBILITY HELPERS
// =============================================================================

// approvedTimesheets lists payroll_approved timesheets whose week starts
// inside the export period. Filtering precedes all grouping.
func (b *Builder) approvedTimesheets(ctx context.Context, period engine.Period) ([]engine.Timesheet, error) {
	all, err := b.Store.ListTimesheetsByStatus(ctx, engine.StatusPayrollApproved)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, ts := range all {
		if period.Contains(ts.WeekStart) {
			out = append(out, ts)
		}
	}
	return out, nil
}

// eachApprovedExpense visits every item of a payroll_approved expense
// report whose date falls inside the export period.
func (b *Builder) eachApprovedExpense(ctx context.Context, period engine.Period, visit func(*engine.User, engine.ExpenseItem)) error {
	reports, err := b.Store.ListReportsByStatus(ctx, engine.StatusPayrollApproved)
	if err != nil {
		return err
	}
	for _, r := range reports {
		month := r.Month()
		if month.Start.After(period.End) || month.End.Before(period.Start) {
			continue
		}
		u, err := b.Store.GetUser(ctx, r.UserID)
		if err != nil {
			b.Log.Warn("skipping expense report with dangling user",
				zap.String("report_id", string(r.ID)), zap.Error(err))
			continue
		}
		items, err := b.Store.ListExpensesByUserAndRange(ctx, r.UserID, month)
		if err != nil {
			return err
		}
		for _, item := range items {
			if period.Contains(item.Date) {
				visit(u, item)
			}
		}
	}
	return nil
}
