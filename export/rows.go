/*
rows.go - Export row shapes

PURPOSE:
  The three flat row shapes produced by the aggregation builder:

    PayrollRow    - per employee per week, bucketed hours + gross pay,
                    consumed by the EOR payroll upload
    BillingRow    - per client/project/employee/week, client-facing and
                    project-coded, billable amounts only
    ComplianceRow - per funded project, budget vs. billed with the
                    remaining budget computed as budget - billed

  Rows are plain records: format-agnostic internally, serialized by the
  csv/json/xlsx adapters in this package.

SEE ALSO:
  - builder.go: Eligibility filtering and grouping
  - csv.go, xlsx.go: Serialization adapters
*/
package export

import (
	"github.com/shopspring/decimal"

	"github.com/westend/payroll-engine/engine"
)

// Row is any export record that can state its own tabular form.
type Row interface {
	Header() []string
	Record() []string
}

// =============================================================================
// PAYROLL ROW
// =============================================================================

// PayrollRow is one employee-week of approved hours and pay, plus the
// employee's approved expense reimbursements falling in the period.
type PayrollRow struct {
	UserID        engine.UserID   `json:"user_id"`
	UserName      string          `json:"user_name"`
	Department    string          `json:"department"`
	WeekStart     engine.Date     `json:"week_start"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	WeekendHours  decimal.Decimal `json:"weekend_hours"`
	HolidayHours  decimal.Decimal `json:"holiday_hours"`
	GrossPay      decimal.Decimal `json:"gross_pay"`
	Expenses      decimal.Decimal `json:"expenses"`
}

func (PayrollRow) Header() []string {
	return []string{
		"user_id", "user_name", "department", "week_start",
		"regular_hours", "overtime_hours", "weekend_hours", "holiday_hours",
		"gross_pay", "expenses",
	}
}

func (r PayrollRow) Record() []string {
	return []string{
		string(r.UserID), r.UserName, r.Department, r.WeekStart.String(),
		r.RegularHours.String(), r.OvertimeHours.String(),
		r.WeekendHours.String(), r.HolidayHours.String(),
		r.GrossPay.StringFixed(2), r.Expenses.StringFixed(2),
	}
}

// =============================================================================
// BILLING ROW
// =============================================================================

// BillingRow is one employee-week on one project, priced for the client.
// Expenses include billable items only.
type BillingRow struct {
	ClientID    engine.ClientID  `json:"client_id"`
	ClientName  string           `json:"client_name"`
	ProjectID   engine.ProjectID `json:"project_id"`
	ProjectCode string           `json:"project_code"`
	UserID      engine.UserID    `json:"user_id"`
	UserName    string           `json:"user_name"`
	WeekStart   engine.Date      `json:"week_start"`
	Hours       decimal.Decimal  `json:"hours"`
	Billed      decimal.Decimal  `json:"billed"`
	Expenses    decimal.Decimal  `json:"expenses"`
}

func (BillingRow) Header() []string {
	return []string{
		"client_id", "client_name", "project_id", "project_code",
		"user_id", "user_name", "week_start", "hours", "billed", "expenses",
	}
}

func (r BillingRow) Record() []string {
	return []string{
		string(r.ClientID), r.ClientName, string(r.ProjectID), r.ProjectCode,
		string(r.UserID), r.UserName, r.WeekStart.String(),
		r.Hours.String(), r.Billed.StringFixed(2), r.Expenses.StringFixed(2),
	}
}

// =============================================================================
// COMPLIANCE ROW
// =============================================================================

// ComplianceRow tracks budget consumption for one funded project over the
// export period. Projects without a budget do not produce a row.
type ComplianceRow struct {
	ProjectID   engine.ProjectID `json:"project_id"`
	ProjectCode string           `json:"project_code"`
	ClientName  string           `json:"client_name"`
	Budget      decimal.Decimal  `json:"budget"`
	Billed      decimal.Decimal  `json:"billed"`
	Remaining   decimal.Decimal  `json:"remaining"`
}

func (ComplianceRow) Header() []string {
	return []string{"project_id", "project_code", "client_name", "budget", "billed", "remaining"}
}

func (r ComplianceRow) Record() []string {
	return []string{
		string(r.ProjectID), r.ProjectCode, r.ClientName,
		r.Budget.StringFixed(2), r.Billed.StringFixed(2), r.Remaining.StringFixed(2),
	}
}
