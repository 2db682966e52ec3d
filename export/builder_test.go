package export_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/engine/store"
	"github.com/westend/payroll-engine/export"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	weekStart = engine.NewDate(2025, 3, 10) // Monday
	week      = engine.WeekOf(weekStart)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newExportFixture seeds one approved and one merely submitted timesheet
// in the same week, a budgeted project, and a mix of expense items.
func newExportFixture(t *testing.T) (*export.Builder, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()

	budget := d("10000")
	mem.PutClient(engine.Client{ID: "client-1", Name: "Acme"})
	mem.PutProject(engine.Project{ID: "proj-1", ClientID: "client-1", Name: "Rollout", Code: "ACM-1", Status: engine.ProjectActive, Budget: &budget})
	mem.PutUser(engine.User{ID: "emp-1", Name: "Erin", Department: "Field", Role: engine.RoleEmployee, Active: true})
	mem.PutUser(engine.User{ID: "emp-2", Name: "Sam", Department: "Field", Role: engine.RoleEmployee, Active: true})

	pid := engine.ProjectID("proj-1")
	mem.PutRate(engine.RateEntry{
		ID: "rate-proj", ProjectID: &pid,
		HourlyRate: d("50"), EffectiveFrom: engine.NewDate(2025, 1, 1),
	})

	// emp-1: 16h across the week, fully approved.
	mem.PutTimeEntry(engine.TimeEntry{ID: "e1", UserID: "emp-1", ProjectID: "proj-1", Date: weekStart, Minutes: 480})
	mem.PutTimeEntry(engine.TimeEntry{ID: "e2", UserID: "emp-1", ProjectID: "proj-1", Date: weekStart.AddDays(1), Minutes: 480})
	require.NoError(t, mem.SaveTimesheet(context.Background(), &engine.Timesheet{
		ID: "ts-approved", UserID: "emp-1", WeekStart: weekStart,
		Status:  engine.StatusPayrollApproved,
		Buckets: engine.HourBuckets{Regular: d("16"), Overtime: decimal.Zero, Weekend: decimal.Zero, Holiday: decimal.Zero},
		GrossPay: d("800"),
	}))

	// emp-2: same week, still waiting on the client gate.
	mem.PutTimeEntry(engine.TimeEntry{ID: "e3", UserID: "emp-2", ProjectID: "proj-1", Date: weekStart, Minutes: 480})
	require.NoError(t, mem.SaveTimesheet(context.Background(), &engine.Timesheet{
		ID: "ts-pending", UserID: "emp-2", WeekStart: weekStart,
		Status:  engine.StatusSubmitted,
		Buckets: engine.HourBuckets{Regular: d("8"), Overtime: decimal.Zero, Weekend: decimal.Zero, Holiday: decimal.Zero},
		GrossPay: d("400"),
	}))

	return export.NewBuilder(mem, nil), mem
}

func approveExpenses(t *testing.T, mem *store.Memory) {
	t.Helper()
	pid := engine.ProjectID("proj-1")
	mem.PutExpense(engine.ExpenseItem{
		ID: "x-billable", UserID: "emp-1", ProjectID: &pid, CategoryID: "travel",
		Date: weekStart.AddDays(2), Amount: d("120.50"), Billable: true,
	})
	mem.PutExpense(engine.ExpenseItem{
		ID: "x-overhead", UserID: "emp-1", CategoryID: "office",
		Date: weekStart.AddDays(2), Amount: d("30"), Billable: false,
	})
	require.NoError(t, mem.SaveReport(context.Background(), &engine.ExpenseReport{
		ID: "rep-approved", UserID: "emp-1", MonthStart: engine.NewDate(2025, 3, 1),
		Status: engine.StatusPayrollApproved, Total: d("150.50"),
	}))
}

// =============================================================================
// ELIGIBILITY TESTS
// =============================================================================

func TestPayrollRows_OnlyApprovedRecords(t *testing.T) {
	// GIVEN: An approved and a submitted timesheet in the same week
	// WHEN: Building payroll rows
	// THEN: Only the approved sheet produces a row

	b, _ := newExportFixture(t)

	rows, err := b.PayrollRows(context.Background(), week)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, engine.UserID("emp-1"), rows[0].UserID)
	assert.True(t, rows[0].GrossPay.Equal(d("800")), "got %s", rows[0].GrossPay)
	assert.True(t, rows[0].RegularHours.Equal(d("16")))
}

func TestPayrollRows_FoldsInApprovedExpenses(t *testing.T) {
	// GIVEN: An approved expense report with two items in the week
	// WHEN: Building payroll rows
	// THEN: The reimbursement column carries both items, billable or not

	b, mem := newExportFixture(t)
	approveExpenses(t, mem)

	rows, err := b.PayrollRows(context.Background(), week)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Expenses.Equal(d("150.50")), "got %s", rows[0].Expenses)
}

func TestPayrollRows_OutsidePeriodExcluded(t *testing.T) {
	// GIVEN: Only the week of March 10 holds approved work
	// WHEN: Building rows for the following week
	// THEN: No rows

	b, _ := newExportFixture(t)

	rows, err := b.PayrollRows(context.Background(), engine.WeekOf(weekStart.AddDays(7)))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// BILLING TESTS
// =============================================================================

func TestBillingRows_PricedAndBillableOnly(t *testing.T) {
	// GIVEN: 16 approved hours at $50/h plus one billable and one overhead item
	// WHEN: Building billing rows
	// THEN: One project-coded row; time billed at rate; overhead item excluded

	b, mem := newExportFixture(t)
	approveExpenses(t, mem)

	rows, err := b.BillingRows(context.Background(), week)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "ACM-1", row.ProjectCode)
	assert.Equal(t, "Acme", row.ClientName)
	assert.True(t, row.Hours.Equal(d("16")), "got %s", row.Hours)
	assert.True(t, row.Billed.Equal(d("800")), "got %s", row.Billed)
	assert.True(t, row.Expenses.Equal(d("120.50")), "overhead must not be billed, got %s", row.Expenses)
}

// =============================================================================
// COMPLIANCE TESTS
// =============================================================================

func TestComplianceRows_RemainingBudget(t *testing.T) {
	// GIVEN: A $10000 project with $800 billed time and $120.50 billable expenses
	// WHEN: Building compliance rows
	// THEN: remaining == budget - billed

	b, mem := newExportFixture(t)
	approveExpenses(t, mem)

	rows, err := b.ComplianceRows(context.Background(), week)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Billed.Equal(d("920.50")), "got %s", rows[0].Billed)
	assert.True(t, rows[0].Remaining.Equal(d("9079.50")), "got %s", rows[0].Remaining)
}

func TestComplianceRows_UnfundedProjectOmitted(t *testing.T) {
	// GIVEN: A second project without a budget and with approved hours
	// WHEN: Building compliance rows
	// THEN: The unfunded project produces no row

	b, mem := newExportFixture(t)
	mem.PutProject(engine.Project{ID: "proj-2", ClientID: "client-1", Name: "Support", Code: "ACM-2", Status: engine.ProjectActive})
	pid := engine.ProjectID("proj-2")
	mem.PutRate(engine.RateEntry{ID: "rate-2", ProjectID: &pid, HourlyRate: d("40"), EffectiveFrom: engine.NewDate(2025, 1, 1)})
	mem.PutTimeEntry(engine.TimeEntry{ID: "e9", UserID: "emp-1", ProjectID: "proj-2", Date: weekStart.AddDays(3), Minutes: 240})

	rows, err := b.ComplianceRows(context.Background(), week)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, engine.ProjectID("proj-1"), rows[0].ProjectID)
}

// =============================================================================
// SERIALIZATION TESTS
// =============================================================================

func TestWriteCSV_HeaderAndRecords(t *testing.T) {
	// GIVEN: One payroll row
	// WHEN: Writing CSV
	// THEN: Header line plus one record, amounts at two decimals

	b, _ := newExportFixture(t)
	rows, err := b.PayrollRows(context.Background(), week)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "user_id,user_name"))
	assert.Contains(t, lines[1], "800.00")
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	// GIVEN: No eligible rows
	// WHEN: Writing JSON
	// THEN: An empty array, not null

	var buf bytes.Buffer
	require.NoError(t, export.WriteJSON(&buf, []export.PayrollRow(nil)))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestWriteWorkbook_ThreeSheets(t *testing.T) {
	// GIVEN: Built rows of all three shapes
	// WHEN: Writing the workbook
	// THEN: A non-empty xlsx payload is produced

	b, mem := newExportFixture(t)
	approveExpenses(t, mem)
	ctx := context.Background()

	payroll, err := b.PayrollRows(ctx, week)
	require.NoError(t, err)
	billing, err := b.BillingRows(ctx, week)
	require.NoError(t, err)
	compliance, err := b.ComplianceRows(ctx, week)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, payroll, billing, compliance))
	assert.Greater(t, buf.Len(), 0)
}
