package workflow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/engine/store"
	"github.com/westend/payroll-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	empID      = engine.UserID("emp-1")
	approverID = engine.UserID("approver-1")
	payrollID  = engine.UserID("payroll-1")
	clientID   = engine.ClientID("client-1")
	projectID  = engine.ProjectID("proj-1")
)

// newTestService seeds a memory store with one client, one project, one
// employee with a $50/h project rate, a client approver for that client,
// and a payroll user.
func newTestService(t *testing.T) (*workflow.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()

	mem.PutClient(engine.Client{ID: clientID, Name: "Acme"})
	mem.PutProject(engine.Project{ID: projectID, ClientID: clientID, Name: "Rollout", Code: "ACM-1", Status: engine.ProjectActive})
	mem.PutUser(engine.User{ID: empID, Name: "Erin", Role: engine.RoleEmployee, Active: true})
	mem.PutUser(engine.User{ID: approverID, Name: "Casey", Role: engine.RoleClientApprover, ClientID: clientID, Active: true})
	mem.PutUser(engine.User{ID: payrollID, Name: "Pat", Role: engine.RolePayroll, Active: true})

	uid := empID
	pid := projectID
	mem.PutRate(engine.RateEntry{
		ID:            "rate-1",
		UserID:        &uid,
		ProjectID:     &pid,
		HourlyRate:    decimal.RequireFromString("50"),
		EffectiveFrom: engine.NewDate(2025, 1, 1),
	})

	svc := workflow.NewService(mem, engine.NewCalculator(engine.NoHolidays{}))
	return svc, mem
}

// week of Mon 2025-03-10.
var monday = engine.NewDate(2025, 3, 10)

func seedWeek(mem *store.Memory, minutesByDay map[int]int) {
	i := 0
	for offset, minutes := range minutesByDay {
		i++
		mem.PutTimeEntry(engine.TimeEntry{
			ID:        engine.EntryID(string(rune('a' + i))),
			UserID:    empID,
			ProjectID: projectID,
			Date:      monday.AddDays(offset),
			Minutes:   minutes,
		})
	}
}

func draftTimesheet(t *testing.T, svc *workflow.Service) *engine.Timesheet {
	t.Helper()
	ts, err := svc.CreateTimesheet(context.Background(), empID, monday)
	require.NoError(t, err)
	require.Equal(t, engine.StatusDraft, ts.Status)
	return ts
}

func submittedTimesheet(t *testing.T, svc *workflow.Service, mem *store.Memory) *engine.Timesheet {
	t.Helper()
	seedWeek(mem, map[int]int{0: 480, 1: 480}) // 8h Mon + 8h Tue
	ts := draftTimesheet(t, svc)
	ts, err := svc.SubmitTimesheet(context.Background(), ts.ID, empID)
	require.NoError(t, err)
	return ts
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmitTimesheet_ComputesTotals(t *testing.T) {
	// GIVEN: A draft with 8h Mon and 8h Tue at $50/h
	// WHEN: The owner submits
	// THEN: Buckets and gross pay are derived, version bumps, Approval row appended

	svc, mem := newTestService(t)
	ctx := context.Background()

	ts := submittedTimesheet(t, svc, mem)

	assert.Equal(t, engine.StatusSubmitted, ts.Status)
	assert.Equal(t, 1, ts.Version)
	assert.True(t, ts.Buckets.Regular.Equal(decimal.RequireFromString("16")), "got %s", ts.Buckets.Regular)
	assert.True(t, ts.GrossPay.Equal(decimal.RequireFromString("800")), "got %s", ts.GrossPay)

	approvals, err := mem.ListApprovalsByTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, empID, approvals[0].ApproverID)
	assert.Equal(t, engine.StatusSubmitted, approvals[0].Status)
}

func TestSubmitTimesheet_EmptySheetRejected(t *testing.T) {
	// GIVEN: A draft with no time entries
	// WHEN: The owner submits
	// THEN: ValidationError, status unchanged

	svc, mem := newTestService(t)
	ctx := context.Background()

	ts := draftTimesheet(t, svc)
	_, err := svc.SubmitTimesheet(ctx, ts.ID, empID)

	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "entries", verr.Field)

	got, err := mem.GetTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusDraft, got.Status)
}

func TestSubmitTimesheet_NonOwnerRefused(t *testing.T) {
	// GIVEN: A draft owned by emp-1
	// WHEN: The payroll user tries to submit it
	// THEN: InvalidTransitionError

	svc, mem := newTestService(t)
	seedWeek(mem, map[int]int{0: 480})
	ts := draftTimesheet(t, svc)

	_, err := svc.SubmitTimesheet(context.Background(), ts.ID, payrollID)

	var terr *engine.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Reason, "owner")
}

func TestSubmitTimesheet_Idempotent(t *testing.T) {
	// GIVEN: An already-submitted timesheet
	// WHEN: Submitting again
	// THEN: No error, no second Approval row, version unchanged

	svc, mem := newTestService(t)
	ctx := context.Background()
	ts := submittedTimesheet(t, svc, mem)

	again, err := svc.SubmitTimesheet(ctx, ts.ID, empID)
	require.NoError(t, err)
	assert.Equal(t, ts.Version, again.Version)

	approvals, err := mem.ListApprovalsByTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1, "idempotent submit must not append a second row")
}

// =============================================================================
// APPROVAL CHAIN TESTS
// =============================================================================

func TestApprovalChain_HappyPath(t *testing.T) {
	// GIVEN: A submitted timesheet
	// WHEN: Client approves, then payroll approves
	// THEN: Terminal payroll_approved with a full audit trail

	svc, mem := newTestService(t)
	ctx := context.Background()
	ts := submittedTimesheet(t, svc, mem)

	ts, err := svc.ClientApproveTimesheet(ctx, ts.ID, approverID, "looks right")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusClientApproved, ts.Status)

	ts, err = svc.PayrollApproveTimesheet(ctx, ts.ID, payrollID, "")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPayrollApproved, ts.Status)
	assert.True(t, ts.Status.Terminal())
	assert.Equal(t, 3, ts.Version)

	approvals, err := mem.ListApprovalsByTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 3)
	assert.Equal(t, "looks right", approvals[1].Comment)
}

func TestClientApprove_WrongRoleRefused(t *testing.T) {
	// GIVEN: A submitted timesheet
	// WHEN: The payroll user attempts the client gate
	// THEN: Refused with a role reason

	svc, mem := newTestService(t)
	ts := submittedTimesheet(t, svc, mem)

	_, err := svc.ClientApproveTimesheet(context.Background(), ts.ID, payrollID, "")

	var terr *engine.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Reason, "client_approver")
}

func TestClientApprove_WrongClientRefused(t *testing.T) {
	// GIVEN: An approver scoped to a different client
	// WHEN: They attempt to approve a sheet billed to client-1's project
	// THEN: Refused with an authorization reason

	svc, mem := newTestService(t)
	mem.PutUser(engine.User{ID: "approver-2", Role: engine.RoleClientApprover, ClientID: "client-2", Active: true})
	ts := submittedTimesheet(t, svc, mem)

	_, err := svc.ClientApproveTimesheet(context.Background(), ts.ID, "approver-2", "")

	var terr *engine.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Reason, "not authorized")
}

func TestPayrollApprove_CannotSkipClientGate(t *testing.T) {
	// GIVEN: A merely submitted timesheet
	// WHEN: Payroll attempts final approval
	// THEN: Refused; the chain order is fixed

	svc, mem := newTestService(t)
	ts := submittedTimesheet(t, svc, mem)

	_, err := svc.PayrollApproveTimesheet(context.Background(), ts.ID, payrollID, "")

	var terr *engine.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, engine.StatusSubmitted, terr.From)
}

// =============================================================================
// REJECTION AND RESUBMISSION TESTS
// =============================================================================

func TestReject_RequiresReason(t *testing.T) {
	// GIVEN: A submitted timesheet
	// WHEN: Rejecting with a blank reason
	// THEN: ValidationError before any state change

	svc, mem := newTestService(t)
	ctx := context.Background()
	ts := submittedTimesheet(t, svc, mem)

	_, err := svc.RejectTimesheet(ctx, ts.ID, approverID, "   ")

	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	got, err := mem.GetTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSubmitted, got.Status, "blank reason must not mutate")
}

func TestReject_ClientApprovedOnlyByPayroll(t *testing.T) {
	// GIVEN: A client-approved timesheet
	// WHEN: The client approver tries to reject it
	// THEN: Refused; after the client gate only payroll may send it back

	svc, mem := newTestService(t)
	ctx := context.Background()
	ts := submittedTimesheet(t, svc, mem)
	ts, err := svc.ClientApproveTimesheet(ctx, ts.ID, approverID, "")
	require.NoError(t, err)

	_, err = svc.RejectTimesheet(ctx, ts.ID, approverID, "second thoughts")
	var terr *engine.InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	ts, err = svc.RejectTimesheet(ctx, ts.ID, payrollID, "rate mismatch")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusRejected, ts.Status)
}

func TestResubmit_RecalculatesTotals(t *testing.T) {
	// GIVEN: A rejected timesheet whose owner then logged two more hours
	// WHEN: The owner resubmits
	// THEN: Totals reflect the corrected entries and status is submitted again

	svc, mem := newTestService(t)
	ctx := context.Background()
	ts := submittedTimesheet(t, svc, mem) // 16h -> $800

	ts, err := svc.RejectTimesheet(ctx, ts.ID, approverID, "missing Wednesday")
	require.NoError(t, err)

	mem.PutTimeEntry(engine.TimeEntry{
		ID: "extra", UserID: empID, ProjectID: projectID,
		Date: monday.AddDays(2), Minutes: 120,
	})

	ts, err = svc.ResubmitTimesheet(ctx, ts.ID, empID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSubmitted, ts.Status)
	assert.True(t, ts.GrossPay.Equal(decimal.RequireFromString("900")), "got %s", ts.GrossPay)
}

// =============================================================================
// CONCURRENT APPROVAL TESTS
// =============================================================================

// gatedStore delays status writes until both racing goroutines have read
// the same version, making the lost-update race deterministic.
type gatedStore struct {
	*store.Memory
	reads sync.WaitGroup
}

func (g *gatedStore) UpdateTimesheetStatus(ctx context.Context, id engine.TimesheetID, expectVersion int, to engine.SheetStatus) error {
	g.reads.Done()
	g.reads.Wait()
	return g.Memory.UpdateTimesheetStatus(ctx, id, expectVersion, to)
}

func TestClientApprove_ConcurrentLosesExactlyOne(t *testing.T) {
	// GIVEN: Two approvers racing to client-approve the same version
	// WHEN: Both pass the guard before either writes
	// THEN: Exactly one wins; the other gets ErrConcurrentModification

	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutUser(engine.User{ID: "approver-b", Role: engine.RoleClientApprover, ClientID: clientID, Active: true})
	ts := submittedTimesheet(t, svc, mem)

	gated := &gatedStore{Memory: mem}
	gated.reads.Add(2)
	racing := workflow.NewService(gated, engine.NewCalculator(engine.NoHolidays{}))

	errs := make(chan error, 2)
	for _, actor := range []engine.UserID{approverID, "approver-b"} {
		go func(actor engine.UserID) {
			_, err := racing.ClientApproveTimesheet(ctx, ts.ID, actor, "")
			errs <- err
		}(actor)
	}

	var conflicts, wins int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, engine.ErrConcurrentModification):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	got, err := mem.GetTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusClientApproved, got.Status)
	assert.Equal(t, 2, got.Version, "exactly one CAS may land")
}

func TestSubmit_ConcurrentLosesExactlyOne(t *testing.T) {
	// GIVEN: Two submissions racing the same draft
	// WHEN: Both pass the guards and save derived totals before either CAS,
	//       so the loser's stale save lands between the winner's save and CAS
	// THEN: Exactly one wins, one conflicts, and exactly one Approval row
	//       is appended

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedWeek(mem, map[int]int{0: 480, 1: 480})
	ts := draftTimesheet(t, svc)

	gated := &gatedStore{Memory: mem}
	gated.reads.Add(2)
	racing := workflow.NewService(gated, engine.NewCalculator(engine.NoHolidays{}))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := racing.SubmitTimesheet(ctx, ts.ID, empID)
			errs <- err
		}()
	}

	var conflicts, wins int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, engine.ErrConcurrentModification):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	got, err := mem.GetTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSubmitted, got.Status)
	assert.Equal(t, 1, got.Version)

	approvals, err := mem.ListApprovalsByTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1, "only the winning submit may record an approval")
}

// =============================================================================
// EXPENSE REPORT TESTS
// =============================================================================

func TestSubmitReport_TotalsAndCeiling(t *testing.T) {
	// GIVEN: A draft report with two valid items
	// WHEN: Submitted
	// THEN: Total is their sum; an over-ceiling item blocks a later resubmit

	svc, mem := newTestService(t)
	ctx := context.Background()
	pid := projectID

	mem.PutExpense(engine.ExpenseItem{
		ID: "x-1", UserID: empID, ProjectID: &pid, CategoryID: "travel",
		Date: engine.NewDate(2025, 3, 5), Amount: decimal.RequireFromString("120.50"), Billable: true,
	})
	mem.PutExpense(engine.ExpenseItem{
		ID: "x-2", UserID: empID, CategoryID: "office",
		Date: engine.NewDate(2025, 3, 12), Amount: decimal.RequireFromString("30"),
	})

	r, err := svc.CreateReport(ctx, empID, engine.NewDate(2025, 3, 1))
	require.NoError(t, err)
	r, err = svc.SubmitReport(ctx, r.ID, empID)
	require.NoError(t, err)
	assert.True(t, r.Total.Equal(decimal.RequireFromString("150.50")), "got %s", r.Total)

	// Over-ceiling item added after a rejection blocks resubmission.
	r, err = svc.RejectReport(ctx, r.ID, approverID, "receipt missing")
	require.NoError(t, err)
	mem.PutExpense(engine.ExpenseItem{
		ID: "x-3", UserID: empID, CategoryID: "travel",
		Date: engine.NewDate(2025, 3, 20), Amount: decimal.RequireFromString("1000000.00"),
	})
	_, err = svc.ResubmitReport(ctx, r.ID, empID)
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
}

func TestReportChain_HappyPath(t *testing.T) {
	// GIVEN: A submitted expense report
	// WHEN: Client then payroll approve
	// THEN: Terminal status with three audit rows

	svc, mem := newTestService(t)
	ctx := context.Background()
	pid := projectID

	mem.PutExpense(engine.ExpenseItem{
		ID: "x-1", UserID: empID, ProjectID: &pid, CategoryID: "travel",
		Date: engine.NewDate(2025, 3, 5), Amount: decimal.RequireFromString("99.99"), Billable: true,
	})
	r, err := svc.CreateReport(ctx, empID, engine.NewDate(2025, 3, 1))
	require.NoError(t, err)
	r, err = svc.SubmitReport(ctx, r.ID, empID)
	require.NoError(t, err)

	r, err = svc.ClientApproveReport(ctx, r.ID, approverID, "ok")
	require.NoError(t, err)
	r, err = svc.PayrollApproveReport(ctx, r.ID, payrollID, "")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPayrollApproved, r.Status)

	approvals, err := mem.ListApprovalsByReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 3)
}
