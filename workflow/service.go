/*
service.go - Approval chain orchestration

PURPOSE:
  Drives timesheets and expense reports through the approval chain:
  loads the record, checks the guard, recalculates derived totals where
  a submission (re)enters the chain, performs the compare-and-set status
  write, and appends the Approval row.

TRANSITION SHAPE (every operation follows it):
  1. Validate input that must fail before any mutation (rejection reason)
  2. Load record + actor
  3. Consult the transition table; reason-tagged error on refusal
  4. Role/ownership/client-authorization guard
  5. CAS status write (lost race -> ErrConcurrentModification)
  6. Append Approval row

IDEMPOTENT RESUBMISSION:
  Submitting or resubmitting a record that is already submitted is a
  no-op: the record is returned unchanged and no Approval row is added.

DERIVED TOTALS:
  Bucketed hours and gross pay are recomputed from the raw entries at
  every (re)submission, never mutated independently, so the invariant
  sum(buckets) == sum(entry minutes)/60 holds by construction.

SEE ALSO:
  - machine.go: The transition table and reject gating
  - engine/calculator.go: Bucket classification
*/
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/westend/payroll-engine/engine"
)

// Service orchestrates the approval chain over a Store.
type Service struct {
	Store engine.Store
	Calc  *engine.Calculator
	Rates *engine.RateResolver

	now   func() time.Time
	newID func() engine.ApprovalID
}

func NewService(store engine.Store, calc *engine.Calculator) *Service {
	return &Service{
		Store: store,
		Calc:  calc,
		Rates: engine.NewRateResolver(store),
		now:   time.Now,
		newID: func() engine.ApprovalID { return engine.ApprovalID(uuid.NewString()) },
	}
}

// =============================================================================
// TIMESHEET CREATION
// =============================================================================

// CreateTimesheet opens a draft timesheet for the user's week containing
// the given date.
func (s *Service) CreateTimesheet(ctx context.Context, userID engine.UserID, day engine.Date) (*engine.Timesheet, error) {
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	now := s.now()
	ts := &engine.Timesheet{
		ID:        engine.TimesheetID(uuid.NewString()),
		UserID:    userID,
		WeekStart: engine.StartOfWeek(day),
		Status:    engine.StatusDraft,
		Buckets:   engine.ZeroBuckets(),
		GrossPay:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SaveTimesheet(ctx, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// CreateReport opens a draft expense report for the user's month
// containing the given date.
func (s *Service) CreateReport(ctx context.Context, userID engine.UserID, day engine.Date) (*engine.ExpenseReport, error) {
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	now := s.now()
	r := &engine.ExpenseReport{
		ID:         engine.ReportID(uuid.NewString()),
		UserID:     userID,
		MonthStart: engine.StartOfMonth(day),
		Status:     engine.StatusDraft,
		Total:      decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.SaveReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// TIMESHEET TRANSITIONS
// =============================================================================

// SubmitTimesheet moves a draft timesheet into the approval chain.
// Submitting an already-submitted timesheet is a no-op.
func (s *Service) SubmitTimesheet(ctx context.Context, id engine.TimesheetID, actorID engine.UserID) (*engine.Timesheet, error) {
	return s.enterChain(ctx, id, actorID, EventSubmit)
}

// ResubmitTimesheet returns a rejected timesheet to the chain. Totals are
// recalculated: the owner may have corrected entries after the rejection.
func (s *Service) ResubmitTimesheet(ctx context.Context, id engine.TimesheetID, actorID engine.UserID) (*engine.Timesheet, error) {
	return s.enterChain(ctx, id, actorID, EventResubmit)
}

func (s *Service) enterChain(ctx context.Context, id engine.TimesheetID, actorID engine.UserID, event Event) (*engine.Timesheet, error) {
	ts, err := s.Store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, err
	}
	if ts.Status == engine.StatusSubmitted {
		return ts, nil // idempotent: no duplicate Approval row
	}
	to, ok := Next(ts.Status, event)
	if !ok {
		return nil, refused(string(ts.ID), ts.Status, event, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != ts.UserID {
		return nil, refused(string(ts.ID), ts.Status, event, "only the owner may submit")
	}

	entries, err := s.Store.ListTimeEntriesByUserAndRange(ctx, ts.UserID, ts.Week())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &engine.ValidationError{Field: "entries", Reason: "timesheet has no time entries"}
	}
	pay, err := s.Calc.WeeklyPay(ts.Week(), entries, s.rateFor(ctx, ts.UserID))
	if err != nil {
		return nil, err
	}

	// Derived totals are written before the status CAS; they do not
	// depend on workflow position.
	ts.Buckets = pay.Buckets
	ts.GrossPay = pay.GrossPay
	ts.UpdatedAt = s.now()
	if err := s.Store.SaveTimesheet(ctx, ts); err != nil {
		return nil, err
	}

	if err := s.Store.UpdateTimesheetStatus(ctx, ts.ID, ts.Version, to); err != nil {
		return nil, err
	}
	ts.Status = to
	ts.Version++

	if err := s.recordTimesheetApproval(ctx, ts, actor, ""); err != nil {
		return nil, err
	}
	return ts, nil
}

// ClientApproveTimesheet is the client gate of the chain.
func (s *Service) ClientApproveTimesheet(ctx context.Context, id engine.TimesheetID, actorID engine.UserID, comment string) (*engine.Timesheet, error) {
	ts, err := s.Store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(ts.Status, EventClientApprove)
	if !ok {
		return nil, refused(string(ts.ID), ts.Status, EventClientApprove, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != engine.RoleClientApprover {
		return nil, refused(string(ts.ID), ts.Status, EventClientApprove, "requires client_approver role")
	}
	if actor.ID == ts.UserID {
		return nil, refused(string(ts.ID), ts.Status, EventClientApprove, "approver cannot approve their own timesheet")
	}
	if err := s.authorizeTimesheetClient(ctx, ts, actor); err != nil {
		return nil, err
	}

	if err := s.Store.UpdateTimesheetStatus(ctx, ts.ID, ts.Version, to); err != nil {
		return nil, err
	}
	ts.Status = to
	ts.Version++

	if err := s.recordTimesheetApproval(ctx, ts, actor, comment); err != nil {
		return nil, err
	}
	return ts, nil
}

// PayrollApproveTimesheet is the final gate; the result is exportable.
func (s *Service) PayrollApproveTimesheet(ctx context.Context, id engine.TimesheetID, actorID engine.UserID, comment string) (*engine.Timesheet, error) {
	ts, err := s.Store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(ts.Status, EventPayrollApprove)
	if !ok {
		return nil, refused(string(ts.ID), ts.Status, EventPayrollApprove, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != engine.RolePayroll {
		return nil, refused(string(ts.ID), ts.Status, EventPayrollApprove, "requires payroll role")
	}

	if err := s.Store.UpdateTimesheetStatus(ctx, ts.ID, ts.Version, to); err != nil {
		return nil, err
	}
	ts.Status = to
	ts.Version++

	if err := s.recordTimesheetApproval(ctx, ts, actor, comment); err != nil {
		return nil, err
	}
	return ts, nil
}

// RejectTimesheet sends the timesheet back to its owner. A reason is
// required and is validated before anything mutates.
func (s *Service) RejectTimesheet(ctx context.Context, id engine.TimesheetID, actorID engine.UserID, reason string) (*engine.Timesheet, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &engine.ValidationError{Field: "reason", Reason: "required on rejection"}
	}
	ts, err := s.Store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(ts.Status, EventReject)
	if !ok {
		return nil, refused(string(ts.ID), ts.Status, EventReject, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !rejectableBy(ts.Status, actor.Role) {
		return nil, refused(string(ts.ID), ts.Status, EventReject, "role "+string(actor.Role)+" may not reject from "+string(ts.Status))
	}
	if actor.Role == engine.RoleClientApprover {
		if err := s.authorizeTimesheetClient(ctx, ts, actor); err != nil {
			return nil, err
		}
	}

	if err := s.Store.UpdateTimesheetStatus(ctx, ts.ID, ts.Version, to); err != nil {
		return nil, err
	}
	ts.Status = to
	ts.Version++

	if err := s.recordTimesheetApproval(ctx, ts, actor, reason); err != nil {
		return nil, err
	}
	return ts, nil
}

// =============================================================================
// EXPENSE REPORT TRANSITIONS
// =============================================================================

// SubmitReport moves a draft expense report into the approval chain.
// Every item is validated against the amount bounds first.
func (s *Service) SubmitReport(ctx context.Context, id engine.ReportID, actorID engine.UserID) (*engine.ExpenseReport, error) {
	return s.enterReportChain(ctx, id, actorID, EventSubmit)
}

// ResubmitReport returns a rejected report to the chain.
func (s *Service) ResubmitReport(ctx context.Context, id engine.ReportID, actorID engine.UserID) (*engine.ExpenseReport, error) {
	return s.enterReportChain(ctx, id, actorID, EventResubmit)
}

func (s *Service) enterReportChain(ctx context.Context, id engine.ReportID, actorID engine.UserID, event Event) (*engine.ExpenseReport, error) {
	r, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == engine.StatusSubmitted {
		return r, nil
	}
	to, ok := Next(r.Status, event)
	if !ok {
		return nil, refused(string(r.ID), r.Status, event, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != r.UserID {
		return nil, refused(string(r.ID), r.Status, event, "only the owner may submit")
	}

	items, err := s.Store.ListExpensesByUserAndRange(ctx, r.UserID, r.Month())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &engine.ValidationError{Field: "items", Reason: "expense report has no items"}
	}
	total := decimal.Zero
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		total = total.Add(item.Amount)
	}

	r.Total = total
	r.UpdatedAt = s.now()
	if err := s.Store.SaveReport(ctx, r); err != nil {
		return nil, err
	}

	if err := s.Store.UpdateReportStatus(ctx, r.ID, r.Version, to); err != nil {
		return nil, err
	}
	r.Status = to
	r.Version++

	if err := s.recordReportApproval(ctx, r, actor, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// ClientApproveReport is the client gate for expense reports.
func (s *Service) ClientApproveReport(ctx context.Context, id engine.ReportID, actorID engine.UserID, comment string) (*engine.ExpenseReport, error) {
	r, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(r.Status, EventClientApprove)
	if !ok {
		return nil, refused(string(r.ID), r.Status, EventClientApprove, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != engine.RoleClientApprover {
		return nil, refused(string(r.ID), r.Status, EventClientApprove, "requires client_approver role")
	}
	if actor.ID == r.UserID {
		return nil, refused(string(r.ID), r.Status, EventClientApprove, "approver cannot approve their own report")
	}
	if err := s.authorizeReportClient(ctx, r, actor); err != nil {
		return nil, err
	}

	if err := s.Store.UpdateReportStatus(ctx, r.ID, r.Version, to); err != nil {
		return nil, err
	}
	r.Status = to
	r.Version++

	if err := s.recordReportApproval(ctx, r, actor, comment); err != nil {
		return nil, err
	}
	return r, nil
}

// PayrollApproveReport is the final gate for expense reports.
func (s *Service) PayrollApproveReport(ctx context.Context, id engine.ReportID, actorID engine.UserID, comment string) (*engine.ExpenseReport, error) {
	r, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(r.Status, EventPayrollApprove)
	if !ok {
		return nil, refused(string(r.ID), r.Status, EventPayrollApprove, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != engine.RolePayroll {
		return nil, refused(string(r.ID), r.Status, EventPayrollApprove, "requires payroll role")
	}

	if err := s.Store.UpdateReportStatus(ctx, r.ID, r.Version, to); err != nil {
		return nil, err
	}
	r.Status = to
	r.Version++

	if err := s.recordReportApproval(ctx, r, actor, comment); err != nil {
		return nil, err
	}
	return r, nil
}

// RejectReport sends the report back to its owner. Reason required.
func (s *Service) RejectReport(ctx context.Context, id engine.ReportID, actorID engine.UserID, reason string) (*engine.ExpenseReport, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &engine.ValidationError{Field: "reason", Reason: "required on rejection"}
	}
	r, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := Next(r.Status, EventReject)
	if !ok {
		return nil, refused(string(r.ID), r.Status, EventReject, "not allowed from this status")
	}
	actor, err := s.Store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !rejectableBy(r.Status, actor.Role) {
		return nil, refused(string(r.ID), r.Status, EventReject, "role "+string(actor.Role)+" may not reject from "+string(r.Status))
	}
	if actor.Role == engine.RoleClientApprover {
		if err := s.authorizeReportClient(ctx, r, actor); err != nil {
			return nil, err
		}
	}

	if err := s.Store.UpdateReportStatus(ctx, r.ID, r.Version, to); err != nil {
		return nil, err
	}
	r.Status = to
	r.Version++

	if err := s.recordReportApproval(ctx, r, actor, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// PAY PREVIEW
// =============================================================================

// PayPreview calculates a user's week without touching workflow state.
func (s *Service) PayPreview(ctx context.Context, userID engine.UserID, week engine.Period) (engine.WeekPay, error) {
	entries, err := s.Store.ListTimeEntriesByUserAndRange(ctx, userID, week)
	if err != nil {
		return engine.WeekPay{}, err
	}
	return s.Calc.WeeklyPay(week, entries, s.rateFor(ctx, userID))
}

// =============================================================================
// GUARD AND RECORDING HELPERS
// =============================================================================

func refused(targetID string, from engine.SheetStatus, event Event, reason string) error {
	return &engine.InvalidTransitionError{
		TargetID: targetID,
		From:     from,
		Event:    string(event),
		Reason:   reason,
	}
}

func (s *Service) rateFor(ctx context.Context, userID engine.UserID) engine.RateFunc {
	return func(projectID engine.ProjectID, date engine.Date) (decimal.Decimal, error) {
		return s.Rates.Resolve(ctx, userID, projectID, date)
	}
}

// authorizeTimesheetClient verifies the approver's client owns every
// project appearing on the sheet.
func (s *Service) authorizeTimesheetClient(ctx context.Context, ts *engine.Timesheet, actor *engine.User) error {
	entries, err := s.Store.ListTimeEntriesByUserAndRange(ctx, ts.UserID, ts.Week())
	if err != nil {
		return err
	}
	seen := make(map[engine.ProjectID]bool)
	for _, e := range entries {
		if seen[e.ProjectID] {
			continue
		}
		seen[e.ProjectID] = true
		if err := s.checkProjectClient(ctx, e.ProjectID, actor, string(ts.ID), ts.Status); err != nil {
			return err
		}
	}
	return nil
}

// authorizeReportClient verifies the approver's client owns every
// project-scoped expense item. Overhead items (no project) carry no
// client scope and do not block the client gate.
func (s *Service) authorizeReportClient(ctx context.Context, r *engine.ExpenseReport, actor *engine.User) error {
	items, err := s.Store.ListExpensesByUserAndRange(ctx, r.UserID, r.Month())
	if err != nil {
		return err
	}
	seen := make(map[engine.ProjectID]bool)
	for _, item := range items {
		if item.ProjectID == nil || seen[*item.ProjectID] {
			continue
		}
		seen[*item.ProjectID] = true
		if err := s.checkProjectClient(ctx, *item.ProjectID, actor, string(r.ID), r.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkProjectClient(ctx context.Context, projectID engine.ProjectID, actor *engine.User, targetID string, from engine.SheetStatus) error {
	p, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.ClientID != actor.ClientID {
		return refused(targetID, from, EventClientApprove,
			"approver is not authorized for client "+string(p.ClientID))
	}
	return nil
}

func (s *Service) recordTimesheetApproval(ctx context.Context, ts *engine.Timesheet, actor *engine.User, comment string) error {
	return s.Store.AppendApproval(ctx, engine.Approval{
		ID:           s.newID(),
		ApproverID:   actor.ID,
		ApproverRole: actor.Role,
		TimesheetID:  ts.ID,
		Status:       ts.Status,
		Comment:      comment,
		CreatedAt:    s.now(),
	})
}

func (s *Service) recordReportApproval(ctx context.Context, r *engine.ExpenseReport, actor *engine.User, comment string) error {
	return s.Store.AppendApproval(ctx, engine.Approval{
		ID:              s.newID(),
		ApproverID:      actor.ID,
		ApproverRole:    actor.Role,
		ExpenseReportID: r.ID,
		Status:          r.Status,
		Comment:         comment,
		CreatedAt:       s.now(),
	})
}
