/*
Package engine provides the core workforce pay-calculation engine.

PURPOSE:
  This package contains the domain model and algorithms that turn raw
  time/expense entries into approved, rate-applied payroll records:
  rate resolution, daily/weekly pay classification, and the records the
  approval workflow and export builder operate on.

KEY CONCEPTS IN THIS FILE (types.go):
  - User/Client/Project: the staffing roster
  - RateEntry: time-bounded hourly rate overrides
  - TimeEntry/ExpenseItem: raw entries owned by the employee until submitted
  - Timesheet/ExpenseReport: weekly/monthly aggregates with workflow status
  - Approval: immutable record of one workflow transition
  - Role/SheetStatus: closed enums so illegal states are caught by
    exhaustive switches instead of string comparisons

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money and hours, never float64
  2. Type Safety: Strong typing for IDs prevents mixing user/project IDs
  3. Derived fields: Timesheet totals are computed, never set by hand
  4. Auditability: Every transition leaves an Approval row

SEE ALSO:
  - rates.go: Rate resolution
  - calculator.go: Pay bucket classification
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ClientID string
type ProjectID string
type TaskID string
type CategoryID string
type EntryID string
type ExpenseID string
type TimesheetID string
type ReportID string
type ApprovalID string

// =============================================================================
// ROLES - Closed set, guards switch exhaustively on these
// =============================================================================

type Role string

const (
	RoleEmployee       Role = "employee"
	RoleClientApprover Role = "client_approver"
	RoleAdmin          Role = "admin"
	RolePayroll        Role = "payroll"
)

// ParseRole converts external input into a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleEmployee, RoleClientApprover, RoleAdmin, RolePayroll:
		return Role(s), true
	}
	return "", false
}

// =============================================================================
// ROSTER - Users, clients, projects
// =============================================================================

// User is a portal identity. ClientID is set only for client approvers and
// scopes which client's timesheets they may approve.
type User struct {
	ID         UserID
	Name       string
	Email      string
	Role       Role
	Department string
	ClientID   ClientID
	Active     bool
}

type Client struct {
	ID   ClientID
	Name string
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
)

// Project is the scoping unit for billing and compliance.
// Budget is nil for unfunded (time & materials) projects.
type Project struct {
	ID       ProjectID
	ClientID ClientID
	Name     string
	Code     string
	Status   ProjectStatus
	Budget   *decimal.Decimal
}

// =============================================================================
// RATE ENTRY - Time-bounded hourly rate
// =============================================================================

// RateEntry binds an hourly rate to a user, a project, or a user+project
// pair for a date range. EffectiveTo nil means open-ended.
//
// Specificity (used by the resolver): user+project > project > user.
type RateEntry struct {
	ID            string
	UserID        *UserID
	ProjectID     *ProjectID
	HourlyRate    decimal.Decimal
	EffectiveFrom Date
	EffectiveTo   *Date
}

// Covers reports whether the entry is effective on the given date.
func (r RateEntry) Covers(d Date) bool {
	if d.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && d.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// Specificity returns the resolver search tier: lower is more specific.
func (r RateEntry) Specificity() int {
	switch {
	case r.UserID != nil && r.ProjectID != nil:
		return 0
	case r.ProjectID != nil:
		return 1
	case r.UserID != nil:
		return 2
	default:
		return 3
	}
}

// =============================================================================
// RAW ENTRIES - Owned by the employee until submitted
// =============================================================================

// TimeEntry is a single task's worked time on one calendar day.
type TimeEntry struct {
	ID        EntryID
	UserID    UserID
	ProjectID ProjectID
	TaskID    TaskID
	Date      Date
	Minutes   int
	Submitted bool
	Approved  bool
}

// Hours returns the entry's duration in decimal hours.
func (e TimeEntry) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(e.Minutes)).Div(decimal.NewFromInt(60))
}

// MaxExpenseAmount is the configured ceiling for a single expense item.
var MaxExpenseAmount = decimal.RequireFromString("999999.99")

// ExpenseItem is a single expense. ProjectID is nil for overhead expenses
// not attributable to a project.
type ExpenseItem struct {
	ID         ExpenseID
	UserID     UserID
	ProjectID  *ProjectID
	CategoryID CategoryID
	Date       Date
	Amount     decimal.Decimal
	Billable   bool
	Submitted  bool
	Approved   bool
}

// Validate enforces the amount bounds: strictly positive, at most the ceiling.
func (e ExpenseItem) Validate() error {
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if e.Amount.GreaterThan(MaxExpenseAmount) {
		return &ValidationError{Field: "amount", Reason: "exceeds ceiling " + MaxExpenseAmount.String()}
	}
	return nil
}

// =============================================================================
// WORKFLOW STATUS - Single source of truth for workflow position
// =============================================================================

type SheetStatus string

const (
	StatusDraft           SheetStatus = "draft"
	StatusSubmitted       SheetStatus = "submitted"
	StatusClientApproved  SheetStatus = "client_approved"
	StatusPayrollApproved SheetStatus = "payroll_approved"
	StatusRejected        SheetStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
// Rejected is NOT terminal: the owner may resubmit.
func (s SheetStatus) Terminal() bool { return s == StatusPayrollApproved }

// =============================================================================
// AGGREGATES - Timesheet (weekly) and ExpenseReport (monthly)
// =============================================================================

// HourBuckets are classified hours for a timesheet or a single day.
type HourBuckets struct {
	Regular  decimal.Decimal
	Overtime decimal.Decimal
	Weekend  decimal.Decimal
	Holiday  decimal.Decimal
}

// Total returns the sum across all buckets. For any calculated day this
// equals the sum of the input entries' minutes/60.
func (b HourBuckets) Total() decimal.Decimal {
	return b.Regular.Add(b.Overtime).Add(b.Weekend).Add(b.Holiday)
}

func (b HourBuckets) Add(o HourBuckets) HourBuckets {
	return HourBuckets{
		Regular:  b.Regular.Add(o.Regular),
		Overtime: b.Overtime.Add(o.Overtime),
		Weekend:  b.Weekend.Add(o.Weekend),
		Holiday:  b.Holiday.Add(o.Holiday),
	}
}

// ZeroBuckets returns an all-zero bucket set (decimal.Decimal zero values
// marshal as 0, so this is mostly for readability).
func ZeroBuckets() HourBuckets {
	return HourBuckets{
		Regular:  decimal.Zero,
		Overtime: decimal.Zero,
		Weekend:  decimal.Zero,
		Holiday:  decimal.Zero,
	}
}

// Timesheet is the weekly aggregate of a user's time entries.
// Buckets and TotalHours are derived from the entries; Status is the only
// field the workflow mutates, and Version backs optimistic concurrency.
type Timesheet struct {
	ID        TimesheetID
	UserID    UserID
	WeekStart Date
	Status    SheetStatus
	Version   int
	Buckets   HourBuckets
	GrossPay  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Week returns the timesheet's pay period.
func (t Timesheet) Week() Period { return WeekOf(t.WeekStart) }

// ExpenseReport is the monthly aggregate of a user's expense items.
// Same lifecycle as Timesheet.
type ExpenseReport struct {
	ID         ReportID
	UserID     UserID
	MonthStart Date
	Status     SheetStatus
	Version    int
	Total      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Month returns the report's period.
func (r ExpenseReport) Month() Period { return MonthOf(r.MonthStart) }

// =============================================================================
// APPROVAL - Immutable record of one workflow transition
// =============================================================================

// Approval joins an approver to a target. Exactly one of TimesheetID and
// ExpenseReportID is set.
type Approval struct {
	ID              ApprovalID
	ApproverID      UserID
	ApproverRole    Role
	TimesheetID     TimesheetID
	ExpenseReportID ReportID
	Status          SheetStatus // status the target moved to
	Comment         string
	CreatedAt       time.Time
}

// TargetID returns the non-empty side of the timesheet/report XOR.
func (a Approval) TargetID() string {
	if a.TimesheetID != "" {
		return string(a.TimesheetID)
	}
	return string(a.ExpenseReportID)
}
