/*
store.go - Persistence interfaces between the engine and the database

PURPOSE:
  Defines the boundary to the excluded persistence layer. The engine reads
  roster/rate/entry records and writes back sheets and approvals through
  these interfaces; SQL and transport detail live in the implementations.

KEY INTERFACES:
  RosterStore:   Users, clients, projects (read-only to the engine)
  RateStore:     Rate entries for the resolver
  EntryStore:    Raw time entries and expense items
  SheetStore:    Timesheets and expense reports, with CAS status updates
  ApprovalStore: Append-only approval trail

CONCURRENCY CONTRACT:
  UpdateTimesheetStatus / UpdateReportStatus are compare-and-set: the write
  succeeds only if the stored version still matches expectVersion, and bumps
  the version by one. A lost race returns ErrConcurrentModification. This is
  what keeps two concurrent approvals from both succeeding.

ERROR CONTRACT:
  Implementations return ErrNotFound for missing records and wrap any
  backend failure in *PersistenceError. The engine surfaces these to the
  caller untouched; retries are the caller's job.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite with version-checked UPDATEs
*/
package engine

import "context"

// =============================================================================
// ROSTER STORE
// =============================================================================

type RosterStore interface {
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	ListProjectsByClient(ctx context.Context, id ClientID) ([]Project, error)
}

// =============================================================================
// RATE STORE
// =============================================================================

type RateStore interface {
	// ListRates returns every rate entry that could apply to the
	// (user, project) pair: user+project entries, project-wide entries,
	// and user-wide entries. The resolver picks among them by date and
	// specificity.
	ListRates(ctx context.Context, userID UserID, projectID ProjectID) ([]RateEntry, error)
}

// =============================================================================
// ENTRY STORE
// =============================================================================

type EntryStore interface {
	ListTimeEntriesByUserAndRange(ctx context.Context, userID UserID, period Period) ([]TimeEntry, error)
	ListTimeEntriesByProjectAndRange(ctx context.Context, projectID ProjectID, period Period) ([]TimeEntry, error)
	ListExpensesByUserAndRange(ctx context.Context, userID UserID, period Period) ([]ExpenseItem, error)
	ListExpensesByProjectAndRange(ctx context.Context, projectID ProjectID, period Period) ([]ExpenseItem, error)
}

// =============================================================================
// SHEET STORE - Timesheets and expense reports
// =============================================================================

type SheetStore interface {
	GetTimesheet(ctx context.Context, id TimesheetID) (*Timesheet, error)
	ListTimesheetsByUser(ctx context.Context, userID UserID) ([]Timesheet, error)
	ListTimesheetsByStatus(ctx context.Context, status SheetStatus) ([]Timesheet, error)
	SaveTimesheet(ctx context.Context, ts *Timesheet) error

	// UpdateTimesheetStatus is the CAS write backing every workflow
	// transition. Fails with ErrConcurrentModification when the stored
	// version no longer matches expectVersion.
	UpdateTimesheetStatus(ctx context.Context, id TimesheetID, expectVersion int, to SheetStatus) error

	GetReport(ctx context.Context, id ReportID) (*ExpenseReport, error)
	ListReportsByUser(ctx context.Context, userID UserID) ([]ExpenseReport, error)
	ListReportsByStatus(ctx context.Context, status SheetStatus) ([]ExpenseReport, error)
	SaveReport(ctx context.Context, r *ExpenseReport) error
	UpdateReportStatus(ctx context.Context, id ReportID, expectVersion int, to SheetStatus) error
}

// =============================================================================
// APPROVAL STORE - Append-only
// =============================================================================

type ApprovalStore interface {
	// AppendApproval records a transition. Approvals are never updated or
	// deleted; a rejection followed by resubmission adds rows.
	AppendApproval(ctx context.Context, a Approval) error

	ListApprovalsByTimesheet(ctx context.Context, id TimesheetID) ([]Approval, error)
	ListApprovalsByReport(ctx context.Context, id ReportID) ([]Approval, error)
}

// Store is the full persistence surface the server wires together.
type Store interface {
	RosterStore
	RateStore
	EntryStore
	SheetStore
	ApprovalStore
}
