/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users, clients, projects: Roster records
  rate_entries:             Time-bounded hourly rates
  time_entries:             Raw logged minutes
  expense_items:            Raw expense amounts
  timesheets:               Weekly aggregates with workflow status + version
  expense_reports:          Monthly aggregates, same lifecycle
  approvals:                Append-only audit trail of transitions
  holidays:                 Injected holiday calendar

OPTIMISTIC CONCURRENCY:
  Status transitions go through UpdateTimesheetStatus/UpdateReportStatus,
  which issue UPDATE ... WHERE id = ? AND version = ?. A zero row count
  means another writer got there first and surfaces as
  ErrConcurrentModification, never a silent double-apply.

APPEND-ONLY ENFORCEMENT:
  The approvals table has no UPDATE or DELETE path; the audit trail is
  immutable.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  svc := workflow.NewService(st, engine.NewCalculator(st.Calendar()))

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/westend/payroll-engine/engine"
)

// tsFormat is a fixed-width RFC3339 variant so stored timestamps sort
// lexicographically down to the nanosecond.
const tsFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears all data. Development and demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"approvals", "timesheets", "expense_reports", "time_entries",
		"expense_items", "rate_entries", "projects", "clients", "users", "holidays",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrap("reset "+table, err)
		}
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Roster
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		department TEXT,
		client_id TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		budget TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client_id);

	-- Rates
	CREATE TABLE IF NOT EXISTS rate_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		project_id TEXT,
		hourly_rate TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rates_user ON rate_entries(user_id)
		WHERE user_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_rates_project ON rate_entries(project_id)
		WHERE project_id IS NOT NULL;

	-- Raw entries
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		task_id TEXT,
		date TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		submitted BOOLEAN NOT NULL DEFAULT FALSE,
		approved BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Hot path: weekly aggregation and the billing rollup
	CREATE INDEX IF NOT EXISTS idx_time_entries_user_date
		ON time_entries(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_time_entries_project_date
		ON time_entries(project_id, date);

	CREATE TABLE IF NOT EXISTS expense_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT,
		category_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		billable BOOLEAN NOT NULL DEFAULT FALSE,
		submitted BOOLEAN NOT NULL DEFAULT FALSE,
		approved BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_expense_items_user_date
		ON expense_items(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_expense_items_project_date
		ON expense_items(project_id, date) WHERE project_id IS NOT NULL;

	-- Weekly aggregates; version backs the optimistic status CAS
	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		regular_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		weekend_hours TEXT NOT NULL,
		holiday_hours TEXT NOT NULL,
		gross_pay TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, week_start)
	);

	CREATE INDEX IF NOT EXISTS idx_timesheets_user ON timesheets(user_id);
	CREATE INDEX IF NOT EXISTS idx_timesheets_status ON timesheets(status);

	CREATE TABLE IF NOT EXISTS expense_reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		month_start TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, month_start)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_user ON expense_reports(user_id);
	CREATE INDEX IF NOT EXISTS idx_reports_status ON expense_reports(status);

	-- Append-only audit trail; exactly one target column is set
	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		approver_id TEXT NOT NULL,
		approver_role TEXT NOT NULL,
		timesheet_id TEXT,
		expense_report_id TEXT,
		status TEXT NOT NULL,
		comment TEXT,
		created_at TEXT NOT NULL,
		CHECK ((timesheet_id IS NULL) != (expense_report_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_timesheet
		ON approvals(timesheet_id) WHERE timesheet_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_approvals_report
		ON approvals(expense_report_id) WHERE expense_report_id IS NOT NULL;

	-- Injected holiday calendar
	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER STORE
// =============================================================================

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u engine.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, role, department, client_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			department = excluded.department,
			client_id = excluded.client_id,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Role, u.Department, u.ClientID, u.Active)
	return wrap("save user", err)
}

func (s *Store) GetUser(ctx context.Context, id engine.UserID) (*engine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u engine.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, department, client_id, active FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Department, &u.ClientID, &u.Active)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}

// SaveClient inserts or updates a client.
func (s *Store) SaveClient(ctx context.Context, c engine.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO clients (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name)
	return wrap("save client", err)
}

func (s *Store) GetClient(ctx context.Context, id engine.ClientID) (*engine.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c engine.Client
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get client", err)
	}
	return &c, nil
}

// SaveProject inserts or updates a project.
func (s *Store) SaveProject(ctx context.Context, p engine.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var budget *string
	if p.Budget != nil {
		v := p.Budget.String()
		budget = &v
	}

	query := `
		INSERT INTO projects (id, client_id, name, code, status, budget)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			code = excluded.code,
			status = excluded.status,
			budget = excluded.budget
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.ClientID, p.Name, p.Code, p.Status, budget)
	return wrap("save project", err)
}

func (s *Store) GetProject(ctx context.Context, id engine.ProjectID) (*engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, client_id, name, code, status, budget FROM projects WHERE id = ?", id)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get project", err)
	}
	return p, nil
}

func (s *Store) ListProjectsByClient(ctx context.Context, id engine.ClientID) ([]engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, client_id, name, code, status, budget FROM projects WHERE client_id = ? ORDER BY code",
		id)
	if err != nil {
		return nil, wrap("list projects", err)
	}
	defer rows.Close()

	var projects []engine.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, wrap("scan project", err)
		}
		projects = append(projects, *p)
	}
	return projects, wrap("list projects", rows.Err())
}

func scanProject(scan func(...any) error) (*engine.Project, error) {
	var p engine.Project
	var budget sql.NullString
	if err := scan(&p.ID, &p.ClientID, &p.Name, &p.Code, &p.Status, &budget); err != nil {
		return nil, err
	}
	if budget.Valid {
		b, err := decimal.NewFromString(budget.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt budget %q: %w", budget.String, err)
		}
		p.Budget = &b
	}
	return &p, nil
}

// =============================================================================
// RATE STORE
// =============================================================================

// SaveRate inserts or updates a rate entry.
func (s *Store) SaveRate(ctx context.Context, r engine.RateEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var effectiveTo *string
	if r.EffectiveTo != nil {
		v := r.EffectiveTo.String()
		effectiveTo = &v
	}

	query := `
		INSERT INTO rate_entries (id, user_id, project_id, hourly_rate, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			hourly_rate = excluded.hourly_rate,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, nullUserID(r.UserID), nullProjectID(r.ProjectID),
		r.HourlyRate.String(), r.EffectiveFrom.String(), effectiveTo)
	return wrap("save rate", err)
}

// ListRates returns the rate entries that could price work by this user on
// this project: unscoped fields match anything, scoped fields must match.
func (s *Store) ListRates(ctx context.Context, userID engine.UserID, projectID engine.ProjectID) ([]engine.RateEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, project_id, hourly_rate, effective_from, effective_to
		FROM rate_entries
		WHERE (user_id IS NULL OR user_id = ?)
		  AND (project_id IS NULL OR project_id = ?)
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, projectID)
	if err != nil {
		return nil, wrap("list rates", err)
	}
	defer rows.Close()

	var rates []engine.RateEntry
	for rows.Next() {
		var r engine.RateEntry
		var userID, projectID, effectiveTo sql.NullString
		var hourlyRate, effectiveFrom string
		if err := rows.Scan(&r.ID, &userID, &projectID, &hourlyRate, &effectiveFrom, &effectiveTo); err != nil {
			return nil, wrap("scan rate", err)
		}
		if r.HourlyRate, err = decimal.NewFromString(hourlyRate); err != nil {
			return nil, wrap("scan rate", err)
		}
		if r.EffectiveFrom, err = engine.ParseDate(effectiveFrom); err != nil {
			return nil, wrap("scan rate", err)
		}
		if userID.Valid {
			id := engine.UserID(userID.String)
			r.UserID = &id
		}
		if projectID.Valid {
			id := engine.ProjectID(projectID.String)
			r.ProjectID = &id
		}
		if effectiveTo.Valid {
			d, err := engine.ParseDate(effectiveTo.String)
			if err != nil {
				return nil, wrap("scan rate", err)
			}
			r.EffectiveTo = &d
		}
		rates = append(rates, r)
	}
	return rates, wrap("list rates", rows.Err())
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// SaveTimeEntry inserts or updates a time entry.
func (s *Store) SaveTimeEntry(ctx context.Context, e engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO time_entries (id, user_id, project_id, task_id, date, minutes, submitted, approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id,
			date = excluded.date,
			minutes = excluded.minutes,
			submitted = excluded.submitted,
			approved = excluded.approved
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.ProjectID, e.TaskID, e.Date.String(), e.Minutes, e.Submitted, e.Approved)
	return wrap("save time entry", err)
}

func (s *Store) ListTimeEntriesByUserAndRange(ctx context.Context, userID engine.UserID, period engine.Period) ([]engine.TimeEntry, error) {
	return s.listTimeEntries(ctx, "user_id", string(userID), period)
}

func (s *Store) ListTimeEntriesByProjectAndRange(ctx context.Context, projectID engine.ProjectID, period engine.Period) ([]engine.TimeEntry, error) {
	return s.listTimeEntries(ctx, "project_id", string(projectID), period)
}

func (s *Store) listTimeEntries(ctx context.Context, column, id string, period engine.Period) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, project_id, task_id, date, minutes, submitted, approved
		FROM time_entries
		WHERE ` + column + ` = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, id, period.Start.String(), period.End.String())
	if err != nil {
		return nil, wrap("list time entries", err)
	}
	defer rows.Close()

	var entries []engine.TimeEntry
	for rows.Next() {
		var e engine.TimeEntry
		var date string
		var taskID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProjectID, &taskID, &date, &e.Minutes, &e.Submitted, &e.Approved); err != nil {
			return nil, wrap("scan time entry", err)
		}
		if e.Date, err = engine.ParseDate(date); err != nil {
			return nil, wrap("scan time entry", err)
		}
		e.TaskID = engine.TaskID(taskID.String)
		entries = append(entries, e)
	}
	return entries, wrap("list time entries", rows.Err())
}

// SaveExpense inserts or updates an expense item.
func (s *Store) SaveExpense(ctx context.Context, e engine.ExpenseItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expense_items (id, user_id, project_id, category_id, date, amount, billable, submitted, approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			date = excluded.date,
			amount = excluded.amount,
			billable = excluded.billable,
			submitted = excluded.submitted,
			approved = excluded.approved
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, nullProjectID(e.ProjectID), e.CategoryID,
		e.Date.String(), e.Amount.String(), e.Billable, e.Submitted, e.Approved)
	return wrap("save expense", err)
}

func (s *Store) ListExpensesByUserAndRange(ctx context.Context, userID engine.UserID, period engine.Period) ([]engine.ExpenseItem, error) {
	return s.listExpenses(ctx, "user_id", string(userID), period)
}

func (s *Store) ListExpensesByProjectAndRange(ctx context.Context, projectID engine.ProjectID, period engine.Period) ([]engine.ExpenseItem, error) {
	return s.listExpenses(ctx, "project_id", string(projectID), period)
}

func (s *Store) listExpenses(ctx context.Context, column, id string, period engine.Period) ([]engine.ExpenseItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, project_id, category_id, date, amount, billable, submitted, approved
		FROM expense_items
		WHERE ` + column + ` = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, id, period.Start.String(), period.End.String())
	if err != nil {
		return nil, wrap("list expenses", err)
	}
	defer rows.Close()

	var items []engine.ExpenseItem
	for rows.Next() {
		var e engine.ExpenseItem
		var date, amount string
		var projectID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &projectID, &e.CategoryID, &date, &amount, &e.Billable, &e.Submitted, &e.Approved); err != nil {
			return nil, wrap("scan expense", err)
		}
		if e.Date, err = engine.ParseDate(date); err != nil {
			return nil, wrap("scan expense", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, wrap("scan expense", err)
		}
		if projectID.Valid {
			pid := engine.ProjectID(projectID.String)
			e.ProjectID = &pid
		}
		items = append(items, e)
	}
	return items, wrap("list expenses", rows.Err())
}

// =============================================================================
// SHEET STORE - TIMESHEETS
// =============================================================================

// SaveTimesheet inserts or updates a timesheet's data columns. Workflow
// position is only advanced through UpdateTimesheetStatus.
func (s *Store) SaveTimesheet(ctx context.Context, ts *engine.Timesheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO timesheets
		(id, user_id, week_start, status, version,
		 regular_hours, overtime_hours, weekend_hours, holiday_hours, gross_pay,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			regular_hours = excluded.regular_hours,
			overtime_hours = excluded.overtime_hours,
			weekend_hours = excluded.weekend_hours,
			holiday_hours = excluded.holiday_hours,
			gross_pay = excluded.gross_pay,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		ts.ID, ts.UserID, ts.WeekStart.String(), ts.Status, ts.Version,
		ts.Buckets.Regular.String(), ts.Buckets.Overtime.String(),
		ts.Buckets.Weekend.String(), ts.Buckets.Holiday.String(),
		ts.GrossPay.String(),
		ts.CreatedAt.UTC().Format(time.RFC3339), ts.UpdatedAt.UTC().Format(time.RFC3339))
	return wrap("save timesheet", err)
}

func (s *Store) GetTimesheet(ctx context.Context, id engine.TimesheetID) (*engine.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectTimesheet+" WHERE id = ?", id)
	ts, err := scanTimesheet(row.Scan)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get timesheet", err)
	}
	return ts, nil
}

func (s *Store) ListTimesheetsByUser(ctx context.Context, userID engine.UserID) ([]engine.Timesheet, error) {
	return s.listTimesheets(ctx, " WHERE user_id = ? ORDER BY week_start ASC", string(userID))
}

func (s *Store) ListTimesheetsByStatus(ctx context.Context, status engine.SheetStatus) ([]engine.Timesheet, error) {
	return s.listTimesheets(ctx, " WHERE status = ? ORDER BY week_start ASC, user_id ASC", string(status))
}

const selectTimesheet = `
	SELECT id, user_id, week_start, status, version,
	       regular_hours, overtime_hours, weekend_hours, holiday_hours, gross_pay,
	       created_at, updated_at
	FROM timesheets`

func (s *Store) listTimesheets(ctx context.Context, clause string, arg string) ([]engine.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectTimesheet+clause, arg)
	if err != nil {
		return nil, wrap("list timesheets", err)
	}
	defer rows.Close()

	var sheets []engine.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows.Scan)
		if err != nil {
			return nil, wrap("scan timesheet", err)
		}
		sheets = append(sheets, *ts)
	}
	return sheets, wrap("list timesheets", rows.Err())
}

func scanTimesheet(scan func(...any) error) (*engine.Timesheet, error) {
	var ts engine.Timesheet
	var weekStart, regular, overtime, weekend, holiday, gross, createdAt, updatedAt string
	if err := scan(&ts.ID, &ts.UserID, &weekStart, &ts.Status, &ts.Version,
		&regular, &overtime, &weekend, &holiday, &gross, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if ts.WeekStart, err = engine.ParseDate(weekStart); err != nil {
		return nil, err
	}
	if ts.Buckets.Regular, err = decimal.NewFromString(regular); err != nil {
		return nil, err
	}
	if ts.Buckets.Overtime, err = decimal.NewFromString(overtime); err != nil {
		return nil, err
	}
	if ts.Buckets.Weekend, err = decimal.NewFromString(weekend); err != nil {
		return nil, err
	}
	if ts.Buckets.Holiday, err = decimal.NewFromString(holiday); err != nil {
		return nil, err
	}
	if ts.GrossPay, err = decimal.NewFromString(gross); err != nil {
		return nil, err
	}
	if ts.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if ts.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return &ts, nil
}

// UpdateTimesheetStatus performs the optimistic status transition. The
// version predicate makes a lost race visible as zero affected rows.
func (s *Store) UpdateTimesheetStatus(ctx context.Context, id engine.TimesheetID, expectVersion int, to engine.SheetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE timesheets SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		to, time.Now().UTC().Format(time.RFC3339), id, expectVersion)
	if err != nil {
		return wrap("update timesheet status", err)
	}
	return s.casOutcome(ctx, res, "SELECT COUNT(*) FROM timesheets WHERE id = ?", string(id))
}

// =============================================================================
// SHEET STORE - EXPENSE REPORTS
// =============================================================================

// SaveReport inserts or updates an expense report's data columns.
func (s *Store) SaveReport(ctx context.Context, r *engine.ExpenseReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expense_reports (id, user_id, month_start, status, version, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.MonthStart.String(), r.Status, r.Version, r.Total.String(),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	return wrap("save report", err)
}

func (s *Store) GetReport(ctx context.Context, id engine.ReportID) (*engine.ExpenseReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectReport+" WHERE id = ?", id)
	r, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get report", err)
	}
	return r, nil
}

func (s *Store) ListReportsByUser(ctx context.Context, userID engine.UserID) ([]engine.ExpenseReport, error) {
	return s.listReports(ctx, " WHERE user_id = ? ORDER BY month_start ASC", string(userID))
}

func (s *Store) ListReportsByStatus(ctx context.Context, status engine.SheetStatus) ([]engine.ExpenseReport, error) {
	return s.listReports(ctx, " WHERE status = ? ORDER BY month_start ASC, user_id ASC", string(status))
}

const selectReport = `
	SELECT id, user_id, month_start, status, version, total, created_at, updated_at
	FROM expense_reports`

func (s *Store) listReports(ctx context.Context, clause string, arg string) ([]engine.ExpenseReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectReport+clause, arg)
	if err != nil {
		return nil, wrap("list reports", err)
	}
	defer rows.Close()

	var reports []engine.ExpenseReport
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, wrap("scan report", err)
		}
		reports = append(reports, *r)
	}
	return reports, wrap("list reports", rows.Err())
}

func scanReport(scan func(...any) error) (*engine.ExpenseReport, error) {
	var r engine.ExpenseReport
	var monthStart, total, createdAt, updatedAt string
	if err := scan(&r.ID, &r.UserID, &monthStart, &r.Status, &r.Version, &total, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if r.MonthStart, err = engine.ParseDate(monthStart); err != nil {
		return nil, err
	}
	if r.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReportStatus performs the optimistic status transition.
func (s *Store) UpdateReportStatus(ctx context.Context, id engine.ReportID, expectVersion int, to engine.SheetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE expense_reports SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		to, time.Now().UTC().Format(time.RFC3339), id, expectVersion)
	if err != nil {
		return wrap("update report status", err)
	}
	return s.casOutcome(ctx, res, "SELECT COUNT(*) FROM expense_reports WHERE id = ?", string(id))
}

// casOutcome distinguishes a lost version race from a missing row when a
// compare-and-set touched nothing.
func (s *Store) casOutcome(ctx context.Context, res sql.Result, probe string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("cas outcome", err)
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, probe, id).Scan(&count); err != nil {
		return wrap("cas outcome", err)
	}
	if count == 0 {
		return engine.ErrNotFound
	}
	return engine.ErrConcurrentModification
}

// =============================================================================
// APPROVAL STORE
// =============================================================================

// AppendApproval appends one audit row. There is no update or delete path.
func (s *Store) AppendApproval(ctx context.Context, a engine.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO approvals (id, approver_id, approver_role, timesheet_id, expense_report_id, status, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var timesheetID, reportID *string
	if a.TimesheetID != "" {
		v := string(a.TimesheetID)
		timesheetID = &v
	}
	if a.ExpenseReportID != "" {
		v := string(a.ExpenseReportID)
		reportID = &v
	}
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.ApproverID, a.ApproverRole, timesheetID, reportID,
		a.Status, a.Comment, a.CreatedAt.UTC().Format(tsFormat))
	return wrap("append approval", err)
}

func (s *Store) ListApprovalsByTimesheet(ctx context.Context, id engine.TimesheetID) ([]engine.Approval, error) {
	return s.listApprovals(ctx, "timesheet_id", string(id))
}

func (s *Store) ListApprovalsByReport(ctx context.Context, id engine.ReportID) ([]engine.Approval, error) {
	return s.listApprovals(ctx, "expense_report_id", string(id))
}

func (s *Store) listApprovals(ctx context.Context, column, id string) ([]engine.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, approver_id, approver_role, timesheet_id, expense_report_id, status, comment, created_at
		FROM approvals
		WHERE ` + column + ` = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, wrap("list approvals", err)
	}
	defer rows.Close()

	var approvals []engine.Approval
	for rows.Next() {
		var a engine.Approval
		var timesheetID, reportID, comment sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.ApproverID, &a.ApproverRole, &timesheetID, &reportID, &a.Status, &comment, &createdAt); err != nil {
			return nil, wrap("scan approval", err)
		}
		a.TimesheetID = engine.TimesheetID(timesheetID.String)
		a.ExpenseReportID = engine.ReportID(reportID.String)
		a.Comment = comment.String
		if a.CreatedAt, err = time.Parse(tsFormat, createdAt); err != nil {
			return nil, wrap("scan approval", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, wrap("list approvals", rows.Err())
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is one entry of the injected calendar.
type Holiday struct {
	Date engine.Date
	Name string
}

// SaveHoliday adds or renames a holiday date.
func (s *Store) SaveHoliday(ctx context.Context, h Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (date, name) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, h.Date.String(), h.Name)
	return wrap("save holiday", err)
}

// DeleteHoliday removes a holiday date.
func (s *Store) DeleteHoliday(ctx context.Context, d engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", d.String())
	return wrap("delete holiday", err)
}

// ListHolidays returns the full calendar in date order.
func (s *Store) ListHolidays(ctx context.Context) ([]Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT date, name FROM holidays ORDER BY date ASC")
	if err != nil {
		return nil, wrap("list holidays", err)
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		var date string
		if err := rows.Scan(&date, &h.Name); err != nil {
			return nil, wrap("scan holiday", err)
		}
		if h.Date, err = engine.ParseDate(date); err != nil {
			return nil, wrap("scan holiday", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, wrap("list holidays", rows.Err())
}

// IsHoliday implements engine.HolidayCalendar.
func (s *Store) IsHoliday(d engine.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM holidays WHERE date = ?", d.String()).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// Calendar returns the store as a HolidayCalendar for the calculator.
func (s *Store) Calendar() engine.HolidayCalendar { return s }

// =============================================================================
// HELPERS
// =============================================================================

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &engine.PersistenceError{Op: op, Err: err}
}

func nullUserID(id *engine.UserID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}

func nullProjectID(id *engine.ProjectID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}
