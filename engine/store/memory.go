// Package store provides engine.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/westend/payroll-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	users       map[engine.UserID]engine.User
	clients     map[engine.ClientID]engine.Client
	projects    map[engine.ProjectID]engine.Project
	rates       []engine.RateEntry
	timeEntries map[engine.EntryID]engine.TimeEntry
	expenses    map[engine.ExpenseID]engine.ExpenseItem
	timesheets  map[engine.TimesheetID]engine.Timesheet
	reports     map[engine.ReportID]engine.ExpenseReport
	approvals   []engine.Approval
}

var _ engine.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[engine.UserID]engine.User),
		clients:     make(map[engine.ClientID]engine.Client),
		projects:    make(map[engine.ProjectID]engine.Project),
		timeEntries: make(map[engine.EntryID]engine.TimeEntry),
		expenses:    make(map[engine.ExpenseID]engine.ExpenseItem),
		timesheets:  make(map[engine.TimesheetID]engine.Timesheet),
		reports:     make(map[engine.ReportID]engine.ExpenseReport),
	}
}

// =============================================================================
// SEEDING - Test/dev fixtures go in through these
// =============================================================================

func (m *Memory) PutUser(u engine.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutClient(c engine.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

func (m *Memory) PutProject(p engine.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

func (m *Memory) PutRate(r engine.RateEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = append(m.rates, r)
}

func (m *Memory) PutTimeEntry(e engine.TimeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeEntries[e.ID] = e
}

func (m *Memory) PutExpense(e engine.ExpenseItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = e
}

// =============================================================================
// ROSTER STORE
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id engine.UserID) (*engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetClient(_ context.Context, id engine.ClientID) (*engine.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) GetProject(_ context.Context, id engine.ProjectID) (*engine.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListProjectsByClient(_ context.Context, id engine.ClientID) ([]engine.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Project
	for _, p := range m.projects {
		if p.ClientID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// RATE STORE
// =============================================================================

func (m *Memory) ListRates(_ context.Context, userID engine.UserID, projectID engine.ProjectID) ([]engine.RateEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.RateEntry
	for _, r := range m.rates {
		userMatch := r.UserID == nil || *r.UserID == userID
		projectMatch := r.ProjectID == nil || *r.ProjectID == projectID
		if userMatch && projectMatch {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) ListTimeEntriesByUserAndRange(_ context.Context, userID engine.UserID, period engine.Period) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.TimeEntry
	for _, e := range m.timeEntries {
		if e.UserID == userID && period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sortTimeEntries(out)
	return out, nil
}

func (m *Memory) ListTimeEntriesByProjectAndRange(_ context.Context, projectID engine.ProjectID, period engine.Period) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.TimeEntry
	for _, e := range m.timeEntries {
		if e.ProjectID == projectID && period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sortTimeEntries(out)
	return out, nil
}

func (m *Memory) ListExpensesByUserAndRange(_ context.Context, userID engine.UserID, period engine.Period) ([]engine.ExpenseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ExpenseItem
	for _, e := range m.expenses {
		if e.UserID == userID && period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (m *Memory) ListExpensesByProjectAndRange(_ context.Context, projectID engine.ProjectID, period engine.Period) ([]engine.ExpenseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ExpenseItem
	for _, e := range m.expenses {
		if e.ProjectID != nil && *e.ProjectID == projectID && period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

// =============================================================================
// SHEET STORE
// =============================================================================

func (m *Memory) GetTimesheet(_ context.Context, id engine.TimesheetID) (*engine.Timesheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.timesheets[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &ts, nil
}

func (m *Memory) ListTimesheetsByUser(_ context.Context, userID engine.UserID) ([]engine.Timesheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Timesheet
	for _, ts := range m.timesheets {
		if ts.UserID == userID {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out, nil
}

func (m *Memory) ListTimesheetsByStatus(_ context.Context, status engine.SheetStatus) ([]engine.Timesheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Timesheet
	for _, ts := range m.timesheets {
		if ts.Status == status {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveTimesheet upserts the data columns. On an existing row, Status and
// Version are preserved: workflow position moves only through
// UpdateTimesheetStatus, so a save of a stale copy cannot roll back a
// transition that landed in between.
func (m *Memory) SaveTimesheet(_ context.Context, ts *engine.Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *ts
	if prev, ok := m.timesheets[ts.ID]; ok {
		saved.Status = prev.Status
		saved.Version = prev.Version
	}
	m.timesheets[ts.ID] = saved
	return nil
}

func (m *Memory) UpdateTimesheetStatus(_ context.Context, id engine.TimesheetID, expectVersion int, to engine.SheetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.timesheets[id]
	if !ok {
		return engine.ErrNotFound
	}
	if ts.Version != expectVersion {
		return engine.ErrConcurrentModification
	}
	ts.Status = to
	ts.Version++
	m.timesheets[id] = ts
	return nil
}

func (m *Memory) GetReport(_ context.Context, id engine.ReportID) (*engine.ExpenseReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListReportsByUser(_ context.Context, userID engine.UserID) ([]engine.ExpenseReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ExpenseReport
	for _, r := range m.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthStart.Before(out[j].MonthStart) })
	return out, nil
}

func (m *Memory) ListReportsByStatus(_ context.Context, status engine.SheetStatus) ([]engine.ExpenseReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ExpenseReport
	for _, r := range m.reports {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveReport upserts the data columns, preserving Status and Version on
// an existing row the same way SaveTimesheet does.
func (m *Memory) SaveReport(_ context.Context, r *engine.ExpenseReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *r
	if prev, ok := m.reports[r.ID]; ok {
		saved.Status = prev.Status
		saved.Version = prev.Version
	}
	m.reports[r.ID] = saved
	return nil
}

func (m *Memory) UpdateReportStatus(_ context.Context, id engine.ReportID, expectVersion int, to engine.SheetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return engine.ErrNotFound
	}
	if r.Version != expectVersion {
		return engine.ErrConcurrentModification
	}
	r.Status = to
	r.Version++
	m.reports[id] = r
	return nil
}

// =============================================================================
// APPROVAL STORE
// =============================================================================

func (m *Memory) AppendApproval(_ context.Context, a engine.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, a)
	return nil
}

func (m *Memory) ListApprovalsByTimesheet(_ context.Context, id engine.TimesheetID) ([]engine.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Approval
	for _, a := range m.approvals {
		if a.TimesheetID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ListApprovalsByReport(_ context.Context, id engine.ReportID) ([]engine.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Approval
	for _, a := range m.approvals {
		if a.ExpenseReportID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// SORT HELPERS
// =============================================================================

func sortTimeEntries(entries []engine.TimeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}

func sortExpenses(items []engine.ExpenseItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
}
