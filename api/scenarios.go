/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, projects,
	users, rates, and tracked work that demonstrates specific features.

AVAILABLE SCENARIOS:

	single-consultant:  One consultant, one project, a plain 40h week
	overtime-weekend:   Long days plus Saturday work showing premiums
	multi-project:      Shared daily cap across two clients' projects
	expense-month:      A month of billable and overhead expenses

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create roster (client, project, users)
 3. Create rate entries
 4. Record time entries and expenses
 5. Drive some sheets partway through the approval chain

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overtime-weekend"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Error helpers and handler context
  - workflow/service.go: Used to submit and approve the seeded sheets
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/westend/payroll-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-consultant",
		Name:        "Single Consultant",
		Description: "One consultant on one project, a plain 40h week awaiting client approval",
	},
	{
		ID:          "overtime-weekend",
		Name:        "Overtime & Weekend",
		Description: "Ten-hour days plus Saturday work showing overtime and weekend premiums",
	},
	{
		ID:          "multi-project",
		Name:        "Multi-Project Week",
		Description: "One consultant split across two clients, daily cap shared in project order",
	},
	{
		ID:          "expense-month",
		Name:        "Expense Month",
		Description: "A month of billable and overhead expenses alongside an approved timesheet",
	},
}

// demoWeek is the Monday all scenarios seed around.
var demoWeek = engine.NewDate(2025, 3, 10)

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "single-consultant":
		err = h.loadSingleConsultant(ctx)
	case "overtime-weekend":
		err = h.loadOvertimeWeekend(ctx)
	case "multi-project":
		err = h.loadMultiProject(ctx)
	case "expense-month":
		err = h.loadExpenseMonth(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetDatabase clears all data without loading a scenario.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// ROSTER HELPERS
// =============================================================================

// seedRoster creates the shared cast: Acme with one project, a consultant,
// Acme's approver, and a payroll clerk. Returns the project ID.
func (h *Handler) seedRoster(ctx context.Context) (engine.ProjectID, error) {
	if err := h.Store.SaveClient(ctx, engine.Client{ID: "acme", Name: "Acme Logistics"}); err != nil {
		return "", err
	}
	budget := decimal.NewFromInt(50000)
	if err := h.Store.SaveProject(ctx, engine.Project{
		ID: "acme-rollout", ClientID: "acme", Name: "Warehouse Rollout",
		Code: "ACM-17", Status: engine.ProjectActive, Budget: &budget,
	}); err != nil {
		return "", err
	}
	users := []engine.User{
		{ID: "dana", Name: "Dana Whitfield", Email: "dana@agency.example", Role: engine.RoleEmployee, Department: "Field Services", Active: true},
		{ID: "marcus", Name: "Marcus Obi", Email: "marcus@acme.example", Role: engine.RoleClientApprover, ClientID: "acme", Active: true},
		{ID: "priya", Name: "Priya Nair", Email: "priya@agency.example", Role: engine.RolePayroll, Department: "Back Office", Active: true},
	}
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return "", err
		}
	}

	uid := engine.UserID("dana")
	pid := engine.ProjectID("acme-rollout")
	return pid, h.Store.SaveRate(ctx, engine.RateEntry{
		ID: "rate-dana-acme", UserID: &uid, ProjectID: &pid,
		HourlyRate:    decimal.RequireFromString("62.50"),
		EffectiveFrom: engine.NewDate(2025, 1, 1),
	})
}

func (h *Handler) seedEntries(ctx context.Context, pid engine.ProjectID, minutesByOffset map[int]int) error {
	for offset, minutes := range minutesByOffset {
		day := demoWeek.AddDays(offset)
		e := engine.TimeEntry{
			ID:        engine.EntryID("te-" + string(pid) + "-" + day.String()),
			UserID:    "dana",
			ProjectID: pid,
			Date:      day,
			Minutes:   minutes,
		}
		if err := h.Store.SaveTimeEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// submitWeek opens and submits Dana's sheet for the demo week.
func (h *Handler) submitWeek(ctx context.Context) (*engine.Timesheet, error) {
	ts, err := h.Service.CreateTimesheet(ctx, "dana", demoWeek)
	if err != nil {
		return nil, err
	}
	return h.Service.SubmitTimesheet(ctx, ts.ID, "dana")
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSingleConsultant: a plain 40h week, submitted and waiting on the
// client gate.
func (h *Handler) loadSingleConsultant(ctx context.Context) error {
	pid, err := h.seedRoster(ctx)
	if err != nil {
		return err
	}
	if err := h.seedEntries(ctx, pid, map[int]int{0: 480, 1: 480, 2: 480, 3: 480, 4: 480}); err != nil {
		return err
	}
	_, err = h.submitWeek(ctx)
	return err
}

// loadOvertimeWeekend: two 10h days and a Saturday, fully approved so the
// exports have something to show.
func (h *Handler) loadOvertimeWeekend(ctx context.Context) error {
	pid, err := h.seedRoster(ctx)
	if err != nil {
		return err
	}
	if err := h.seedEntries(ctx, pid, map[int]int{0: 600, 1: 600, 2: 480, 3: 480, 4: 480, 5: 300}); err != nil {
		return err
	}
	ts, err := h.submitWeek(ctx)
	if err != nil {
		return err
	}
	if ts, err = h.Service.ClientApproveTimesheet(ctx, ts.ID, "marcus", "Looks right"); err != nil {
		return err
	}
	_, err = h.Service.PayrollApproveTimesheet(ctx, ts.ID, "priya", "")
	return err
}

// loadMultiProject: a second client and project splitting Dana's days, so
// the regular-hours cap is consumed in project order.
func (h *Handler) loadMultiProject(ctx context.Context) error {
	pid, err := h.seedRoster(ctx)
	if err != nil {
		return err
	}
	if err := h.Store.SaveClient(ctx, engine.Client{ID: "borealis", Name: "Borealis Media"}); err != nil {
		return err
	}
	if err := h.Store.SaveProject(ctx, engine.Project{
		ID: "borealis-audit", ClientID: "borealis", Name: "Ad Spend Audit",
		Code: "BOR-3", Status: engine.ProjectActive,
	}); err != nil {
		return err
	}
	// Project-level rate, less specific than Dana's Acme rate.
	bid := engine.ProjectID("borealis-audit")
	if err := h.Store.SaveRate(ctx, engine.RateEntry{
		ID: "rate-borealis", ProjectID: &bid,
		HourlyRate:    decimal.RequireFromString("80"),
		EffectiveFrom: engine.NewDate(2025, 1, 1),
	}); err != nil {
		return err
	}

	if err := h.seedEntries(ctx, pid, map[int]int{0: 360, 1: 360, 2: 360}); err != nil {
		return err
	}
	if err := h.seedEntries(ctx, bid, map[int]int{0: 240, 1: 240, 2: 240}); err != nil {
		return err
	}
	_, err = h.submitWeek(ctx)
	return err
}

// loadExpenseMonth: an approved timesheet plus a month of expenses, some
// billable to Acme and some agency overhead.
func (h *Handler) loadExpenseMonth(ctx context.Context) error {
	if err := h.loadOvertimeWeekend(ctx); err != nil {
		return err
	}
	pid := engine.ProjectID("acme-rollout")

	expenses := []engine.ExpenseItem{
		{ID: "ex-1", UserID: "dana", ProjectID: &pid, CategoryID: "travel",
			Date: demoWeek.AddDays(1), Amount: decimal.RequireFromString("184.20"), Billable: true},
		{ID: "ex-2", UserID: "dana", ProjectID: &pid, CategoryID: "meals",
			Date: demoWeek.AddDays(3), Amount: decimal.RequireFromString("42.75"), Billable: true},
		{ID: "ex-3", UserID: "dana", CategoryID: "equipment",
			Date: demoWeek.AddDays(8), Amount: decimal.RequireFromString("129.99"), Billable: false},
	}
	for _, e := range expenses {
		if err := h.Store.SaveExpense(ctx, e); err != nil {
			return err
		}
	}

	rep, err := h.Service.CreateReport(ctx, "dana", demoWeek)
	if err != nil {
		return err
	}
	if rep, err = h.Service.SubmitReport(ctx, rep.ID, "dana"); err != nil {
		return err
	}
	if rep, err = h.Service.ClientApproveReport(ctx, rep.ID, "marcus", ""); err != nil {
		return err
	}
	_, err = h.Service.PayrollApproveReport(ctx, rep.ID, "priya", "")
	return err
}
