/*
handlers.go - HTTP API handlers for the approval and pay engine

PURPOSE:
  Exposes the workflow service and export builder via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Timesheets:
    POST   /api/timesheets                        Open a draft for a week
    GET    /api/timesheets/{id}                   Get one timesheet
    GET    /api/timesheets/{id}/approvals         Audit trail
    POST   /api/timesheets/{id}/submit            draft -> submitted
    POST   /api/timesheets/{id}/client-approve    submitted -> client_approved
    POST   /api/timesheets/{id}/payroll-approve   client_approved -> payroll_approved
    POST   /api/timesheets/{id}/reject            -> rejected (reason required)
    POST   /api/timesheets/{id}/resubmit          rejected -> submitted

  Expense reports: same verbs under /api/reports

  Users:
    GET    /api/users/{id}/timesheets
    GET    /api/users/{id}/reports
    GET    /api/users/{id}/pay-preview?date=YYYY-MM-DD

  Exports:
    GET    /api/exports/{kind}?from=&to=&format=csv|json   kind: payroll|billing|compliance
    GET    /api/exports/workbook?from=&to=                 xlsx, all three sheets

  Holidays:
    GET    /api/holidays
    POST   /api/holidays
    DELETE /api/holidays/{date}

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unresolvable rate
  - 404: Resource not found
  - 409: Refused transition or lost concurrent race
  - 500: Persistence and other internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - workflow/service.go: Transition semantics
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/export"
	"github.com/westend/payroll-engine/store/sqlite"
	"github.com/westend/payroll-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *workflow.Service
	Exports *export.Builder
	Log     *zap.Logger

	currentScenario string
}

// NewHandler creates a new handler around the store.
func NewHandler(store *sqlite.Store, svc *workflow.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Service: svc,
		Exports: export.NewBuilder(store, log),
		Log:     log,
	}
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// CreateTimesheet opens a draft timesheet.
// POST /api/timesheets
func (h *Handler) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	var req CreateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	ts, err := h.Service.CreateTimesheet(r.Context(), engine.UserID(req.UserID), day)
	if err != nil {
		h.writeDomainError(w, "Failed to create timesheet", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimesheetDTO(ts))
}

// GetTimesheet returns a single timesheet.
// GET /api/timesheets/{id}
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	id := engine.TimesheetID(chi.URLParam(r, "id"))

	ts, err := h.Store.GetTimesheet(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get timesheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// ListTimesheetApprovals returns the audit trail for a timesheet.
// GET /api/timesheets/{id}/approvals
func (h *Handler) ListTimesheetApprovals(w http.ResponseWriter, r *http.Request) {
	id := engine.TimesheetID(chi.URLParam(r, "id"))

	approvals, err := h.Store.ListApprovalsByTimesheet(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTOs(approvals))
}

// TransitionTimesheet dispatches one workflow event against a timesheet.
// POST /api/timesheets/{id}/{submit|client-approve|payroll-approve|reject|resubmit}
func (h *Handler) TransitionTimesheet(event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := engine.TimesheetID(chi.URLParam(r, "id"))
		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		actor := engine.UserID(req.ActorID)
		ctx := r.Context()

		var ts *engine.Timesheet
		var err error
		switch event {
		case "submit":
			ts, err = h.Service.SubmitTimesheet(ctx, id, actor)
		case "client-approve":
			ts, err = h.Service.ClientApproveTimesheet(ctx, id, actor, req.Comment)
		case "payroll-approve":
			ts, err = h.Service.PayrollApproveTimesheet(ctx, id, actor, req.Comment)
		case "reject":
			ts, err = h.Service.RejectTimesheet(ctx, id, actor, req.Reason)
		case "resubmit":
			ts, err = h.Service.ResubmitTimesheet(ctx, id, actor)
		default:
			writeError(w, http.StatusNotFound, "Unknown transition", nil)
			return
		}
		if err != nil {
			h.writeDomainError(w, "Transition refused", err)
			return
		}
		writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
	}
}

// =============================================================================
// EXPENSE REPORT HANDLERS
// =============================================================================

// CreateReport opens a draft expense report.
// POST /api/reports
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	rep, err := h.Service.CreateReport(r.Context(), engine.UserID(req.UserID), day)
	if err != nil {
		h.writeDomainError(w, "Failed to create report", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportDTO(rep))
}

// GetReport returns a single expense report.
// GET /api/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := engine.ReportID(chi.URLParam(r, "id"))

	rep, err := h.Store.GetReport(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// ListReportApprovals returns the audit trail for an expense report.
// GET /api/reports/{id}/approvals
func (h *Handler) ListReportApprovals(w http.ResponseWriter, r *http.Request) {
	id := engine.ReportID(chi.URLParam(r, "id"))

	approvals, err := h.Store.ListApprovalsByReport(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTOs(approvals))
}

// TransitionReport dispatches one workflow event against a report.
func (h *Handler) TransitionReport(event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := engine.ReportID(chi.URLParam(r, "id"))
		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		actor := engine.UserID(req.ActorID)
		ctx := r.Context()

		var rep *engine.ExpenseReport
		var err error
		switch event {
		case "submit":
			rep, err = h.Service.SubmitReport(ctx, id, actor)
		case "client-approve":
			rep, err = h.Service.ClientApproveReport(ctx, id, actor, req.Comment)
		case "payroll-approve":
			rep, err = h.Service.PayrollApproveReport(ctx, id, actor, req.Comment)
		case "reject":
			rep, err = h.Service.RejectReport(ctx, id, actor, req.Reason)
		case "resubmit":
			rep, err = h.Service.ResubmitReport(ctx, id, actor)
		default:
			writeError(w, http.StatusNotFound, "Unknown transition", nil)
			return
		}
		if err != nil {
			h.writeDomainError(w, "Transition refused", err)
			return
		}
		writeJSON(w, http.StatusOK, toReportDTO(rep))
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUserTimesheets returns a user's timesheets.
// GET /api/users/{id}/timesheets
func (h *Handler) ListUserTimesheets(w http.ResponseWriter, r *http.Request) {
	id := engine.UserID(chi.URLParam(r, "id"))

	sheets, err := h.Store.ListTimesheetsByUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list timesheets", err)
		return
	}
	dtos := make([]TimesheetDTO, len(sheets))
	for i := range sheets {
		dtos[i] = toTimesheetDTO(&sheets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUserReports returns a user's expense reports.
// GET /api/users/{id}/reports
func (h *Handler) ListUserReports(w http.ResponseWriter, r *http.Request) {
	id := engine.UserID(chi.URLParam(r, "id"))

	reports, err := h.Store.ListReportsByUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list reports", err)
		return
	}
	dtos := make([]ReportDTO, len(reports))
	for i := range reports {
		dtos[i] = toReportDTO(&reports[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PayPreview calculates a user's week without workflow side effects.
// GET /api/users/{id}/pay-preview?date=YYYY-MM-DD
func (h *Handler) PayPreview(w http.ResponseWriter, r *http.Request) {
	id := engine.UserID(chi.URLParam(r, "id"))
	day, err := engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing date", err)
		return
	}

	wp, err := h.Service.PayPreview(r.Context(), id, engine.WeekOf(day))
	if err != nil {
		h.writeDomainError(w, "Failed to calculate preview", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayPreviewDTO(wp))
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// Export streams one export dataset.
// GET /api/exports/{kind}?from=&to=&format=csv|json
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		writeError(w, http.StatusBadRequest, "Unsupported format: "+format, nil)
		return
	}
	ctx := r.Context()

	switch kind := chi.URLParam(r, "kind"); kind {
	case "payroll":
		rows, err := h.Exports.PayrollRows(ctx, period)
		streamRows(w, h, kind, format, rows, err)
	case "billing":
		rows, err := h.Exports.BillingRows(ctx, period)
		streamRows(w, h, kind, format, rows, err)
	case "compliance":
		rows, err := h.Exports.ComplianceRows(ctx, period)
		streamRows(w, h, kind, format, rows, err)
	default:
		writeError(w, http.StatusNotFound, "Unknown export kind: "+kind, nil)
	}
}

// ExportWorkbook streams all three datasets as one xlsx workbook.
// GET /api/exports/workbook?from=&to=
func (h *Handler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	payroll, err := h.Exports.PayrollRows(ctx, period)
	if err != nil {
		h.writeDomainError(w, "Failed to build payroll rows", err)
		return
	}
	billing, err := h.Exports.BillingRows(ctx, period)
	if err != nil {
		h.writeDomainError(w, "Failed to build billing rows", err)
		return
	}
	compliance, err := h.Exports.ComplianceRows(ctx, period)
	if err != nil {
		h.writeDomainError(w, "Failed to build compliance rows", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="export.xlsx"`)
	if err := export.WriteWorkbook(w, payroll, billing, compliance); err != nil {
		h.Log.Error("workbook write failed", zap.Error(err))
	}
}

func streamRows[R export.Row](w http.ResponseWriter, h *Handler, kind, format string, rows []R, err error) {
	if err != nil {
		h.writeDomainError(w, "Failed to build export", err)
		return
	}
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, rows)
	default:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+kind+`.csv"`)
		err = export.WriteCSV(w, rows)
	}
	if err != nil {
		h.Log.Error("export write failed", zap.String("kind", kind), zap.Error(err))
	}
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (engine.Period, bool) {
	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing from", err)
		return engine.Period{}, false
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing to", err)
		return engine.Period{}, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to precedes from", nil)
		return engine.Period{}, false
	}
	return engine.Period{Start: from, End: to}, true
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the injected calendar.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{Date: hol.Date.String(), Name: hol.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a calendar entry.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	if err := h.Store.SaveHoliday(r.Context(), sqlite.Holiday{Date: day, Name: req.Name}); err != nil {
		h.writeDomainError(w, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DeleteHoliday removes a calendar entry.
// DELETE /api/holidays/{date}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	day, err := engine.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if err := h.Store.DeleteHoliday(r.Context(), day); err != nil {
		h.writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Conflicts
// are checked before the broader client-error class so a refused
// transition or lost race always surfaces as 409.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
