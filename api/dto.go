/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the workflow service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/westend/payroll-engine/engine"
)

// =============================================================================
// TIMESHEET / REPORT TYPES
// =============================================================================

// TimesheetDTO represents a timesheet in API responses.
type TimesheetDTO struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	WeekStart string     `json:"week_start"`
	Status    string     `json:"status"`
	Version   int        `json:"version"`
	Buckets   BucketsDTO `json:"buckets"`
	GrossPay  string     `json:"gross_pay"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

// BucketsDTO carries classified hours as decimal strings.
type BucketsDTO struct {
	Regular  string `json:"regular"`
	Overtime string `json:"overtime"`
	Weekend  string `json:"weekend"`
	Holiday  string `json:"holiday"`
}

// ReportDTO represents an expense report in API responses.
type ReportDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	MonthStart string `json:"month_start"`
	Status     string `json:"status"`
	Version    int    `json:"version"`
	Total      string `json:"total"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// ApprovalDTO is one audit-trail row.
type ApprovalDTO struct {
	ID           string `json:"id"`
	ApproverID   string `json:"approver_id"`
	ApproverRole string `json:"approver_role"`
	Status       string `json:"status"`
	Comment      string `json:"comment,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// DayPayDTO is one day of a pay preview.
type DayPayDTO struct {
	Date     string     `json:"date"`
	Buckets  BucketsDTO `json:"buckets"`
	GrossPay string     `json:"gross_pay"`
}

// PayPreviewDTO is a computed week without workflow side effects.
type PayPreviewDTO struct {
	WeekStart string      `json:"week_start"`
	WeekEnd   string      `json:"week_end"`
	Days      []DayPayDTO `json:"days"`
	Buckets   BucketsDTO  `json:"buckets"`
	GrossPay  string      `json:"gross_pay"`
}

// HolidayDTO represents one calendar entry.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateTimesheetRequest opens a draft timesheet for the week of a date.
type CreateTimesheetRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// CreateReportRequest opens a draft expense report for the month of a date.
type CreateReportRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// TransitionRequest drives one workflow transition.
type TransitionRequest struct {
	ActorID string `json:"actor_id"`
	Comment string `json:"comment,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBucketsDTO(b engine.HourBuckets) BucketsDTO {
	return BucketsDTO{
		Regular:  b.Regular.String(),
		Overtime: b.Overtime.String(),
		Weekend:  b.Weekend.String(),
		Holiday:  b.Holiday.String(),
	}
}

func toTimesheetDTO(ts *engine.Timesheet) TimesheetDTO {
	return TimesheetDTO{
		ID:        string(ts.ID),
		UserID:    string(ts.UserID),
		WeekStart: ts.WeekStart.String(),
		Status:    string(ts.Status),
		Version:   ts.Version,
		Buckets:   toBucketsDTO(ts.Buckets),
		GrossPay:  ts.GrossPay.StringFixed(2),
		UpdatedAt: ts.UpdatedAt.Format(time.RFC3339),
	}
}

func toReportDTO(r *engine.ExpenseReport) ReportDTO {
	return ReportDTO{
		ID:         string(r.ID),
		UserID:     string(r.UserID),
		MonthStart: r.MonthStart.String(),
		Status:     string(r.Status),
		Version:    r.Version,
		Total:      r.Total.StringFixed(2),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
}

func toApprovalDTOs(approvals []engine.Approval) []ApprovalDTO {
	dtos := make([]ApprovalDTO, len(approvals))
	for i, a := range approvals {
		dtos[i] = ApprovalDTO{
			ID:           string(a.ID),
			ApproverID:   string(a.ApproverID),
			ApproverRole: string(a.ApproverRole),
			Status:       string(a.Status),
			Comment:      a.Comment,
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

func toPayPreviewDTO(wp engine.WeekPay) PayPreviewDTO {
	days := make([]DayPayDTO, len(wp.Days))
	for i, dp := range wp.Days {
		days[i] = DayPayDTO{
			Date:     dp.Date.String(),
			Buckets:  toBucketsDTO(dp.Buckets),
			GrossPay: dp.GrossPay.StringFixed(2),
		}
	}
	return PayPreviewDTO{
		WeekStart: wp.Week.Start.String(),
		WeekEnd:   wp.Week.End.String(),
		Days:      days,
		Buckets:   toBucketsDTO(wp.Buckets),
		GrossPay:  wp.GrossPay.StringFixed(2),
	}
}
