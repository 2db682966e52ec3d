/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. zap logger: Structured request logging
  4. CORS:       Cross-origin requests for the portal frontend

ROUTE GROUPS:
  /api/timesheets/*   Timesheet lifecycle
  /api/reports/*      Expense report lifecycle
  /api/users/*        Per-user listings and pay preview
  /api/exports/*      Payroll, billing, compliance datasets
  /api/holidays/*     Holiday calendar
  /api/scenarios/*    Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware currently. Callers identify themselves
  through the actor_id field and the service enforces role checks.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Timesheet routes
		r.Route("/timesheets", func(r chi.Router) {
			r.Post("/", h.CreateTimesheet)
			r.Get("/{id}", h.GetTimesheet)
			r.Get("/{id}/approvals", h.ListTimesheetApprovals)
			r.Post("/{id}/submit", h.TransitionTimesheet("submit"))
			r.Post("/{id}/client-approve", h.TransitionTimesheet("client-approve"))
			r.Post("/{id}/payroll-approve", h.TransitionTimesheet("payroll-approve"))
			r.Post("/{id}/reject", h.TransitionTimesheet("reject"))
			r.Post("/{id}/resubmit", h.TransitionTimesheet("resubmit"))
		})

		// Expense report routes
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", h.CreateReport)
			r.Get("/{id}", h.GetReport)
			r.Get("/{id}/approvals", h.ListReportApprovals)
			r.Post("/{id}/submit", h.TransitionReport("submit"))
			r.Post("/{id}/client-approve", h.TransitionReport("client-approve"))
			r.Post("/{id}/payroll-approve", h.TransitionReport("payroll-approve"))
			r.Post("/{id}/reject", h.TransitionReport("reject"))
			r.Post("/{id}/resubmit", h.TransitionReport("resubmit"))
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/timesheets", h.ListUserTimesheets)
			r.Get("/{id}/reports", h.ListUserReports)
			r.Get("/{id}/pay-preview", h.PayPreview)
		})

		// Export routes
		r.Route("/exports", func(r chi.Router) {
			r.Get("/workbook", h.ExportWorkbook)
			r.Get("/{kind}", h.Export)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{date}", h.DeleteHoliday)
		})

		// Scenario routes (development and demo)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
