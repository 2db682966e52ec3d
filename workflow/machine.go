/*
Package workflow implements the multi-party approval chain for timesheets
and expense reports.

PURPOSE:
  Governs the lifecycle draft -> submitted -> client_approved ->
  payroll_approved, with a rejected path that returns the record to the
  owner for resubmission. Every transition is role-gated, recorded as an
  Approval row, and persisted through a compare-and-set so concurrent
  approvers cannot both win.

STATE MACHINE:

  draft ──submit──▶ submitted ──client_approve──▶ client_approved
                       │                               │         │
                       │ reject                        │ reject  │ payroll_approve
                       ▼                               │         ▼
                   rejected ◀──────────────────────────┘  payroll_approved (terminal)
                       │
                       └──resubmit──▶ submitted

GUARDS (who may fire which event):
  submit          owner, entries non-empty
  client_approve  client_approver authorized for the sheet's client
  reject          client_approver or payroll from submitted;
                  payroll only from client_approved; reason required
  payroll_approve payroll
  resubmit        owner, from rejected; no-op if already submitted

SEE ALSO:
  - service.go: Orchestration, CAS persistence, Approval rows
  - engine/errors.go: InvalidTransitionError, ValidationError
*/
package workflow

import (
	"github.com/westend/payroll-engine/engine"
)

// Event is a workflow trigger.
type Event string

const (
	EventSubmit         Event = "submit"
	EventClientApprove  Event = "client_approve"
	EventPayrollApprove Event = "payroll_approve"
	EventReject         Event = "reject"
	EventResubmit       Event = "resubmit"
)

// transitions is the closed transition table. Anything not listed is an
// invalid transition, including every event from payroll_approved.
var transitions = map[engine.SheetStatus]map[Event]engine.SheetStatus{
	engine.StatusDraft: {
		EventSubmit: engine.StatusSubmitted,
	},
	engine.StatusSubmitted: {
		EventClientApprove: engine.StatusClientApproved,
		EventReject:        engine.StatusRejected,
	},
	engine.StatusClientApproved: {
		EventPayrollApprove: engine.StatusPayrollApproved,
		EventReject:         engine.StatusRejected,
	},
	engine.StatusRejected: {
		EventResubmit: engine.StatusSubmitted,
	},
}

// Next returns the destination status for (from, event), or false when the
// event is not legal from that status.
func Next(from engine.SheetStatus, event Event) (engine.SheetStatus, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// rejectableBy returns whether role may reject from the given status.
// Client approvers can reject at their own gate; payroll can reject at
// either gate.
func rejectableBy(from engine.SheetStatus, role engine.Role) bool {
	switch from {
	case engine.StatusSubmitted:
		return role == engine.RoleClientApprover || role == engine.RolePayroll
	case engine.StatusClientApproved:
		return role == engine.RolePayroll
	default:
		return false
	}
}
