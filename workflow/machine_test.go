package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/workflow"
)

// =============================================================================
// TRANSITION TABLE TESTS
// =============================================================================

func TestNext_ApprovalChain(t *testing.T) {
	// GIVEN: The closed transition table
	// WHEN: Walking the happy path draft -> payroll_approved
	// THEN: Every hop resolves and lands on the expected status

	hops := []struct {
		from  engine.SheetStatus
		event workflow.Event
		to    engine.SheetStatus
	}{
		{engine.StatusDraft, workflow.EventSubmit, engine.StatusSubmitted},
		{engine.StatusSubmitted, workflow.EventClientApprove, engine.StatusClientApproved},
		{engine.StatusClientApproved, workflow.EventPayrollApprove, engine.StatusPayrollApproved},
	}
	for _, hop := range hops {
		to, ok := workflow.Next(hop.from, hop.event)
		assert.True(t, ok, "%s should accept %s", hop.from, hop.event)
		assert.Equal(t, hop.to, to)
	}
}

func TestNext_RejectionAndResubmission(t *testing.T) {
	// GIVEN: A record at either intermediate status
	// WHEN: Rejecting, then resubmitting
	// THEN: Both statuses reject to rejected, and rejected resubmits to submitted

	for _, from := range []engine.SheetStatus{engine.StatusSubmitted, engine.StatusClientApproved} {
		to, ok := workflow.Next(from, workflow.EventReject)
		assert.True(t, ok, "%s should be rejectable", from)
		assert.Equal(t, engine.StatusRejected, to)
	}

	to, ok := workflow.Next(engine.StatusRejected, workflow.EventResubmit)
	assert.True(t, ok)
	assert.Equal(t, engine.StatusSubmitted, to)
}

func TestNext_TerminalStatusAcceptsNothing(t *testing.T) {
	// GIVEN: A payroll_approved record
	// WHEN: Firing every event against it
	// THEN: All are refused

	events := []workflow.Event{
		workflow.EventSubmit,
		workflow.EventClientApprove,
		workflow.EventPayrollApprove,
		workflow.EventReject,
		workflow.EventResubmit,
	}
	for _, ev := range events {
		_, ok := workflow.Next(engine.StatusPayrollApproved, ev)
		assert.False(t, ok, "payroll_approved must not accept %s", ev)
	}
}

func TestNext_NoSkippingTheClientGate(t *testing.T) {
	// GIVEN: A submitted record
	// WHEN: Attempting payroll approval directly
	// THEN: Refused; the client gate cannot be skipped

	_, ok := workflow.Next(engine.StatusSubmitted, workflow.EventPayrollApprove)
	assert.False(t, ok)

	_, ok = workflow.Next(engine.StatusDraft, workflow.EventClientApprove)
	assert.False(t, ok, "draft must pass through submission first")
}
