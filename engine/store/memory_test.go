package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/engine/store"
)

func memSheet(t *testing.T, mem *store.Memory) *engine.Timesheet {
	t.Helper()
	ts := &engine.Timesheet{
		ID:        "ts-1",
		UserID:    "emp-1",
		WeekStart: engine.NewDate(2025, 3, 10),
		Status:    engine.StatusSubmitted,
		Buckets:   engine.ZeroBuckets(),
		GrossPay:  decimal.RequireFromString("800"),
	}
	require.NoError(t, mem.SaveTimesheet(context.Background(), ts))
	return ts
}

func TestMemorySaveTimesheet_DoesNotTouchWorkflowPosition(t *testing.T) {
	// GIVEN: A timesheet advanced to client_approved, version 1
	// WHEN: Saving recalculated totals with a stale in-memory copy
	// THEN: Totals update; status and version stay where the CAS put them

	mem := store.NewMemory()
	ctx := context.Background()
	ts := memSheet(t, mem)
	require.NoError(t, mem.UpdateTimesheetStatus(ctx, ts.ID, 0, engine.StatusClientApproved))

	stale := *ts // still submitted, version 0
	stale.GrossPay = decimal.RequireFromString("900")
	require.NoError(t, mem.SaveTimesheet(ctx, &stale))

	got, err := mem.GetTimesheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.True(t, got.GrossPay.Equal(decimal.RequireFromString("900")))
	assert.Equal(t, engine.StatusClientApproved, got.Status)
	assert.Equal(t, 1, got.Version)
}

func TestMemorySaveTimesheet_StaleSaveCannotUnlockCAS(t *testing.T) {
	// GIVEN: Two actors holding the same version-0 copy
	// WHEN: The winner saves and transitions, then the loser saves its
	//       stale copy and tries the same version-0 transition
	// THEN: The loser's CAS conflicts; the stale save did not roll the
	//       version back

	mem := store.NewMemory()
	ctx := context.Background()
	winner := memSheet(t, mem)
	loser := *winner

	require.NoError(t, mem.SaveTimesheet(ctx, winner))
	require.NoError(t, mem.UpdateTimesheetStatus(ctx, winner.ID, 0, engine.StatusClientApproved))

	require.NoError(t, mem.SaveTimesheet(ctx, &loser))
	err := mem.UpdateTimesheetStatus(ctx, loser.ID, 0, engine.StatusClientApproved)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)

	got, err := mem.GetTimesheet(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestMemorySaveReport_DoesNotTouchWorkflowPosition(t *testing.T) {
	// GIVEN: A report advanced to client_approved, version 1
	// WHEN: Saving a recalculated total with a stale copy
	// THEN: Status and version stay where the CAS put them

	mem := store.NewMemory()
	ctx := context.Background()
	rep := &engine.ExpenseReport{
		ID:         "rep-1",
		UserID:     "emp-1",
		MonthStart: engine.NewDate(2025, 3, 1),
		Status:     engine.StatusSubmitted,
		Total:      decimal.RequireFromString("150.50"),
	}
	require.NoError(t, mem.SaveReport(ctx, rep))
	require.NoError(t, mem.UpdateReportStatus(ctx, rep.ID, 0, engine.StatusClientApproved))

	stale := *rep
	stale.Total = decimal.RequireFromString("200")
	require.NoError(t, mem.SaveReport(ctx, &stale))

	got, err := mem.GetReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("200")))
	assert.Equal(t, engine.StatusClientApproved, got.Status)
	assert.Equal(t, 1, got.Version)
}
