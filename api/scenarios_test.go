/*
scenarios_test.go - Tests for demo scenario loading

PURPOSE:
  Verifies each scenario loads cleanly over HTTP and leaves the store in
  the state its description promises.
*/
package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]string](t, rec)
	require.NotEmpty(t, list)
	assert.Equal(t, "single-consultant", list[0]["id"])
}

func TestLoadEachScenario(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Loading every advertised scenario in turn
	// THEN: Each load succeeds and becomes the current scenario

	router := newTestRouter(t)

	for _, id := range []string{"single-consultant", "overtime-weekend", "multi-project", "expense-month"} {
		loadScenario(t, router, id)

		rec := doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		current := decode[map[string]string](t, rec)
		assert.Equal(t, id, current["id"])
	}
}

func TestLoadUnknownScenarioIs400(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOvertimeScenarioFeedsExports(t *testing.T) {
	// GIVEN: The fully approved overtime-weekend scenario
	// WHEN: Fetching the payroll export for that week
	// THEN: Dana's row is present with premium hours

	router := newTestRouter(t)
	loadScenario(t, router, "overtime-weekend")

	rec := doJSON(t, router, http.MethodGet, "/api/exports/payroll?from=2025-03-01&to=2025-03-31&format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "dana", rows[0]["user_id"])
	assert.Equal(t, "4", rows[0]["overtime_hours"])
	assert.Equal(t, "5", rows[0]["weekend_hours"])
}

func TestResetClearsScenario(t *testing.T) {
	// GIVEN: A loaded scenario
	// WHEN: Resetting the database
	// THEN: Users are gone and no scenario is current

	router := newTestRouter(t)
	loadScenario(t, router, "single-consultant")

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/users/dana/timesheets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
