package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westend/payroll-engine/engine"
	"github.com/westend/payroll-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func rateEntry(id string, userID *engine.UserID, projectID *engine.ProjectID, rate string, from engine.Date, to *engine.Date) engine.RateEntry {
	return engine.RateEntry{
		ID: id, UserID: userID, ProjectID: projectID,
		HourlyRate:    d(rate),
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
}

func uid(s string) *engine.UserID       { id := engine.UserID(s); return &id }
func pid(s string) *engine.ProjectID    { id := engine.ProjectID(s); return &id }
func datep(d engine.Date) *engine.Date  { return &d }

// =============================================================================
// SEARCH ORDER TESTS
// =============================================================================

func TestResolve_MostSpecificWins(t *testing.T) {
	// GIVEN: Covering entries at every specificity tier
	// WHEN: Resolving (emp-1, proj-1)
	// THEN: The user+project entry beats project-wide beats user-wide

	mem := store.NewMemory()
	from := engine.NewDate(2025, 1, 1)
	mem.PutRate(rateEntry("r-user", uid("emp-1"), nil, "40", from, nil))
	mem.PutRate(rateEntry("r-proj", nil, pid("proj-1"), "50", from, nil))
	mem.PutRate(rateEntry("r-both", uid("emp-1"), pid("proj-1"), "65", from, nil))
	r := engine.NewRateResolver(mem)

	rate, err := r.Resolve(context.Background(), "emp-1", "proj-1", mon)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("65")), "got %s", rate)
}

func TestResolve_FallsBackThroughTiers(t *testing.T) {
	// GIVEN: Only project-wide and user-wide entries
	// WHEN: Resolving, then again with the project entry expired
	// THEN: Project-wide first; after it lapses, the user-wide entry

	mem := store.NewMemory()
	from := engine.NewDate(2025, 1, 1)
	projEnd := engine.NewDate(2025, 2, 28)
	mem.PutRate(rateEntry("r-proj", nil, pid("proj-1"), "50", from, datep(projEnd)))
	mem.PutRate(rateEntry("r-user", uid("emp-1"), nil, "40", from, nil))
	r := engine.NewRateResolver(mem)
	ctx := context.Background()

	rate, err := r.Resolve(ctx, "emp-1", "proj-1", engine.NewDate(2025, 2, 10))
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("50")))

	rate, err = r.Resolve(ctx, "emp-1", "proj-1", mon) // March 10
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("40")))
}

// =============================================================================
// FAILURE MODE TESTS
// =============================================================================

func TestResolve_NoCoverageNeverDefaultsToZero(t *testing.T) {
	// GIVEN: A rate table with nothing effective on the date
	// WHEN: Resolving
	// THEN: RateNotFoundError carrying the triple, never decimal.Zero with nil error

	mem := store.NewMemory()
	mem.PutRate(rateEntry("r-future", uid("emp-1"), nil, "40", engine.NewDate(2026, 1, 1), nil))
	r := engine.NewRateResolver(mem)

	_, err := r.Resolve(context.Background(), "emp-1", "proj-1", mon)

	var nf *engine.RateNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, engine.UserID("emp-1"), nf.UserID)
	assert.Equal(t, engine.ProjectID("proj-1"), nf.ProjectID)
	assert.ErrorIs(t, err, engine.ErrRateNotFound)
}

func TestResolve_OverlapInSameTier(t *testing.T) {
	// GIVEN: Two project-wide entries both covering the date
	// WHEN: Resolving
	// THEN: OverlappingRateError naming both entries, no silent pick

	mem := store.NewMemory()
	from := engine.NewDate(2025, 1, 1)
	mem.PutRate(rateEntry("r-a", nil, pid("proj-1"), "50", from, nil))
	mem.PutRate(rateEntry("r-b", nil, pid("proj-1"), "55", from, nil))
	r := engine.NewRateResolver(mem)

	_, err := r.Resolve(context.Background(), "emp-1", "proj-1", mon)

	var overlap *engine.OverlappingRateError
	require.ErrorAs(t, err, &overlap)
	assert.ElementsMatch(t, []string{"r-a", "r-b"}, overlap.EntryIDs)
}

func TestResolve_EffectiveWindowIsInclusive(t *testing.T) {
	// GIVEN: An entry effective March 1 through March 31
	// WHEN: Resolving on both boundary dates and just outside
	// THEN: Boundaries resolve; the day after fails

	mem := store.NewMemory()
	from := engine.NewDate(2025, 3, 1)
	to := engine.NewDate(2025, 3, 31)
	mem.PutRate(rateEntry("r-march", uid("emp-1"), nil, "45", from, datep(to)))
	r := engine.NewRateResolver(mem)
	ctx := context.Background()

	for _, day := range []engine.Date{from, to} {
		rate, err := r.Resolve(ctx, "emp-1", "proj-1", day)
		require.NoError(t, err, "date %s should be covered", day)
		assert.True(t, rate.Equal(d("45")))
	}

	_, err := r.Resolve(ctx, "emp-1", "proj-1", to.AddDays(1))
	assert.ErrorIs(t, err, engine.ErrRateNotFound)
}
