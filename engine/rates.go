/*
rates.go - Rate resolution with time-bounded overrides

PURPOSE:
  Resolves the hourly rate for a (user, project, date) triple from the
  rate table. Pure lookup: no side effects, no mutation.

SEARCH ORDER (most specific wins):
  1. user+project entry effective on the date
  2. project-wide entry
  3. user-wide entry
  4. RateNotFoundError

INVARIANT:
  At most one entry per specificity tier may be effective for a given
  date. Two covering entries in the same tier is a rate-table corruption
  and surfaces as OverlappingRateError rather than picking one silently.

WHY NO DEFAULT:
  A missing rate must never fall back to zero. A zero rate flows straight
  into gross pay and corrupts a payroll export; the error has to reach
  the operator instead.
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateResolver resolves applicable hourly rates from a RateStore.
type RateResolver struct {
	Rates RateStore
}

func NewRateResolver(rates RateStore) *RateResolver {
	return &RateResolver{Rates: rates}
}

// Resolve returns the hourly rate for the user on the project at the date.
func (r *RateResolver) Resolve(ctx context.Context, userID UserID, projectID ProjectID, date Date) (decimal.Decimal, error) {
	entries, err := r.Rates.ListRates(ctx, userID, projectID)
	if err != nil {
		return decimal.Zero, &PersistenceError{Op: "list rates", Err: err}
	}

	// Bucket covering entries by specificity tier.
	var tiers [3][]RateEntry
	for _, e := range entries {
		if !e.Covers(date) {
			continue
		}
		if !matches(e, userID, projectID) {
			continue
		}
		if tier := e.Specificity(); tier < len(tiers) {
			tiers[tier] = append(tiers[tier], e)
		}
	}

	for _, candidates := range tiers {
		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0].HourlyRate, nil
		default:
			ids := make([]string, len(candidates))
			for i, c := range candidates {
				ids[i] = c.ID
			}
			return decimal.Zero, &OverlappingRateError{Date: date, EntryIDs: ids}
		}
	}

	return decimal.Zero, &RateNotFoundError{UserID: userID, ProjectID: projectID, Date: date}
}

// matches guards against a RateStore returning entries for other
// users/projects: an entry applies only when its scoped fields agree.
func matches(e RateEntry, userID UserID, projectID ProjectID) bool {
	if e.UserID != nil && *e.UserID != userID {
		return false
	}
	if e.ProjectID != nil && *e.ProjectID != projectID {
		return false
	}
	return true
}
