// Package recurrence computes the next eligible run date for a payment
// schedule. It is pure: the current time is an explicit input and nothing
// here reads a clock, so the payout cycle is testable with injected time.
package recurrence

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
)

// NextRun projects reference forward until it is strictly after now.
//
// A reference already in the future is returned unchanged for every
// frequency, and one_time never re-projects. Monthly advancement uses
// calendar months via time.AddDate, which normalizes overflow (Jan 31 + 1
// month lands in early March); see the month-end tests for the exact policy.
// customDays is only consulted for the custom frequency; callers guarantee
// it is positive there (enforced at schedule creation), and a non-positive
// value returns reference unchanged.
func NextRun(freq model.Frequency, reference, now time.Time, customDays int) time.Time {
	next := reference

	if next.After(now) {
		return next
	}

	switch freq {
	case model.FrequencyOneTime:
		return next
	case model.FrequencyWeekly:
		for !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
	case model.FrequencyBiWeekly:
		for !next.After(now) {
			next = next.AddDate(0, 0, 14)
		}
	case model.FrequencyMonthly:
		for !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
	case model.FrequencyCustom:
		if customDays <= 0 {
			return next
		}
		for !next.After(now) {
			next = next.AddDate(0, 0, customDays)
		}
	}

	return next
}
