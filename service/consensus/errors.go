package consensus

import "errors"

var (
	// ErrAlreadyResolved is returned to the loser of a veto/expiry race.
	// Callers treat it as a successful no-op, not a failure.
	ErrAlreadyResolved = errors.New("consensus: item already resolved")

	// ErrNotFound is returned when no item exists for the supplied id.
	ErrNotFound = errors.New("consensus: item not found")

	// ErrNotEligible indicates the classification requires the full lock and
	// approval path instead of passive consensus.
	ErrNotEligible = errors.New("consensus: classification not eligible for passive path")
)
