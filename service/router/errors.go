package router

import "errors"

var (
	// ErrNoReviewers indicates the resolved group has no registered members -
	// a configuration gap that is surfaced, never retried.
	ErrNoReviewers = errors.New("router: no reviewers available")

	// ErrNotFound is returned when no review exists for the supplied id.
	ErrNotFound = errors.New("router: review not found")

	// ErrNotAssigned indicates the reviewer is neither in the routed group
	// snapshot nor a current member of the review's group.
	ErrNotAssigned = errors.New("router: reviewer not assigned to review")
)
