package lock

import "errors"

var (
	// ErrAlreadyLocked is returned when an open lock already exists for the
	// action id.  Callers should re-query the existing lock rather than retry.
	ErrAlreadyLocked = errors.New("lock: action already locked")

	// ErrDuplicateApproval indicates the reviewer already recorded a decision
	// for this lock.
	ErrDuplicateApproval = errors.New("lock: duplicate reviewer decision")

	// ErrIneligibleReviewer indicates the reviewer holds none of the roles the
	// lock's approval requirement names.
	ErrIneligibleReviewer = errors.New("lock: reviewer not eligible")

	// ErrNotFound is returned when no lock exists for the supplied id.
	ErrNotFound = errors.New("lock: not found")

	// ErrResolved indicates the lock already reached a terminal status and
	// accepts no further decisions.
	ErrResolved = errors.New("lock: already resolved")
)
