package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrJobAbandoned marks a segment job as fatal-for-job: no requeue, file released.
	ErrJobAbandoned = errors.New("job abandoned")
	// ErrDegraded marks a failure that must not block the relational commit point.
	ErrDegraded = errors.New("degraded success")
)
