// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Storage and service sentinels.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, expired or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks malformed input rejected before reaching storage.
	ErrValidation = errors.New("validation")

	// ErrRemote indicates a failed call to the task service.
	ErrRemote = errors.New("remote call failed")
)

// Timer precondition sentinels. Their texts are shown to the user as-is.
var (
	// ErrBreakInProgress rejects task actions while a manual break is open.
	ErrBreakInProgress = errors.New("break in progress")

	// ErrNoActiveTask rejects pause/resume when no task is running.
	ErrNoActiveTask = errors.New("no active task")

	// ErrBreakWindowClosed rejects starting a break outside the configured break hours.
	ErrBreakWindowClosed = errors.New("breaks are not allowed at this hour")
)

// Preconditions lists timer precondition sentinels so transports can map them back by text.
var Preconditions = []error{ErrBreakInProgress, ErrNoActiveTask, ErrBreakWindowClosed}
