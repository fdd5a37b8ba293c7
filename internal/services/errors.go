package services

import (
	"errors"

	"github.com/ajramos/echomail/internal/mailbox"
)

// Standard service errors
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// Input errors
	ErrInvalidInput  = errors.New("invalid input provided")
	ErrMissingField  = errors.New("required field missing")
	ErrComposeClosed = errors.New("compose is not open")
	ErrNoMessageOpen = errors.New("no message open")
	ErrUnknownView   = errors.New("unknown view")

	// Pagination errors
	ErrNoMorePages     = errors.New("no more pages")
	ErrPaginationBusy  = errors.New("continuation already in flight")
	ErrCursorRequested = errors.New("cursor already requested")

	// Cache errors
	ErrCacheUnavailable = errors.New("cache store not available")

	// Commit errors
	ErrStaleResponse = errors.New("response superseded by newer view")
)

// IsAborted reports whether err is a superseded lookup rather than a real failure
func IsAborted(err error) bool {
	return errors.Is(err, mailbox.ErrAborted)
}

// IsSkippedError reports errors that mean "nothing to do" and must not be shown to the user
func IsSkippedError(err error) bool {
	return errors.Is(err, ErrNoMorePages) ||
		errors.Is(err, ErrPaginationBusy) ||
		errors.Is(err, ErrCursorRequested) ||
		errors.Is(err, ErrStaleResponse) ||
		IsAborted(err)
}
