package hindsight

import (
	"errors"
	"fmt"
)

type (
	// FailureKind classifies a fetch failure for retry purposes
	FailureKind int

	// FetchError wraps a failed remote call with its classification.
	// Transient and RateLimited failures are retried by the paginator;
	// Terminal failures abort the query immediately
	FetchError struct {
		Err    error
		Kind   FailureKind
		Status int
	}
)

const (
	// Transient marks timeouts, connection resets and 5xx responses
	Transient FailureKind = iota

	// Terminal marks failures that retrying cannot fix: bad requests,
	// auth errors, malformed channels
	Terminal

	// RateLimited marks 429 responses; retried, but only after waiting
	RateLimited
)

var (
	// ErrTooManyAttempts indicates the per-page retry ceiling was hit
	ErrTooManyAttempts = errors.New("too many fetch attempts")

	// ErrBadQuery indicates a query that failed validation
	ErrBadQuery = errors.New("invalid query")

	// ErrTokenOverlap indicates two merged pages shared a boundary
	// event. Exclusive cursor bounds make this impossible unless a
	// fetcher misbehaves, so it is surfaced rather than tolerated
	ErrTokenOverlap = errors.New("overlapping time tokens across pages")
)

func (k FailureKind) String() string {
	switch k {
	case Terminal:
		return "terminal"
	case RateLimited:
		return "rate-limited"
	default:
		return "transient"
	}
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf(
			"%s fetch failure (status %d): %s", e.Kind, e.Status, e.Err,
		)
	}
	return fmt.Sprintf("%s fetch failure: %s", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the paginator may attempt the fetch again
func (e *FetchError) Retryable() bool {
	return e.Kind != Terminal
}

// TransientError wraps err as a retryable fetch failure
func TransientError(err error) *FetchError {
	return &FetchError{Err: err, Kind: Transient}
}

// TerminalError wraps err as a failure that aborts the query
func TerminalError(err error) *FetchError {
	return &FetchError{Err: err, Kind: Terminal}
}

// classify decides whether an unrecognized fetcher error may be retried.
// Anything not already classified is treated as transient so that plain
// network errors from custom fetchers still get retry coverage
func classify(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return TransientError(err)
}
