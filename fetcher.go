package hindsight

import "context"

type (
	// PageRequest describes one bounded call against channel storage.
	// Start and End are exclusive; a zero token means the bound is
	// absent. Count is never more than the remote page size
	PageRequest struct {
		Channel       string
		Start         TimeToken
		End           TimeToken
		Count         int
		Reverse       bool
		IncludeTokens bool
	}

	// Fetcher issues a single remote call and returns one page of
	// history. Implementations perform exactly one round trip per call:
	// retry policy belongs to the paginator, not the fetcher. Failures
	// should be classified with FetchError so the paginator can tell
	// retryable failures from fatal ones
	Fetcher interface {
		Fetch(context.Context, *PageRequest) (*Page, error)
	}
)

// Window reports whether the request carries both bounds
func (r *PageRequest) Window() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}
