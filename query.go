package hindsight

import "fmt"

// Query is a normalized, validated history request. It replaces the
// combinatorial convenience overloads of typical storage SDKs with one
// builder: construct with NewQuery and chain the methods below. A Query
// is read-only once handed to Client.Fetch and may be reused; the engine
// keeps no state between runs
type Query struct {
	channel       string
	lower         TimeToken
	upper         TimeToken
	target        int
	direction     Direction
	reverse       bool
	includeTokens bool
}

// NewQuery starts a request for the most recent events on channel,
// walking backward from now. Without a Limit it retrieves everything
// the channel has
func NewQuery(channel string) *Query {
	return &Query{channel: channel}
}

// Between restricts the query to events strictly inside (lo, hi) and
// walks the window forward from lo
func (q *Query) Between(lo, hi TimeToken) *Query {
	q.lower = lo
	q.upper = hi
	q.direction = Forward
	return q
}

// OlderThan restricts the query to events strictly older than t,
// walking backward from t
func (q *Query) OlderThan(t TimeToken) *Query {
	q.upper = t
	q.direction = Backward
	return q
}

// NewerThan restricts the query to events strictly newer than t,
// walking forward from t
func (q *Query) NewerThan(t TimeToken) *Query {
	q.lower = t
	q.direction = Forward
	return q
}

// Limit caps the number of events retrieved. Zero, the default, means
// unbounded: pagination continues until the window is exhausted. Values
// above the remote page size are satisfied with a series of bounded
// fetches
func (q *Query) Limit(n int) *Query {
	q.target = n
	return q
}

// Reversed flips the ordering of the final result from chronological
// (oldest first) to newest first. It does not change which events a
// limited query selects; use OlderThan/NewerThan for that
func (q *Query) Reversed() *Query {
	q.reverse = true
	return q
}

// WithTimeTokens asks storage to return each event's time token
// alongside its payload
func (q *Query) WithTimeTokens() *Query {
	q.includeTokens = true
	return q
}

func (q *Query) validate() error {
	if q.channel == "" {
		return fmt.Errorf("%w: empty channel", ErrBadQuery)
	}
	if q.target < 0 {
		return fmt.Errorf("%w: negative limit", ErrBadQuery)
	}
	if !q.lower.IsZero() && !q.upper.IsZero() && !q.lower.Before(q.upper) {
		return fmt.Errorf(
			"%w: lower bound %s not before upper bound %s",
			ErrBadQuery, q.lower, q.upper,
		)
	}
	return nil
}
