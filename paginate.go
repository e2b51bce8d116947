package hindsight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type (
	// Client retrieves channel history through a Fetcher, stitching
	// bounded remote pages into complete results. A Client is stateless
	// between queries and safe for concurrent use; each Fetch owns its
	// own cursor
	Client struct {
		fetcher Fetcher
		config  Config
		log     *zap.Logger
	}

	// paginator is the per-query cursor state. It lives for exactly one
	// Fetch call and is never shared
	paginator struct {
		fetcher    Fetcher
		config     Config
		log        *zap.Logger
		query      *Query
		start      TimeToken
		end        TimeToken
		remaining  int
		singleShot bool
	}
)

var ErrNoFetcher = errors.New("a fetcher is required")

// New creates a Client that pages through history via f
func New(f Fetcher, cfg Config) (*Client, error) {
	if f == nil {
		return nil, ErrNoFetcher
	}
	cfg = cfg.withDefaults()
	return &Client{fetcher: f, config: cfg, log: cfg.Logger}, nil
}

// Fetch runs q to completion and returns the full aggregated result.
// Requests larger than the remote page size are satisfied with a series
// of sequential bounded fetches; the result is complete or the call
// fails. Partial results are never returned: any terminal failure or
// exhausted retry discards the pages merged so far, and the same Query
// can be re-run from scratch. Cancelling ctx takes effect at the next
// page boundary and surfaces ctx.Err()
func (c *Client) Fetch(ctx context.Context, q *Query) (*Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if c.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.QueryTimeout)
		defer cancel()
	}

	p := &paginator{
		fetcher:    c.fetcher,
		config:     c.config,
		log:        c.log.With(zap.String("channel", q.channel)),
		query:      q,
		start:      q.lower,
		end:        q.upper,
		remaining:  q.target,
		singleShot: q.target > 0 && q.target <= c.config.MaxPageSize,
	}
	return p.run(ctx)
}

func (p *paginator) run(ctx context.Context) (*Result, error) {
	acc := newMerger(p.query.direction)
	fetches := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := p.fetchPage(ctx, p.requestCount())
		if err != nil {
			return nil, err
		}
		fetches++

		if page.Len() == 0 {
			break
		}
		if err := acc.merge(page); err != nil {
			return nil, err
		}
		if p.advance(page) {
			break
		}
	}

	acc.truncate(p.query.target)
	res := acc.result(p.query.reverse)
	p.log.Debug("history query complete",
		zap.Int("events", len(res.Events)),
		zap.Int("fetches", fetches),
		zap.Stringer("start", res.Start),
		zap.Stringer("end", res.End),
	)
	return res, nil
}

// requestCount sizes the next fetch: the full page size when unbounded,
// otherwise however many events are still owed, capped at the page size
func (p *paginator) requestCount() int {
	if p.query.target == 0 {
		return p.config.MaxPageSize
	}
	return min(p.remaining, p.config.MaxPageSize)
}

// advance moves the cursor past the page just merged and reports whether
// pagination is finished. The boundary token of the consumed page becomes
// an exclusive bound on the next request, so a boundary event can never
// be fetched twice or skipped
func (p *paginator) advance(page *Page) bool {
	if p.remaining > 0 {
		p.remaining = max(p.remaining-page.Len(), 0)
	}
	if p.singleShot {
		return true
	}
	if p.query.target > 0 && p.remaining == 0 {
		return true
	}

	if p.query.direction == Backward {
		p.end = page.Oldest
		// window (lower, end) is exclusive on both sides
		return !p.query.lower.IsZero() && p.end <= p.query.lower+1
	}
	p.start = page.Newest
	return !p.query.upper.IsZero() && p.start >= p.query.upper-1
}

// fetchPage performs one bounded fetch with the retry policy applied:
// transient and rate-limited failures back off and retry up to the
// attempt ceiling, terminal failures abort immediately
func (p *paginator) fetchPage(
	ctx context.Context, count int,
) (*Page, error) {
	req := &PageRequest{
		Channel:       p.query.channel,
		Start:         p.start,
		End:           p.end,
		Count:         count,
		Reverse:       p.query.direction == Forward,
		IncludeTokens: p.query.includeTokens,
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.InitialDelay
	b.MaxInterval = p.config.MaxDelay
	b.MaxElapsedTime = 0

	for attempt := 1; ; attempt++ {
		page, err := p.fetchOnce(ctx, req)
		if err == nil {
			p.log.Debug("page fetched",
				zap.Int("events", page.Len()),
				zap.Int("attempt", attempt),
			)
			return page, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fe := classify(err)
		if !fe.Retryable() {
			p.log.Error("history fetch aborted", zap.Error(fe))
			return nil, fe
		}
		if attempt >= p.config.MaxAttempts {
			return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, fe)
		}

		wait := b.NextBackOff()
		p.log.Warn("history fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(fe),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *paginator) fetchOnce(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()
	return p.fetcher.Fetch(ctx, req)
}
