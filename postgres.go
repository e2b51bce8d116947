package hindsight

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps channel history in a Postgres table keyed by (channel,
// token) and serves bounded pages with keyset queries. It is the
// server-side storage tier counterpart of RedisStore
type PGStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
	last TimeToken
}

const (
	pgSchema = `
		CREATE TABLE IF NOT EXISTS channel_events (
			channel TEXT   NOT NULL,
			token   BIGINT NOT NULL,
			payload JSONB  NOT NULL,
			PRIMARY KEY (channel, token)
		)`

	pgInsert = `
		INSERT INTO channel_events (channel, token, payload)
		VALUES ($1, $2, $3)`

	pgSelectAsc = `
		SELECT token, payload FROM channel_events
		WHERE channel = $1
		  AND ($2::BIGINT = 0 OR token > $2)
		  AND ($3::BIGINT = 0 OR token < $3)
		ORDER BY token ASC LIMIT $4`

	pgSelectDesc = `
		SELECT token, payload FROM channel_events
		WHERE channel = $1
		  AND ($2::BIGINT = 0 OR token > $2)
		  AND ($3::BIGINT = 0 OR token < $3)
		ORDER BY token DESC LIMIT $4`
)

// NewPGStore connects to Postgres, verifies the connection, and ensures
// the history table exists
func NewPGStore(ctx context.Context, connString string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// Publish appends a payload to the channel's history, assigning it the
// next available time token
func (s *PGStore) Publish(
	ctx context.Context, channel string, payload any,
) (TimeToken, error) {
	s.mu.Lock()
	token := TokenAt(time.Now())
	if token <= s.last {
		token = s.last + 1
	}
	s.last = token
	s.mu.Unlock()

	return token, s.PublishAt(ctx, channel, token, payload)
}

// PublishAt appends a payload at an explicit time token
func (s *PGStore) PublishAt(
	ctx context.Context, channel string, token TimeToken, payload any,
) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgInsert, channel, int64(token), data)
	return err
}

// Fetch serves one bounded page via a keyset query. A descending scan
// picks the newest events in the window; rows are flipped back to
// ascending before the page is returned
func (s *PGStore) Fetch(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	sql := pgSelectDesc
	if req.Reverse {
		sql = pgSelectAsc
	}

	rows, err := s.pool.Query(ctx, sql,
		req.Channel, int64(req.Start), int64(req.End), req.Count,
	)
	if err != nil {
		return nil, classifyPG(err)
	}
	defer rows.Close()

	page := &Page{}
	for rows.Next() {
		var token int64
		var payload []byte
		if err := rows.Scan(&token, &payload); err != nil {
			return nil, classifyPG(err)
		}

		ev := &Event{Data: json.RawMessage(payload)}
		if req.IncludeTokens {
			ev.Token = TimeToken(token)
		}
		page.Events = append(page.Events, ev)

		if page.Len() == 1 {
			page.Oldest = TimeToken(token)
		}
		page.Newest = TimeToken(token)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPG(err)
	}

	if !req.Reverse {
		reverseEvents(page.Events)
		page.Oldest, page.Newest = page.Newest, page.Oldest
	}
	return page, nil
}

// classifyPG maps driver errors onto the fetch failure taxonomy: SQL
// errors won't be fixed by retrying, everything else is assumed to be a
// connectivity problem
func classifyPG(err error) *FetchError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return TerminalError(err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return TerminalError(err)
	}
	return TransientError(err)
}
