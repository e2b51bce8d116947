package hindsight

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"

	bolt "go.etcd.io/bbolt"
)

// BoltArchive is a local, file-backed copy of channel history. It is
// filled by draining a remote channel and then serves the same bounded
// page interface as the remote fetchers, which makes archived history
// queryable offline through the same Client
type BoltArchive struct {
	db *bolt.DB
}

var ErrNoArchive = errors.New("channel has no archived history")

// OpenBoltArchive opens or creates an archive file
func OpenBoltArchive(path string) (*BoltArchive, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	return &BoltArchive{db: db}, nil
}

func (a *BoltArchive) Close() error {
	return a.db.Close()
}

// Put records one event in the channel's bucket, keyed by token so that
// bucket order is storage order
func (a *BoltArchive) Put(
	channel string, token TimeToken, payload json.RawMessage,
) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(channel))
		if err != nil {
			return err
		}
		return b.Put(tokenKey(token), payload)
	})
}

// Drain copies a channel's complete history from c into the archive.
// Time tokens are always requested since they key the archive
func (a *BoltArchive) Drain(
	ctx context.Context, c *Client, channel string,
) (int, error) {
	res, err := c.Fetch(ctx, NewQuery(channel).WithTimeTokens())
	if err != nil {
		return 0, err
	}
	for _, ev := range res.Events {
		if err := a.Put(channel, ev.Token, ev.Data); err != nil {
			return 0, err
		}
	}
	return len(res.Events), nil
}

// Fetch serves one bounded page from the archive, honoring the same
// exclusive-bound contract as the remote fetchers
func (a *BoltArchive) Fetch(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := &Page{}
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(req.Channel))
		if b == nil {
			return ErrNoArchive
		}
		if req.Reverse {
			page = scanForward(b.Cursor(), req)
		} else {
			page = scanBackward(b.Cursor(), req)
		}
		return nil
	})
	if errors.Is(err, ErrNoArchive) {
		return nil, TerminalError(err)
	}
	if err != nil {
		return nil, TransientError(err)
	}
	return page, nil
}

// scanForward collects the oldest events inside (start, end)
func scanForward(c *bolt.Cursor, req *PageRequest) *Page {
	page := &Page{}

	k, v := c.First()
	if !req.Start.IsZero() {
		k, v = c.Seek(tokenKey(req.Start + 1))
	}

	var limit []byte
	if !req.End.IsZero() {
		limit = tokenKey(req.End)
	}

	for ; k != nil && page.Len() < req.Count; k, v = c.Next() {
		if limit != nil && bytes.Compare(k, limit) >= 0 {
			break
		}
		appendArchived(page, k, v, req.IncludeTokens)
	}
	return page
}

// scanBackward collects the newest events inside (start, end), returned
// oldest first like every page
func scanBackward(c *bolt.Cursor, req *PageRequest) *Page {
	page := &Page{}

	k, v := c.Last()
	if !req.End.IsZero() {
		k, v = c.Seek(tokenKey(req.End))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
	}

	var limit []byte
	if !req.Start.IsZero() {
		limit = tokenKey(req.Start)
	}

	for ; k != nil && page.Len() < req.Count; k, v = c.Prev() {
		if limit != nil && bytes.Compare(k, limit) <= 0 {
			break
		}
		appendArchived(page, k, v, req.IncludeTokens)
	}

	reverseEvents(page.Events)
	page.Oldest, page.Newest = page.Newest, page.Oldest
	return page
}

func appendArchived(page *Page, k, v []byte, includeTokens bool) {
	token := keyToken(k)
	data := make(json.RawMessage, len(v))
	copy(data, v)

	ev := &Event{Data: data}
	if includeTokens {
		ev.Token = token
	}
	page.Events = append(page.Events, ev)

	if page.Len() == 1 {
		page.Oldest = token
	}
	page.Newest = token
}

func reverseEvents(evs []*Event) {
	for i, j := 0, len(evs)-1; i < j; i, j = i+1, j-1 {
		evs[i], evs[j] = evs[j], evs[i]
	}
}

func tokenKey(t TimeToken) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t))
	return key
}

func keyToken(k []byte) TimeToken {
	return TimeToken(binary.BigEndian.Uint64(k))
}
