package hindsight

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	// RedisStore keeps channel history in one Redis stream per channel
	// and serves bounded pages from it. The stream entry ID is the
	// event's time token with a zero sequence part, which makes Redis
	// range queries line up exactly with token arithmetic
	RedisStore struct {
		client *redis.Client
		prefix string
		mu     sync.Mutex
		last   TimeToken
	}

	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}
)

const (
	RedisConnectTimeout = 5 * time.Second

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "hindsight"
	DefaultRedisDB       = 0

	historySuffix = ":history"
	payloadField  = "message"
)

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   DefaultRedisEndpoint,
		Prefix: DefaultRedisPrefix,
		DB:     DefaultRedisDB,
	}
}

// NewRedisStore connects to Redis and verifies the connection before
// returning
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(
		context.Background(), RedisConnectTimeout,
	)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Publish appends a payload to the channel's history, assigning it the
// next available time token
func (s *RedisStore) Publish(
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

// PublishAt appends a payload at an explicit time token. Tokens must be
// strictly increasing within a channel
func (s *RedisStore) PublishAt(
	ctx context.Context, channel string, token TimeToken, payload any,
) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key(channel),
		ID:     streamID(token),
		Values: map[string]any{payloadField: string(data)},
	}).Err()
}

// Fetch returns one bounded page from the channel's stream. Start and
// End are exclusive; with seq fixed at zero in every entry ID, the
// exclusive bounds reduce to inclusive stream ranges one unit in
func (s *RedisStore) Fetch(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	lo, hi := "-", "+"
	if !req.Start.IsZero() {
		lo = req.Start.String() + "-1"
	}
	if !req.End.IsZero() {
		hi = streamID(req.End - 1)
	}

	var msgs []redis.XMessage
	var err error
	if req.Reverse {
		msgs, err = s.client.XRangeN(
			ctx, s.key(req.Channel), lo, hi, int64(req.Count),
		).Result()
	} else {
		msgs, err = s.client.XRevRangeN(
			ctx, s.key(req.Channel), hi, lo, int64(req.Count),
		).Result()
		reverseMessages(msgs)
	}
	if err != nil {
		return nil, TransientError(err)
	}

	return pageFromMessages(msgs, req.IncludeTokens)
}

func pageFromMessages(
	msgs []redis.XMessage, includeTokens bool,
) (*Page, error) {
	page := &Page{Events: make([]*Event, 0, len(msgs))}
	for i, msg := range msgs {
		token, err := parseStreamID(msg.ID)
		if err != nil {
			return nil, TerminalError(err)
		}
		ev := &Event{Data: rawPayload(msg)}
		if includeTokens {
			ev.Token = token
		}
		page.Events = append(page.Events, ev)

		if i == 0 {
			page.Oldest = token
		}
		page.Newest = token
	}
	return page, nil
}

func rawPayload(msg redis.XMessage) json.RawMessage {
	switch v := msg.Values[payloadField].(type) {
	case string:
		return json.RawMessage(v)
	case []byte:
		return json.RawMessage(v)
	default:
		return nil
	}
}

func reverseMessages(msgs []redis.XMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func streamID(token TimeToken) string {
	return token.String() + "-0"
}

func parseStreamID(id string) (TimeToken, error) {
	ms, _, ok := strings.Cut(id, "-")
	if !ok {
		return 0, fmt.Errorf("malformed stream id %q", id)
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeToken(n), nil
}

func (s *RedisStore) key(channel string) string {
	return s.prefix + ":" + channel + historySuffix
}
