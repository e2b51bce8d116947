package hindsight_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/hindsight"
)

func newRedisStore(t *testing.T) *hindsight.RedisStore {
	t.Helper()
	server, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(server.Close)

	cfg := hindsight.DefaultRedisConfig()
	cfg.Addr = server.Addr()

	store, err := hindsight.NewRedisStore(cfg)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRedis(
	t *testing.T, store *hindsight.RedisStore, channel string, n int,
) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		err := store.PublishAt(
			ctx, channel, baseToken+hindsight.TimeToken(i*10),
			map[string]int{"n": i},
		)
		assert.NoError(t, err)
	}
}

func TestRedisStorePublishAndFetch(t *testing.T) {
	store := newRedisStore(t)
	seedRedis(t, store, "storage", 5)

	page, err := store.Fetch(context.Background(), &hindsight.PageRequest{
		Channel:       "storage",
		Count:         100,
		IncludeTokens: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, 5, page.Len())
	assert.Equal(t, baseToken+10, page.Oldest)
	assert.Equal(t, baseToken+50, page.Newest)
	assert.Equal(t, baseToken+10, page.Events[0].Token)
}

func TestRedisStoreExclusiveBounds(t *testing.T) {
	store := newRedisStore(t)
	seedRedis(t, store, "storage", 10)

	page, err := store.Fetch(context.Background(), &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 30,
		End:     baseToken + 80,
		Count:   100,
		Reverse: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, page.Len())
	assert.Equal(t, baseToken+40, page.Oldest)
	assert.Equal(t, baseToken+70, page.Newest)
}

func TestRedisStoreBackwardPage(t *testing.T) {
	store := newRedisStore(t)
	seedRedis(t, store, "storage", 10)

	// newest 3 in the window, still returned oldest first
	page, err := store.Fetch(context.Background(), &hindsight.PageRequest{
		Channel: "storage",
		Count:   3,
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, page.Len())
	assert.Equal(t, baseToken+80, page.Oldest)
	assert.Equal(t, baseToken+100, page.Newest)
}

func TestRedisStoreEmptyChannel(t *testing.T) {
	store := newRedisStore(t)

	page, err := store.Fetch(context.Background(), &hindsight.PageRequest{
		Channel: "nothing-here",
		Count:   100,
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, page.Len())
}

func TestRedisStorePublishAssignsTokens(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	first, err := store.Publish(ctx, "storage", map[string]int{"n": 1})
	assert.NoError(t, err)
	second, err := store.Publish(ctx, "storage", map[string]int{"n": 2})
	assert.NoError(t, err)
	assert.True(t, first.Before(second))
}

func TestRedisEndToEndPagination(t *testing.T) {
	store := newRedisStore(t)
	seedRedis(t, store, "storage", 250)

	c, err := hindsight.New(store, testConfig())
	assert.NoError(t, err)

	res, err := c.Fetch(
		context.Background(),
		hindsight.NewQuery("storage").Limit(250).WithTimeTokens(),
	)
	assert.NoError(t, err)
	assert.Len(t, res.Events, 250)

	for i, ev := range res.Events {
		expected := baseToken + hindsight.TimeToken((i+1)*10)
		assert.Equal(t, expected, ev.Token, fmt.Sprintf("event %d", i))
	}
}
