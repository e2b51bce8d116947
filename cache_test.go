package hindsight_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/hindsight"
)

type countingFetcher struct {
	inner hindsight.Fetcher
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(
	ctx context.Context, req *hindsight.PageRequest,
) (*hindsight.Page, error) {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, req)
}

func TestCachedFetcherClosedWindow(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 20)
	counting := &countingFetcher{inner: store}
	cached := hindsight.NewCachedFetcher(counting, 16)

	req := &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 10,
		End:     baseToken + 150,
		Count:   5,
	}

	first, err := cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	second, err := cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counting.calls.Load())
}

func TestCachedFetcherSkipsOpenWindows(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 20)
	counting := &countingFetcher{inner: store}
	cached := hindsight.NewCachedFetcher(counting, 16)

	// no upper bound: the tail of the channel is still growing
	req := &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 10,
		Count:   5,
	}

	_, err := cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	_, err = cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), counting.calls.Load())
}

func TestCachedFetcherSkipsFutureWindows(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 20)
	counting := &countingFetcher{inner: store}
	cached := hindsight.NewCachedFetcher(counting, 16)

	req := &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 10,
		End:     hindsight.TokenAt(time.Now().Add(time.Hour)),
		Count:   5,
	}

	_, err := cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	_, err = cached.Fetch(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), counting.calls.Load())
}

func TestCachedFetcherEviction(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 20)
	counting := &countingFetcher{inner: store}
	cached := hindsight.NewCachedFetcher(counting, 1)

	reqA := &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 10,
		End:     baseToken + 100,
		Count:   5,
	}
	reqB := &hindsight.PageRequest{
		Channel: "storage",
		Start:   baseToken + 100,
		End:     baseToken + 200,
		Count:   5,
	}

	_, err := cached.Fetch(context.Background(), reqA)
	assert.NoError(t, err)
	_, err = cached.Fetch(context.Background(), reqB)
	assert.NoError(t, err)

	// reqA was evicted by reqB
	_, err = cached.Fetch(context.Background(), reqA)
	assert.NoError(t, err)
	assert.Equal(t, int32(3), counting.calls.Load())
}

func TestCachedFetcherEndToEnd(t *testing.T) {
	store := newMemStore()
	store.seed("storage", 50)
	counting := &countingFetcher{inner: store}
	cached := hindsight.NewCachedFetcher(counting, 16)

	c, err := hindsight.New(cached, testConfig())
	assert.NoError(t, err)

	q := hindsight.NewQuery("storage").
		Between(baseToken, baseToken+510).
		Limit(50)

	first, err := c.Fetch(context.Background(), q)
	assert.NoError(t, err)
	second, err := c.Fetch(context.Background(), q)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counting.calls.Load())
}
