package hindsight

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

type (
	// CachedFetcher wraps another Fetcher with an LRU page cache.
	// Only pages whose window is fully closed in the past are cached:
	// tokens grow monotonically with time, so the contents of such a
	// window can never change. Open-ended or future-reaching requests
	// always go to the inner fetcher
	CachedFetcher struct {
		inner   Fetcher
		cache   map[string]*list.Element
		lru     *list.List
		maxSize int
		mu      sync.Mutex
	}

	cachedPage struct {
		key  string
		page *Page
	}
)

const DefaultPageCacheSize = 512

// NewCachedFetcher wraps inner with a cache of up to maxSize pages
func NewCachedFetcher(inner Fetcher, maxSize int) *CachedFetcher {
	if maxSize <= 0 {
		maxSize = DefaultPageCacheSize
	}
	return &CachedFetcher{
		inner:   inner,
		cache:   map[string]*list.Element{},
		lru:     list.New(),
		maxSize: maxSize,
	}
}

func (c *CachedFetcher) Fetch(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	if !c.cacheable(req) {
		return c.inner.Fetch(ctx, req)
	}

	key := requestKey(req)
	if page, ok := c.lookup(key); ok {
		return page, nil
	}

	page, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(key, page)
	return page, nil
}

func (c *CachedFetcher) cacheable(req *PageRequest) bool {
	return req.Window() && req.End <= TokenAt(time.Now())
}

func (c *CachedFetcher) lookup(key string) (*Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cachedPage).page, true
}

func (c *CachedFetcher) store(key string, page *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cachedPage).page = page
		return
	}

	elem := c.lru.PushFront(&cachedPage{key: key, page: page})
	c.cache[key] = elem

	if c.lru.Len() > c.maxSize {
		c.evictLast()
	}
}

func (c *CachedFetcher) evictLast() {
	back := c.lru.Back()
	if back != nil {
		c.lru.Remove(back)
		delete(c.cache, back.Value.(*cachedPage).key)
	}
}

func requestKey(req *PageRequest) string {
	return fmt.Sprintf("%s|%s|%s|%d|%t|%t",
		req.Channel, req.Start, req.End,
		req.Count, req.Reverse, req.IncludeTokens,
	)
}
