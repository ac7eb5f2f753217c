package adapter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/theredcat/heimdall/internal/metrics"
)

// ttlCache holds the result of one expensive list call. A fetch is
// reissued only when none succeeded yet or when more than ttl has passed
// since the last successful fetch was issued. Concurrent misses share a
// single in-flight fetch. Failed fetches are not retained.
type ttlCache[T any] struct {
	name    string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	value    T
	issuedAt time.Time
	valid    bool

	group singleflight.Group
}

func newTTLCache[T any](name string, ttl, timeout time.Duration, now func() time.Time) *ttlCache[T] {
	if now == nil {
		now = time.Now
	}
	return &ttlCache[T]{name: name, ttl: ttl, timeout: timeout, now: now}
}

// Get returns the cached value or runs fetch. The fetch is detached from
// the caller's cancellation so a shared call survives the first caller
// giving up; it is still bounded by the cache timeout.
func (c *ttlCache[T]) Get(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(); ok {
		metrics.RecordCache(c.name, "hit")
		return v, nil
	}

	ch := c.group.DoChan(c.name, func() (any, error) {
		// A fetch that finished between the check above and this call
		// already refreshed the value.
		if v, ok := c.fresh(); ok {
			return cachedValue[T]{val: v, hit: true}, nil
		}
		issuedAt := c.now()

		fetchCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
			defer cancel()
		}

		v, err := fetch(fetchCtx)
		if err != nil {
			return cachedValue[T]{}, err
		}

		c.mu.Lock()
		c.value = v
		c.issuedAt = issuedAt
		c.valid = true
		c.mu.Unlock()
		return cachedValue[T]{val: v}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordCache(c.name, "miss")
			var zero T
			return zero, res.Err
		}
		cv := res.Val.(cachedValue[T])
		switch {
		case cv.hit:
			metrics.RecordCache(c.name, "hit")
		case res.Shared:
			metrics.RecordCache(c.name, "shared")
		default:
			metrics.RecordCache(c.name, "miss")
		}
		return cv.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// cachedValue is what the shared fetch hands back; hit is set when no
// fetch was needed after all
type cachedValue[T any] struct {
	val T
	hit bool
}

func (c *ttlCache[T]) fresh() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.now().Sub(c.issuedAt) <= c.ttl {
		return c.value, true
	}
	var zero T
	return zero, false
}

// Invalidate forces the next Get to fetch
func (c *ttlCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
