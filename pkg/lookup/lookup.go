// Package lookup implements the asynchronously-loaded key→value mapping
// processors consult at runtime, grounded on `MappingLookup` in
// `original_source/bspump/elasticsearch/lookup.py` and `bspump/mysql/lookup.go`:
// a Cache map, a hit/miss CacheCounter pair, a Count that stays -1 until
// the first successful load, and a synchronous Get that checks the cache
// before falling through to the underlying fetch.
package lookup

import (
	"context"
	"sync"
	"time"

	"github.com/streampump/pumpcore/pkg/metrics"
	"github.com/streampump/pumpcore/pkg/pump"
)

// Fetcher is the capability a concrete Lookup (Elasticsearch-backed,
// MySQL-backed, Redis-backed, ...) supplies to Base. Base handles
// caching, counters and the load lifecycle; Fetcher handles the actual
// transport.
type Fetcher interface {
	// FetchOne retrieves the value for key from the backing store. It
	// returns pump.ErrNotFound if key does not exist.
	FetchOne(ctx context.Context, key string) (any, error)

	// FetchAll retrieves every key/value pair from the backing store,
	// used by Load to populate the cache up front the way the original
	// lookups pre-warmed their Cache map.
	FetchAll(ctx context.Context) (map[string]any, error)
}

// Lookup is the contract processors consult. Concrete lookups embed Base
// and supply a Fetcher.
type Lookup interface {
	Id() string
	Load(ctx context.Context) error
	Len() int
	Get(ctx context.Context, key string) (any, bool)
	Keys() []string
}

// Base supplies the cache/counter/load machinery common to every
// concrete Lookup, mirroring MappingLookup's Cache/CacheCounter/Count
// fields.
type Base struct {
	id      string
	fetcher Fetcher

	mu    sync.RWMutex
	cache map[string]any
	count int

	hits   *metrics.Counter
	misses *metrics.Counter
}

// NewBase returns a Base with id's cache empty and Count at -1, matching
// the "-1 until first successful load" contract.
func NewBase(id string, fetcher Fetcher, registry *metrics.Registry) *Base {
	b := &Base{
		id:      id,
		fetcher: fetcher,
		cache:   make(map[string]any),
		count:   -1,
	}
	if registry != nil {
		b.hits = registry.CreateCounter(id + ".lookup.hit")
		b.misses = registry.CreateCounter(id + ".lookup.miss")
	}
	return b
}

// Id returns the lookup's registered identifier.
func (b *Base) Id() string { return b.id }

// Load performs the initial (or a forced) full reload, replacing the
// cache wholesale and setting Count to the number of entries retrieved.
// The Service must await every Lookup's Load before starting pipelines.
func (b *Base) Load(ctx context.Context) error {
	all, err := b.fetcher.FetchAll(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.cache = all
	b.count = len(all)
	b.mu.Unlock()
	return nil
}

// Len returns the current element count, -1 until the first successful
// Load.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Get consults the in-memory cache and, on miss, calls through to the
// Fetcher, caching the result before returning it. A miss on the
// underlying fetch (pump.ErrNotFound) returns ok=false without caching
// an absent marker, so a key that later appears is found on next fetch.
func (b *Base) Get(ctx context.Context, key string) (any, bool) {
	b.mu.RLock()
	v, ok := b.cache[key]
	b.mu.RUnlock()
	if ok {
		if b.hits != nil {
			b.hits.Inc()
		}
		return v, true
	}

	if b.misses != nil {
		b.misses.Inc()
	}
	fetched, err := b.fetcher.FetchOne(ctx, key)
	if err != nil {
		return nil, false
	}
	b.mu.Lock()
	b.cache[key] = fetched
	b.mu.Unlock()
	return fetched, true
}

// Keys returns an ordered-for-this-call snapshot of cached keys, giving
// processors traversal over the lookup's contents without promising
// stability across reloads — the behavior the original iterator left
// disabled and buggy, here implemented.
func (b *Base) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.cache))
	for k := range b.cache {
		keys = append(keys, k)
	}
	return keys
}

// EnsureFutureUpdate starts a background goroutine on loop that calls
// Load every interval, the Go realization of `ensure_future_update`.
// Load errors are logged but do not stop the loop; a lookup that can't
// refresh keeps serving its last-known-good cache.
func EnsureFutureUpdate(loop *pump.Loop, l Lookup, interval time.Duration, log func(err error)) {
	if interval <= 0 {
		return
	}
	loop.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loop.Ctx.Done():
				return
			case <-ticker.C:
				if err := l.Load(loop.Ctx); err != nil && log != nil {
					log(err)
				}
			}
		}
	})
}
