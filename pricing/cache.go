package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/spikeycoins/tradeengine/money"
)

// IndexPrices is the (gold, silver, timestamp) tuple returned by the
// external metals oracle.
type IndexPrices struct {
	Gold      money.Decimal
	Silver    money.Decimal
	Timestamp time.Time
}

// Oracle is the pluggable external metals price provider. The engine
// never calls it directly; Cache calls it on a read once the TTL has
// elapsed, and nothing schedules fetches in the background.
type Oracle interface {
	FetchMetalPrices(ctx context.Context) (IndexPrices, error)
}

// Cache is a process-wide, TTL-bounded cache of the oracle's last
// successful read. It is the only non-transactional shared state in the
// engine: guarded by a short critical section, and the oracle call
// itself always happens outside that section so a slow or hung HTTP
// request never holds a lock other goroutines are waiting on.
type Cache struct {
	oracle Oracle
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	data      IndexPrices
	fetchedAt time.Time
	haveData  bool
}

// DefaultTTL is the cache lifetime specified for the index price feed.
const DefaultTTL = 30 * time.Minute

// FallbackGold and FallbackSilver are compiled-in last-resort index
// prices served only on a cold start with no cache and an unreachable
// oracle, so the engine never has to return an error for a read-only
// price query.
var (
	FallbackGold   = money.New(2000, 0)
	FallbackSilver = money.New(24, 0)
)

// NewCache builds a Cache around oracle with the given TTL. A zero ttl
// is replaced with DefaultTTL.
func NewCache(oracle Oracle, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{oracle: oracle, ttl: ttl, now: time.Now}
}

// Result is a cache read, flagged stale when the TTL elapsed and a
// refresh failed or there was never a successful fetch.
type Result struct {
	Prices IndexPrices
	Stale  bool
}

// IndexPrices returns the cached (gold, silver, timestamp), refreshing
// from the oracle first if the TTL has elapsed. On provider failure it
// serves the last cached value flagged stale; on a cold start with no
// cache at all it serves the compiled-in fallback, also flagged stale.
//
// The oracle fetch happens with no lock held; only the cheap read/write
// of the cached snapshot is serialized.
func (c *Cache) IndexPrices(ctx context.Context) Result {
	snapshot, expired := c.snapshot()
	if !expired {
		return Result{Prices: snapshot, Stale: false}
	}

	fresh, err := c.oracle.FetchMetalPrices(ctx)
	if err == nil {
		c.store(fresh)
		return Result{Prices: fresh, Stale: false}
	}

	if c.haveDataSnapshot() {
		return Result{Prices: snapshot, Stale: true}
	}
	return Result{
		Prices: IndexPrices{Gold: FallbackGold, Silver: FallbackSilver, Timestamp: c.now()},
		Stale:  true,
	}
}

// snapshot returns the currently cached prices (zero value if none yet)
// and whether a refresh is due.
func (c *Cache) snapshot() (IndexPrices, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveData {
		return IndexPrices{}, true
	}
	expired := c.now().Sub(c.fetchedAt) > c.ttl
	return c.data, expired
}

func (c *Cache) haveDataSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haveData
}

func (c *Cache) store(p IndexPrices) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = p
	c.fetchedAt = c.now()
	c.haveData = true
}

// Status reports cache health for an out-of-scope dashboard collaborator
// without requiring a database read.
type Status struct {
	LastFetchAt time.Time
	Stale       bool
	HaveData    bool
}

// Status returns the current cache health without triggering a refresh.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		LastFetchAt: c.fetchedAt,
		Stale:       !c.haveData || c.now().Sub(c.fetchedAt) > c.ttl,
		HaveData:    c.haveData,
	}
}
