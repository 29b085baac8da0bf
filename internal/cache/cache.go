// Package cache implements the change-aware polling cache shared by both
// data sources. It decides on every poll whether freshly fetched data is
// materially the same as what is cached, whether a write to the quota-limited
// store is warranted, and how to behave when the upstream fetch fails.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the durable key-value backend entries are persisted to. It must
// provide atomic last-writer-wins semantics per key; no other guarantees are
// assumed. The second return value of Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Fetcher pulls the latest observation from an upstream source. A nil record
// with a nil error means the source currently has nothing to report, which is
// distinct from a fetch failure. Implementations must be idempotent and free
// of side effects beyond the remote call.
type Fetcher[R any] interface {
	FetchLatest(ctx context.Context) (*R, error)
}

// Entry wraps a record together with the poll bookkeeping that is persisted
// alongside it. ObservedAt is the time of the successful fetch that first
// produced this value and only ever advances; LastPollAt is the time of the
// most recent successful upstream contact and may advance without a material
// change.
type Entry[R any] struct {
	Record     *R        `json:"record"`
	ObservedAt time.Time `json:"observed_at"`
	LastPollAt time.Time `json:"last_poll_at"`
}

// Options configures one cache instance. Equal compares the identity fields
// of two non-nil records; display fields (cover art, links) must not
// participate so that cosmetic upstream churn never triggers a write.
type Options[R any] struct {
	Key             string
	Freshness       time.Duration // max age before an on-demand request refetches
	MinPollInterval time.Duration // self-throttle for scheduled ticks
	StoreTTL        time.Duration // advisory expiry handed to the store, 0 = none

	// TouchOnUnchanged writes a LastPollAt-only update when an on-demand
	// fetch came back unchanged. This trades one extra store write for a
	// later scheduled poll. Leave it off when store writes are the scarcer
	// resource.
	TouchOnUnchanged bool

	Equal func(a, b *R) bool
}

// Cache orchestrates fetch, compare and conditional write for a single
// source. The on-demand path (Current) and the scheduled path (Poll) may race
// against each other; a lost update costs at most one duplicate write.
type Cache[R any] struct {
	store Store
	fetch Fetcher[R]
	opts  Options[R]
	log   zerolog.Logger
	now   func() time.Time

	mu       sync.Mutex
	lastPoll time.Time // in-process throttle, survives skipped store writes
}

// New builds a cache for one source. It fails fast on an incomplete setup
// rather than surfacing the problem on the first poll.
func New[R any](store Store, fetch Fetcher[R], opts Options[R], log zerolog.Logger) (*Cache[R], error) {
	if store == nil {
		return nil, errors.New("store required")
	}
	if fetch == nil {
		return nil, errors.New("fetcher required")
	}
	if opts.Key == "" {
		return nil, errors.New("key required")
	}
	if opts.Equal == nil {
		return nil, errors.New("equality func required")
	}
	return &Cache[R]{
		store: store,
		fetch: fetch,
		opts:  opts,
		log:   log.With().Str("key", opts.Key).Logger(),
		now:   time.Now,
	}, nil
}

// Current serves the on-demand path. While the cached record is younger than
// the freshness window it is returned without touching the upstream. Past the
// window the source is refetched; a fetch failure is masked by serving the
// cached record and only surfaces as an error when there is nothing cached at
// all.
func (c *Cache[R]) Current(ctx context.Context) (*R, error) {
	now := c.now()

	entry, err := c.read(ctx)
	if err != nil {
		// Store unavailable on read: fall through to the upstream. The
		// response can still be served from a live fetch.
		c.log.Error().Err(err).Msg("cache read failed")
		entry = nil
	}
	if entry != nil && now.Sub(entry.ObservedAt) < c.opts.Freshness {
		return entry.Record, nil
	}

	rec, err := c.fetch.FetchLatest(ctx)
	if err != nil {
		if entry != nil {
			c.log.Warn().Err(err).Msg("fetch failed, serving stale record")
			return entry.Record, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", c.opts.Key, err)
	}
	c.markPolled(now)

	return c.apply(ctx, entry, rec, now, true), nil
}

// Poll serves the scheduled path. It self-throttles against MinPollInterval
// so an externally coarser or finer trigger cadence still converges on the
// intended interval, writes nothing on failure, and never lets an error
// escape the tick.
func (c *Cache[R]) Poll(ctx context.Context) {
	now := c.now()

	entry, err := c.read(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("cache read failed, skipping tick")
		return
	}

	c.mu.Lock()
	last := c.lastPoll
	c.mu.Unlock()
	if entry != nil && entry.LastPollAt.After(last) {
		last = entry.LastPollAt
	}
	if !last.IsZero() && now.Sub(last) < c.opts.MinPollInterval {
		return
	}

	rec, err := c.fetch.FetchLatest(ctx)
	if err != nil {
		// Leave lastPoll untouched so the next tick retries promptly
		// instead of waiting out a full interval.
		c.log.Warn().Err(err).Msg("scheduled fetch failed")
		return
	}
	c.markPolled(now)

	c.apply(ctx, entry, rec, now, false)
}

// apply runs the compare / conditional-write step shared by both invocation
// paths and returns the record the caller should report. The returned record
// reflects the fresh fetch (including cosmetic-only changes), not the stored
// value.
func (c *Cache[R]) apply(ctx context.Context, entry *Entry[R], rec *R, now time.Time, onDemand bool) *R {
	// A transient empty response never erases a known-good record. Upstreams
	// blip; losing good data to a blip is worse than briefly serving stale.
	if rec == nil && entry != nil && entry.Record != nil {
		if onDemand && c.opts.TouchOnUnchanged {
			c.touch(ctx, entry, now)
		}
		return entry.Record
	}

	if entry == nil || !c.equal(rec, entry.Record) {
		e := &Entry[R]{Record: rec, ObservedAt: now, LastPollAt: now}
		if err := c.write(ctx, e); err != nil {
			// A missed cache write is not caller-visible; the fresh
			// record is still returned.
			c.log.Error().Err(err).Msg("cache write failed")
		} else {
			c.log.Info().Msg("cached new record")
		}
		return rec
	}

	// Unchanged. The scheduled path has no client waiting, so minimizing
	// writes dominates and it skips the touch unconditionally.
	if onDemand && c.opts.TouchOnUnchanged {
		c.touch(ctx, entry, now)
	}
	return rec
}

// equal applies the identity comparison with the nil cases settled first:
// two empty observations are the same, and a transition into or out of
// "nothing reported" is always material.
func (c *Cache[R]) equal(a, b *R) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return c.opts.Equal(a, b)
}

// touch persists a LastPollAt-only update, leaving the record and ObservedAt
// as they were.
func (c *Cache[R]) touch(ctx context.Context, entry *Entry[R], now time.Time) {
	entry.LastPollAt = now
	if err := c.write(ctx, entry); err != nil {
		c.log.Error().Err(err).Msg("cache touch failed")
	}
}

func (c *Cache[R]) markPolled(now time.Time) {
	c.mu.Lock()
	if now.After(c.lastPoll) {
		c.lastPoll = now
	}
	c.mu.Unlock()
}

func (c *Cache[R]) read(ctx context.Context) (*Entry[R], error) {
	data, ok, err := c.store.Get(ctx, c.opts.Key)
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", c.opts.Key, err)
	}
	if !ok {
		return nil, nil
	}
	var e Entry[R]
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt entry is treated as absent; the next write repairs it.
		c.log.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil, nil
	}
	return &e, nil
}

func (c *Cache[R]) write(ctx context.Context, e *Entry[R]) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", c.opts.Key, err)
	}
	if err := c.store.Put(ctx, c.opts.Key, data, c.opts.StoreTTL); err != nil {
		return fmt.Errorf("store put %s: %w", c.opts.Key, err)
	}
	return nil
}
