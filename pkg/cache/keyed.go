package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/rs/zerolog"
)

// Config holds configuration for a KeyedCache.
type Config struct {
	// MaxEntries bounds the number of keys. Zero or less means unbounded.
	MaxEntries int
	// SeedKeys are created by every Init.
	SeedKeys []string
}

// KeyedCache memoizes one Entry per key with exactly-once creation.
// It starts uninitialized; Init and Teardown bracket the window in which
// GetOrCreate may be used.
type KeyedCache struct {
	maxEntries int
	seedKeys   []string
	fetcher    Fetcher
	recorder   Recorder
	logger     zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry // nil while not initialized
	nextID  uint64
}

// NewKeyedCache creates an uninitialized cache.
// - fetcher: computes the value of a new entry. Nil means StaticFetcher(DefaultValue).
// - recorder: receives hit/miss/create events. May be nil.
func NewKeyedCache(cfg *Config, fetcher Fetcher, recorder Recorder, logger zerolog.Logger) *KeyedCache {
	if fetcher == nil {
		fetcher = StaticFetcher(DefaultValue)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	c := &KeyedCache{
		fetcher:  fetcher,
		recorder: recorder,
		logger:   logger.With().Str("component", "KeyedCache").Logger(),
	}
	if cfg != nil {
		c.maxEntries = cfg.MaxEntries
		c.seedKeys = append([]string(nil), cfg.SeedKeys...)
	}
	return c
}

// Init allocates the entry map and creates the seed keys.
// Calling Init on a live cache is a no-op.
func (c *KeyedCache) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries != nil {
		return nil
	}
	c.entries = make(map[string]*Entry)
	for _, key := range c.seedKeys {
		if _, err := c.createLocked(ctx, key); err != nil {
			c.entries = nil
			return fmt.Errorf("failed to seed key '%s': %w", key, err)
		}
	}
	c.logger.Info().Int("seeded", len(c.entries)).Msg("Keyed cache initialized.")
	return nil
}

// Get returns a copy of the entry for key. It reports false when the key is
// absent or the cache is not initialized.
func (c *KeyedCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetOrCreate returns the entry for key, creating it on a miss.
// The first check runs under the read lock only; on a miss the exclusive lock is
// taken and the key re-checked, since another goroutine may have created it
// while this one waited.
func (c *KeyedCache) GetOrCreate(ctx context.Context, key string) (Entry, error) {
	if e, ok := c.Get(key); ok {
		c.recorder.CacheHit()
		return e, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return Entry{}, fmt.Errorf("keyed cache: %w", types.ErrNotInitialized)
	}
	if e, ok := c.entries[key]; ok {
		c.recorder.CacheHit()
		return *e, nil
	}

	c.recorder.CacheMiss()
	e, err := c.createLocked(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to create cache entry.")
		return Entry{}, err
	}
	return *e, nil
}

// Update replaces the value of an existing entry with fn(old) while holding the lock.
func (c *KeyedCache) Update(key string, fn func(old float64) float64) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return Entry{}, fmt.Errorf("keyed cache: %w", types.ErrNotInitialized)
	}
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("key '%s' not found in keyed cache: %w", key, types.ErrInvalidArgument)
	}
	e.Value = fn(e.Value)
	return *e, nil
}

// Len returns the number of entries. It is zero while not initialized.
func (c *KeyedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys in creation order.
func (c *KeyedCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.Key
	}
	return keys
}

// Teardown drops every entry. Until Init runs again Get reports every key
// absent and GetOrCreate fails with ErrNotInitialized. Teardown is idempotent.
func (c *KeyedCache) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return nil
	}
	dropped := len(c.entries)
	for key := range c.entries {
		delete(c.entries, key)
	}
	c.entries = nil
	c.logger.Info().Int("dropped", dropped).Msg("Keyed cache torn down.")
	return nil
}

// Close tears the cache down and closes its Fetcher.
func (c *KeyedCache) Close() error {
	if err := c.Teardown(); err != nil {
		return err
	}
	if err := c.fetcher.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing fetcher.")
		return fmt.Errorf("error closing fetcher: %w", err)
	}
	return nil
}

// createLocked computes and inserts a new entry. It must be called with c.mu held.
// Nothing is inserted unless the value was computed successfully. Fetch runs
// with c.mu held, so a remote Fetcher's latency is paid by every concurrent miss.
func (c *KeyedCache) createLocked(ctx context.Context, key string) (*Entry, error) {
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		return nil, fmt.Errorf("keyed cache is full (%d entries): %w", c.maxEntries, types.ErrResourceExhausted)
	}

	value, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to compute value for key '%s': %w: %w", key, types.ErrResourceExhausted, err)
	}

	c.nextID++
	e := &Entry{ID: c.nextID, Key: key, Value: value}
	c.entries[key] = e
	c.recorder.CacheCreated()
	c.logger.Debug().Str("key", key).Uint64("id", e.ID).Msg("Cache entry created.")
	return e, nil
}
