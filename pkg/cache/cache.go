// Package cache provides the keyed memoization cache shared by every selector call.
package cache

import (
	"context"
	"io"
)

// DefaultValue is the payload given to an entry when no Fetcher is configured.
const DefaultValue = 0.1

// Entry is a snapshot of a cached value. Callers receive copies; the live
// entry is only ever touched while the cache holds its lock.
type Entry struct {
	ID    uint64
	Key   string
	Value float64
}

// Fetcher computes the value for a key that is not yet cached.
// It is called at most once per key per cache lifetime.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (float64, error)
	io.Closer
}

// Recorder receives cache events. Implementations must be safe for concurrent use.
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheCreated()
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()     {}
func (nopRecorder) CacheMiss()    {}
func (nopRecorder) CacheCreated() {}
