package cache

import (
	"context"
)

// StaticFetcher returns the same value for every key.
type StaticFetcher float64

// Fetch returns the static value.
func (f StaticFetcher) Fetch(_ context.Context, _ string) (float64, error) {
	return float64(f), nil
}

// Close is a no-op.
func (f StaticFetcher) Close() error {
	return nil
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key string) (float64, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, key string) (float64, error) {
	return f(ctx, key)
}

// Close is a no-op.
func (f FetcherFunc) Close() error {
	return nil
}
