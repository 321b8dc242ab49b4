package compiler

import (
	"context"
	"sync"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// MapFetcher serves definitions from memory, keyed by id.
type MapFetcher map[string]*core.Definition

// NewMapFetcher indexes definitions by their id.
func NewMapFetcher(defs ...*core.Definition) MapFetcher {
	f := make(MapFetcher, len(defs))
	for _, d := range defs {
		f[d.ID()] = d
	}
	return f
}

// Fetch implements core.Fetcher.
func (f MapFetcher) Fetch(_ context.Context, id string) (*core.Definition, error) {
	def, ok := f[id]
	if !ok {
		return nil, &core.MetricNotFoundError{ID: id}
	}
	return def, nil
}

// cachingFetcher remembers successful fetches by id.
type cachingFetcher struct {
	next core.Fetcher

	mu    sync.Mutex
	cache map[string]*core.Definition
}

func newCachingFetcher(next core.Fetcher) *cachingFetcher {
	return &cachingFetcher{next: next, cache: make(map[string]*core.Definition)}
}

func (f *cachingFetcher) Fetch(ctx context.Context, id string) (*core.Definition, error) {
	f.mu.Lock()
	def, ok := f.cache[id]
	f.mu.Unlock()
	if ok {
		return def, nil
	}

	def, err := f.next.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[id] = def
	f.mu.Unlock()
	return def, nil
}
