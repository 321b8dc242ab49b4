package core

import "context"

// Fetcher looks up a metric or variant definition by id.
// A missing id must be reported as *MetricNotFoundError.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*Definition, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id string) (*Definition, error)

// Fetch calls f(ctx, id).
func (f FetcherFunc) Fetch(ctx context.Context, id string) (*Definition, error) {
	return f(ctx, id)
}
