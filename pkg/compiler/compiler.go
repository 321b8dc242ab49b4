// Package compiler turns metric and variant definitions into fully resolved
// semantic metrics.
//
// A variant names a source (a metric or another variant) and describes how to
// modify it: an include whitelist, exclude/replace/add overrides, scalar
// overrides, extra derivations and metrics to combine as CTEs. Compile walks
// the source chain, applies each layer in order and validates the result.
package compiler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/derive"
)

// Compiler resolves definitions using a Fetcher.
// A Compiler is safe for concurrent use.
type Compiler struct {
	fetcher    core.Fetcher
	logger     *slog.Logger
	fetchCache bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for resolution tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFetchCache memoizes fetches by id for the duration of one Compile call.
func WithFetchCache() Option {
	return func(c *Compiler) {
		c.fetchCache = true
	}
}

// New creates a Compiler. A nil fetcher is allowed when every reference is inline.
func New(fetcher core.Fetcher, opts ...Option) *Compiler {
	c := &Compiler{
		fetcher: fetcher,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile resolves a definition into an executable metric.
// Base metrics have their derivations validated and are returned as a copy.
func (c *Compiler) Compile(ctx context.Context, def *core.Definition) (*core.SemanticMetric, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	if def.Metric != nil {
		m := def.Metric
		if err := derive.Validate(m.Derivations, m.Measures, m.Composition); err != nil {
			return nil, fmt.Errorf("metric %q: %w", m.ID, err)
		}
		out, err := m.Clone()
		if err != nil {
			return nil, err
		}
		out.IsValid = true
		out.Errors = nil
		return out, nil
	}

	return c.ResolveVariant(ctx, def.Variant, nil, 0)
}

// CompileID fetches a definition by id and compiles it.
func (c *Compiler) CompileID(ctx context.Context, id string) (*core.SemanticMetric, error) {
	r := c.newResolver()
	def, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("definition %q: %w", id, err)
	}
	if def.Metric != nil {
		return c.Compile(ctx, def)
	}
	return r.resolveVariant(ctx, def.Variant, nil, 0)
}

// ResolveVariant resolves a variant given the ids already visited on the
// current path and the current depth. Most callers want Compile.
func (c *Compiler) ResolveVariant(ctx context.Context, v *core.SemanticMetricVariant, path []string, depth int) (*core.SemanticMetric, error) {
	if v == nil {
		return nil, core.ErrInvalidDefinition
	}
	return c.newResolver().resolveVariant(ctx, v, path, depth)
}

func (c *Compiler) newResolver() *resolver {
	fetcher := c.fetcher
	if c.fetchCache && fetcher != nil {
		fetcher = newCachingFetcher(fetcher)
	}
	return &resolver{fetcher: fetcher, logger: c.logger}
}
