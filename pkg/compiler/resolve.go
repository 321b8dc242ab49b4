package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mitchellh/copystructure"

	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/derive"
)

// resolver carries the fetcher for one Compile call.
type resolver struct {
	fetcher core.Fetcher
	logger  *slog.Logger
}

func (r *resolver) fetch(ctx context.Context, id string) (*core.Definition, error) {
	if r.fetcher == nil {
		return nil, &core.MetricNotFoundError{ID: id}
	}
	def, err := r.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", id, err)
	}
	if def == nil {
		return nil, &core.MetricNotFoundError{ID: id}
	}
	return def, nil
}

// resolveRef resolves a reference to a metric. Variants are compiled
// recursively; metrics are returned without copying.
func (r *resolver) resolveRef(ctx context.Context, ref core.MetricRef, path []string, depth int) (*core.SemanticMetric, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	def := ref.Inline
	if def == nil {
		var err error
		def, err = r.fetch(ctx, ref.MetricID)
		if err != nil {
			return nil, err
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("definition %q: %w", ref.MetricID, err)
		}
	}

	if def.Variant != nil {
		return r.resolveVariant(ctx, def.Variant, path, depth)
	}
	return def.Metric, nil
}

func (r *resolver) resolveVariant(ctx context.Context, v *core.SemanticMetricVariant, path []string, depth int) (*core.SemanticMetric, error) {
	if v.ID != "" && slices.Contains(path, v.ID) {
		chain := append(slices.Clone(path), v.ID)
		return nil, &core.CircularReferenceError{Chain: chain}
	}
	if depth >= core.MaxResolutionDepth {
		return nil, &core.MaxDepthExceededError{Depth: depth + 1, Limit: core.MaxResolutionDepth}
	}

	r.logger.Debug("resolving variant",
		slog.String("id", v.ID),
		slog.Int("depth", depth),
		slog.String("source", v.Source.String()))

	// The variant is only read, but its slices end up in the result.
	copied, err := copystructure.Copy(v)
	if err != nil {
		return nil, fmt.Errorf("copy variant %q: %w", v.ID, err)
	}
	v = copied.(*core.SemanticMetricVariant)

	nextPath := append(slices.Clone(path), v.ID)

	base, err := r.resolveRef(ctx, v.Source, nextPath, depth+1)
	if err != nil {
		return nil, fmt.Errorf("variant %q: source %s: %w", v.ID, v.Source, err)
	}

	resolved, err := base.Clone()
	if err != nil {
		return nil, err
	}

	if v.Include != nil {
		applyInclude(resolved, v.Include)
	}
	if v.Overrides != nil {
		applyOverrides(resolved, v.Overrides)
	}

	resolved.Derivations = append(resolved.Derivations, v.Derivations...)

	if err := checkVariantSource(base, v); err != nil {
		return nil, err
	}
	resolved.EnvironmentID = base.EnvironmentID
	resolved.DataModelID = base.DataModelID
	resolved.DataSourceID = base.DataSourceID

	if v.Overrides != nil {
		applyScalarOverrides(resolved, v.Overrides)
	}

	if len(v.Combine) > 0 {
		composition, err := r.compose(ctx, resolved, v.Combine, nextPath, depth+1)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", v.ID, err)
		}
		resolved.Composition = composition
	} else {
		resolved.Composition = nil
	}

	if err := derive.Validate(resolved.Derivations, resolved.Measures, resolved.Composition); err != nil {
		return nil, fmt.Errorf("variant %q: %w", v.ID, err)
	}

	resolved.ID = v.ID
	resolved.Name = v.Name
	resolved.Alias = v.Alias
	resolved.Description = v.Description
	resolved.Version = v.Version
	resolved.Public = v.Public
	resolved.Cache = v.Cache
	resolved.Refresh = v.Refresh
	resolved.Parameters = v.Parameters
	resolved.Meta = v.Meta
	resolved.CreatedAt = v.CreatedAt
	resolved.UpdatedAt = v.UpdatedAt

	resolved.IsValid = true
	resolved.Errors = nil
	resolved.CompiledQuery = ""

	return resolved, nil
}

// checkVariantSource enforces that a variant stays in its source's
// environment, data model and data source. Errors name the source as the
// primary and the variant as the combined side.
func checkVariantSource(base *core.SemanticMetric, v *core.SemanticMetricVariant) error {
	incompatible := func(reason string) error {
		return &core.IncompatibleSourceError{PrimaryName: base.Name, CombineName: v.Name, Reason: reason}
	}
	if v.EnvironmentID != base.EnvironmentID {
		return incompatible(fmt.Sprintf("environment_id %q does not match source environment_id %q", v.EnvironmentID, base.EnvironmentID))
	}
	if v.DataModelID != base.DataModelID {
		return incompatible(fmt.Sprintf("data_model_id %q does not match source data_model_id %q", v.DataModelID, base.DataModelID))
	}
	if v.DataSourceID != "" && base.DataSourceID != "" && v.DataSourceID != base.DataSourceID {
		return incompatible(fmt.Sprintf("data_source_id %q does not match source data_source_id %q", v.DataSourceID, base.DataSourceID))
	}
	return nil
}

func applyInclude(m *core.SemanticMetric, inc *core.IncludedComponents) {
	m.Measures = keepNamed(m.Measures, inc.Measures, measureName)
	m.Dimensions = keepNamed(m.Dimensions, inc.Dimensions, dimensionName)
	m.Filters = keepNamed(m.Filters, inc.Filters, filterName)
	m.Joins = keepNamed(m.Joins, inc.Joins, joinName)
}

func applyOverrides(m *core.SemanticMetric, o *core.Overrides) {
	if ex := o.Exclude; ex != nil {
		m.Measures = dropNamed(m.Measures, ex.Measures, measureName)
		m.Dimensions = dropNamed(m.Dimensions, ex.Dimensions, dimensionName)
		m.Filters = dropNamed(m.Filters, ex.Filters, filterName)
		m.Joins = dropNamed(m.Joins, ex.Joins, joinName)
	}
	if rp := o.Replace; rp != nil {
		m.Measures = replaceByName(m.Measures, rp.Measures, measureName)
		m.Dimensions = replaceByName(m.Dimensions, rp.Dimensions, dimensionName)
		m.Filters = replaceByName(m.Filters, rp.Filters, filterName)
		m.Joins = replaceByName(m.Joins, rp.Joins, joinName)
		m.Order = replaceByName(m.Order, rp.Order, orderName)
	}
	if add := o.Add; add != nil {
		m.Measures = append(m.Measures, add.Measures...)
		m.Dimensions = append(m.Dimensions, add.Dimensions...)
		m.Filters = append(m.Filters, add.Filters...)
		m.Joins = append(m.Joins, add.Joins...)
		m.Order = append(m.Order, add.Order...)
	}
}

func applyScalarOverrides(m *core.SemanticMetric, o *core.Overrides) {
	if o.TableName != nil {
		m.TableName = *o.TableName
	}
	if o.Limit != nil {
		m.Limit = *o.Limit
	}
	if o.Grouped != nil {
		m.Grouped = *o.Grouped
	}
	if o.Ordered != nil {
		m.Ordered = *o.Ordered
	}
}

func measureName(m core.Measure) string     { return m.Name }
func dimensionName(d core.Dimension) string { return d.Name }
func filterName(f core.Filter) string       { return f.Name }
func joinName(j core.Join) string           { return j.Name }
func orderName(o core.OrderBy) string       { return o.Name }

// keepNamed keeps items whose name is listed. A nil list keeps everything.
func keepNamed[T any](items []T, names []string, name func(T) string) []T {
	if names == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if slices.Contains(names, name(it)) {
			out = append(out, it)
		}
	}
	return out
}

// dropNamed removes items whose name is listed.
func dropNamed[T any](items []T, names []string, name func(T) string) []T {
	if len(names) == 0 {
		return items
	}
	return slices.DeleteFunc(items, func(it T) bool {
		return slices.Contains(names, name(it))
	})
}

// replaceByName swaps items that share a name with a replacement. When items
// is empty the replacements become the list. Replacements with no matching
// item are ignored.
func replaceByName[T any](items, repl []T, name func(T) string) []T {
	if len(repl) == 0 {
		return items
	}
	if len(items) == 0 {
		return slices.Clone(repl)
	}
	byName := make(map[string]T, len(repl))
	for _, r := range repl {
		byName[name(r)] = r
	}
	for i, it := range items {
		if r, ok := byName[name(it)]; ok {
			items[i] = r
		}
	}
	return items
}
