package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// noJoinDimension is reported when a combined metric has an empty join_on.
const noJoinDimension = "(none specified)"

// compose resolves each combined reference into a composition source joined
// to primary on shared dimensions. Output order follows refs.
func (r *resolver) compose(ctx context.Context, primary *core.SemanticMetric, refs []core.MetricRef, path []string, depth int) ([]core.CompositionSource, error) {
	out := make([]core.CompositionSource, 0, len(refs))

	for i, ref := range refs {
		sub, err := r.resolveRef(ctx, ref, path, depth)
		if err != nil {
			return nil, fmt.Errorf("combine[%d] %s: %w", i, ref, err)
		}
		sub, err = sub.Clone()
		if err != nil {
			return nil, err
		}

		if err := checkCombinable(primary, sub); err != nil {
			return nil, err
		}

		alias := firstNonEmpty(ref.Alias, sub.Alias, sub.Name)
		if err := checkJoinOn(primary, sub, alias, ref.JoinOn); err != nil {
			return nil, err
		}

		r.logger.Debug("composed metric",
			slog.String("alias", alias),
			slog.String("metric", sub.ID),
			slog.Any("join_on", ref.JoinOn))

		out = append(out, core.CompositionSource{
			Alias:  alias,
			Metric: sub,
			JoinOn: slices.Clone(ref.JoinOn),
		})
	}
	return out, nil
}

// checkCombinable requires matching environment and data model. The data
// source may differ.
func checkCombinable(primary, sub *core.SemanticMetric) error {
	if sub.EnvironmentID != primary.EnvironmentID {
		return &core.IncompatibleSourceError{
			PrimaryName: primary.Name,
			CombineName: sub.Name,
			Reason:      fmt.Sprintf("environment_id %q does not match %q", sub.EnvironmentID, primary.EnvironmentID),
		}
	}
	if sub.DataModelID != primary.DataModelID {
		return &core.IncompatibleSourceError{
			PrimaryName: primary.Name,
			CombineName: sub.Name,
			Reason:      fmt.Sprintf("data_model_id %q does not match %q", sub.DataModelID, primary.DataModelID),
		}
	}
	return nil
}

func checkJoinOn(primary, sub *core.SemanticMetric, alias string, joinOn []string) error {
	primaryDims := primary.DimensionNames()
	subDims := sub.DimensionNames()

	if len(joinOn) == 0 {
		return &core.InvalidJoinDimensionError{
			Dimension:         noJoinDimension,
			Alias:             alias,
			PrimaryDimensions: primaryDims,
			CombineDimensions: subDims,
		}
	}
	for _, dim := range joinOn {
		if !slices.Contains(primaryDims, dim) || !slices.Contains(subDims, dim) {
			return &core.InvalidJoinDimensionError{
				Dimension:         dim,
				Alias:             alias,
				PrimaryDimensions: primaryDims,
				CombineDimensions: subDims,
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
