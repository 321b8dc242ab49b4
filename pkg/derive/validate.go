package derive

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Validate checks every derivation against the local measures and the
// measures of each composed metric. It stops at the first problem.
func Validate(derivations []core.DerivedEntity, measures []core.Measure, composition []core.CompositionSource) error {
	if len(derivations) == 0 {
		return nil
	}

	local := make([]string, 0, len(measures))
	for _, m := range measures {
		local = append(local, m.Name)
	}

	composed := make(map[string][]string, len(composition))
	for _, c := range composition {
		if c.Metric == nil {
			composed[c.Alias] = nil
			continue
		}
		composed[c.Alias] = c.Metric.MeasureNames()
	}

	for _, d := range derivations {
		if err := validateOne(d, local, composed); err != nil {
			return err
		}
	}
	return nil
}

func validateOne(d core.DerivedEntity, local []string, composed map[string][]string) error {
	rule, ok := Lookup(d.Type)
	if !ok {
		return &core.InvalidDerivationError{
			Derivation: d.Name,
			Field:      "type",
			Reason:     fmt.Sprintf("unknown derivation type %q", d.Type),
		}
	}

	if err := resolveRef(d.Name, d.Source.Measure, local, composed); err != nil {
		return err
	}

	if rule.NeedsBy {
		if d.Source.By == "" {
			return &core.InvalidDerivationError{
				Derivation: d.Name,
				Field:      "source.by",
				Reason:     fmt.Sprintf("is required for %s", d.Type),
			}
		}
		if err := resolveRef(d.Name, d.Source.By, local, composed); err != nil {
			return err
		}
	}

	if rule.NeedsOrder && d.OrderDimension == "" {
		return &core.InvalidDerivationError{
			Derivation: d.Name,
			Field:      "order_dimension",
			Reason:     fmt.Sprintf("is required for %s", d.Type),
		}
	}
	if rule.NeedsPartition && len(d.PartitionBy) == 0 {
		return &core.InvalidDerivationError{
			Derivation: d.Name,
			Field:      "partition_by",
			Reason:     fmt.Sprintf("is required for %s", d.Type),
		}
	}
	if rule.NeedsN {
		if d.N == nil {
			return &core.InvalidDerivationError{
				Derivation: d.Name,
				Field:      "n",
				Reason:     fmt.Sprintf("is required for %s", d.Type),
			}
		}
		if *d.N < 1 {
			return &core.InvalidDerivationError{
				Derivation: d.Name,
				Field:      "n",
				Reason:     fmt.Sprintf("must be at least 1, got %d", *d.N),
			}
		}
	}
	return nil
}

// resolveRef checks that ref names a local measure, or "alias.measure" for a
// composed metric. Only the first dot separates alias from measure.
func resolveRef(derivation, ref string, local []string, composed map[string][]string) error {
	if alias, name, qualified := strings.Cut(ref, "."); qualified {
		available, ok := composed[alias]
		if !ok {
			return &core.InvalidDerivationError{
				Derivation: derivation,
				Field:      "source",
				Reason:     fmt.Sprintf("unknown composition alias %q in %q", alias, ref),
			}
		}
		if !slices.Contains(available, name) {
			return &core.MeasureNotFoundError{
				Measure:    name,
				Derivation: derivation,
				Alias:      alias,
				Available:  available,
			}
		}
		return nil
	}

	if !slices.Contains(local, ref) {
		return &core.MeasureNotFoundError{
			Measure:    ref,
			Derivation: derivation,
			Available:  local,
		}
	}
	return nil
}
