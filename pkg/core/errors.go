package core

import (
	"errors"
	"fmt"
	"strings"
)

// MaxResolutionDepth is the deepest variant chain Compile will follow.
const MaxResolutionDepth = 10

// ErrMetricNotFound matches any *MetricNotFoundError via errors.Is.
var ErrMetricNotFound = errors.New("metric not found")

// MetricNotFoundError is returned by fetchers when an id does not exist.
type MetricNotFoundError struct {
	ID string
}

func (e *MetricNotFoundError) Error() string {
	return fmt.Sprintf("metric %q not found", e.ID)
}

// Is reports whether target is ErrMetricNotFound.
func (e *MetricNotFoundError) Is(target error) bool {
	return target == ErrMetricNotFound
}

// CircularReferenceError is returned when a variant id repeats along one
// resolution path. Chain ends with the repeated id.
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular variant reference: %s", strings.Join(e.Chain, " -> "))
}

// MaxDepthExceededError is returned when a variant chain is deeper than Limit.
type MaxDepthExceededError struct {
	Depth int
	Limit int
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("variant resolution depth %d exceeds limit of %d", e.Depth, e.Limit)
}

// InvalidDerivationError reports a structurally invalid derivation.
type InvalidDerivationError struct {
	Derivation string
	Field      string
	Reason     string
}

func (e *InvalidDerivationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid derivation %q: %s", e.Derivation, e.Reason)
	}
	return fmt.Sprintf("invalid derivation %q: field %s: %s", e.Derivation, e.Field, e.Reason)
}

// MeasureNotFoundError is returned when a derivation references a measure
// that does not exist. Alias is set for references into a composed metric.
type MeasureNotFoundError struct {
	Measure    string
	Derivation string
	Alias      string
	Available  []string
}

func (e *MeasureNotFoundError) Error() string {
	scope := "metric"
	if e.Alias != "" {
		scope = fmt.Sprintf("composed metric %q", e.Alias)
	}
	return fmt.Sprintf("derivation %q references unknown measure %q in %s\nAvailable measures: %v",
		e.Derivation, e.Measure, scope, e.Available)
}

// IncompatibleSourceError is returned when two metrics cannot be combined
// or inherited because their environment, data model or data source differ.
type IncompatibleSourceError struct {
	PrimaryName string
	CombineName string
	Reason      string
}

func (e *IncompatibleSourceError) Error() string {
	return fmt.Sprintf("metric %q is incompatible with %q: %s", e.CombineName, e.PrimaryName, e.Reason)
}

// InvalidJoinDimensionError is returned when a combined metric's join_on
// names a dimension missing from either side.
type InvalidJoinDimensionError struct {
	Dimension         string
	Alias             string
	PrimaryDimensions []string
	CombineDimensions []string
}

func (e *InvalidJoinDimensionError) Error() string {
	return fmt.Sprintf("invalid join dimension %q for %q\nPrimary dimensions: %v\nCombined dimensions: %v",
		e.Dimension, e.Alias, e.PrimaryDimensions, e.CombineDimensions)
}
