// Package sqlgen renders resolved semantic metrics as queries.
//
// Generators are looked up by data source type. SQL dialects share one
// generator and differ only in identifier quoting and limit syntax; concrete
// dialects are registered from pkg/generators/*/ packages.
package sqlgen

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Generator renders a resolved metric.
type Generator interface {
	Name() string
	Generate(m *core.SemanticMetric) (string, error)
}

// ErrGeneratorRequired is returned when no data source type is given.
var ErrGeneratorRequired = errors.New("data source type is required")

// ErrNoSource is returned for a metric with neither a table nor a raw query.
var ErrNoSource = errors.New("metric has neither table_name nor query")

// ErrUnsupportedOperator is returned for a filter operator with no SQL rendering.
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

// UnknownGeneratorError is returned when an unknown data source type is requested.
type UnknownGeneratorError struct {
	Type      string
	Available []string
}

func (e *UnknownGeneratorError) Error() string {
	return fmt.Sprintf("unknown data source type %q\nAvailable generators: %v\nHint: Check dialect in leapmetric.yaml", e.Type, e.Available)
}

// DuplicateAliasError is returned when two composed metrics share an alias.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("duplicate composition alias %q", e.Alias)
}
