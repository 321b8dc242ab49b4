package core

import (
	"fmt"
	"time"

	"github.com/mitchellh/copystructure"
)

// MeasureType is the calculation kind of a measure.
type MeasureType string

// Measure calculation kinds. Kinds other than count, sum and avg are rendered
// as their raw expression.
const (
	MeasureCount   MeasureType = "count"
	MeasureSum     MeasureType = "sum"
	MeasureAvg     MeasureType = "avg"
	MeasureNumber  MeasureType = "number"
	MeasureString  MeasureType = "string"
	MeasureTime    MeasureType = "time"
	MeasureBoolean MeasureType = "boolean"
)

// JoinType is the kind of a SQL join.
type JoinType string

// Join kinds.
const (
	JoinTypeInner JoinType = "inner"
	JoinTypeLeft  JoinType = "left"
	JoinTypeRight JoinType = "right"
	JoinTypeFull  JoinType = "full"
	JoinTypeCross JoinType = "cross"
)

// DefaultJoinOperator is used when a join condition omits its operator.
const DefaultJoinOperator = "="

// Measure is an aggregated quantity of a metric.
type Measure struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Type        MeasureType `json:"type" yaml:"type"`
	Format      string      `json:"format,omitempty" yaml:"format,omitempty"`
	Alias       string      `json:"alias,omitempty" yaml:"alias,omitempty"`
	// Query is the raw SQL expression. The measure name is used when empty.
	Query      string `json:"query,omitempty" yaml:"query,omitempty"`
	Table      string `json:"table,omitempty" yaml:"table,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// Dimension is a categorical attribute used for grouping.
type Dimension struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	// Query is the grouping expression. The dimension name is used when empty.
	Query      string `json:"query,omitempty" yaml:"query,omitempty"`
	Table      string `json:"table,omitempty" yaml:"table,omitempty"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// JoinCondition pairs a column of the left table with a column of the right table.
type JoinCondition struct {
	LeftColumn  string `json:"left_column" yaml:"left_column"`
	RightColumn string `json:"right_column" yaml:"right_column"`
	Operator    string `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Op returns the condition operator, defaulting to "=".
func (c JoinCondition) Op() string {
	if c.Operator == "" {
		return DefaultJoinOperator
	}
	return c.Operator
}

// Join connects the metric's tables.
type Join struct {
	Name       string          `json:"name" yaml:"name"`
	Type       JoinType        `json:"type" yaml:"type"`
	LeftTable  string          `json:"left_table" yaml:"left_table"`
	RightTable string          `json:"right_table" yaml:"right_table"`
	Conditions []JoinCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Alias      string          `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Filter is a predicate over a table column. When Query is set it is used verbatim.
type Filter struct {
	Name     string `json:"name" yaml:"name"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Values   []any  `json:"values,omitempty" yaml:"values,omitempty"`
	Query    string `json:"query,omitempty" yaml:"query,omitempty"`
}

// OrderBy orders results by a measure or dimension name.
type OrderBy struct {
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"` // asc, desc
}

// Parameter is a runtime parameter definition.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// CacheConfig controls result caching for a metric.
type CacheConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	TTLSeconds int  `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// RefreshConfig controls scheduled refresh for a metric.
type RefreshConfig struct {
	Every string `json:"every,omitempty" yaml:"every,omitempty"`
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// CompositionSource is a resolved sub-metric joined into the primary query as a CTE.
// It is only ever populated by the compiler.
type CompositionSource struct {
	Alias  string          `json:"alias" yaml:"alias"`
	Metric *SemanticMetric `json:"metric" yaml:"metric"`
	JoinOn []string        `json:"join_on" yaml:"join_on"`
}

// SemanticMetric is a fully resolved, executable metric.
type SemanticMetric struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Alias       string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	EnvironmentID string `json:"environment_id" yaml:"environment_id"`
	DataModelID   string `json:"data_model_id" yaml:"data_model_id"`
	DataSourceID  string `json:"data_source_id,omitempty" yaml:"data_source_id,omitempty"`

	Query     string `json:"query,omitempty" yaml:"query,omitempty"`
	TableName string `json:"table_name,omitempty" yaml:"table_name,omitempty"`
	Limit     int    `json:"limit,omitempty" yaml:"limit,omitempty"`
	Grouped   bool   `json:"grouped,omitempty" yaml:"grouped,omitempty"`
	Ordered   bool   `json:"ordered,omitempty" yaml:"ordered,omitempty"`

	Measures    []Measure           `json:"measures,omitempty" yaml:"measures,omitempty"`
	Dimensions  []Dimension         `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Joins       []Join              `json:"joins,omitempty" yaml:"joins,omitempty"`
	Filters     []Filter            `json:"filters,omitempty" yaml:"filters,omitempty"`
	Order       []OrderBy           `json:"order,omitempty" yaml:"order,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Derivations []DerivedEntity     `json:"derivations,omitempty" yaml:"derivations,omitempty"`
	Composition []CompositionSource `json:"composition,omitempty" yaml:"-"`

	Version   int            `json:"version,omitempty" yaml:"version,omitempty"`
	Public    bool           `json:"public,omitempty" yaml:"public,omitempty"`
	Cache     *CacheConfig   `json:"cache,omitempty" yaml:"cache,omitempty"`
	Refresh   *RefreshConfig `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Meta      map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`

	IsValid       bool     `json:"is_valid" yaml:"-"`
	Errors        []string `json:"errors,omitempty" yaml:"-"`
	CompiledQuery string   `json:"compiled_query,omitempty" yaml:"-"`
}

// Clone returns a deep copy of the metric, including its composition sources.
func (m *SemanticMetric) Clone() (*SemanticMetric, error) {
	if m == nil {
		return nil, nil
	}
	copied, err := copystructure.Copy(m)
	if err != nil {
		return nil, fmt.Errorf("copy metric %q: %w", m.ID, err)
	}
	return copied.(*SemanticMetric), nil
}

// MeasureNames returns measure names in declaration order.
func (m *SemanticMetric) MeasureNames() []string {
	names := make([]string, 0, len(m.Measures))
	for _, ms := range m.Measures {
		names = append(names, ms.Name)
	}
	return names
}

// DimensionNames returns dimension names in declaration order.
func (m *SemanticMetric) DimensionNames() []string {
	names := make([]string, 0, len(m.Dimensions))
	for _, d := range m.Dimensions {
		names = append(names, d.Name)
	}
	return names
}

// Dimension returns the dimension with the given name.
func (m *SemanticMetric) Dimension(name string) (Dimension, bool) {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// DisplayName returns the alias when set, otherwise the name.
func (m *SemanticMetric) DisplayName() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.Name
}
