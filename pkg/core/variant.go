package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMetricRef is returned when a MetricRef sets both or neither of
// MetricID and Inline.
var ErrInvalidMetricRef = errors.New("metric reference must set exactly one of metric_id or metric")

// ErrInvalidDefinition is returned when a Definition sets both or neither of
// Metric and Variant.
var ErrInvalidDefinition = errors.New("definition must be exactly one of metric or variant")

// Definition kinds as written in catalog documents.
const (
	KindMetric  = "metric"
	KindVariant = "variant"
)

// Definition is either a base metric or a variant.
type Definition struct {
	Metric  *SemanticMetric
	Variant *SemanticMetricVariant
}

// MetricDefinition wraps a base metric.
func MetricDefinition(m *SemanticMetric) *Definition {
	return &Definition{Metric: m}
}

// VariantDefinition wraps a variant.
func VariantDefinition(v *SemanticMetricVariant) *Definition {
	return &Definition{Variant: v}
}

// Validate checks that exactly one side of the definition is set.
func (d *Definition) Validate() error {
	if d == nil || (d.Metric == nil) == (d.Variant == nil) {
		return ErrInvalidDefinition
	}
	return nil
}

// IsVariant reports whether the definition holds a variant.
func (d *Definition) IsVariant() bool {
	return d != nil && d.Variant != nil
}

// Kind returns KindMetric or KindVariant.
func (d *Definition) Kind() string {
	if d.IsVariant() {
		return KindVariant
	}
	return KindMetric
}

// UnmarshalYAML decodes a definition document. The "kind" key selects the
// side; when it is absent a document with a "source" key is a variant.
func (d *Definition) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	kind, _ := raw["kind"].(string)
	if kind == "" {
		kind = KindMetric
		if _, ok := raw["source"]; ok {
			kind = KindVariant
		}
	}

	switch kind {
	case KindMetric:
		var doc struct {
			Kind           string `yaml:"kind"`
			SemanticMetric `yaml:",inline"`
		}
		if err := unmarshal(&doc); err != nil {
			return err
		}
		*d = Definition{Metric: &doc.SemanticMetric}
	case KindVariant:
		var doc struct {
			Kind                  string `yaml:"kind"`
			SemanticMetricVariant `yaml:",inline"`
		}
		if err := unmarshal(&doc); err != nil {
			return err
		}
		*d = Definition{Variant: &doc.SemanticMetricVariant}
	default:
		return fmt.Errorf("unknown definition kind %q, must be %s or %s", kind, KindMetric, KindVariant)
	}
	return nil
}

// MarshalJSON writes the set side flattened with a "kind" key.
func (d *Definition) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Variant != nil {
		return json.Marshal(struct {
			Kind string `json:"kind"`
			*SemanticMetricVariant
		}{KindVariant, d.Variant})
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*SemanticMetric
	}{KindMetric, d.Metric})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind   string          `json:"kind"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Kind == "" && probe.Source != nil {
		probe.Kind = KindVariant
	}

	switch probe.Kind {
	case KindVariant:
		v := &SemanticMetricVariant{}
		if err := json.Unmarshal(data, v); err != nil {
			return err
		}
		*d = Definition{Variant: v}
	case KindMetric, "":
		m := &SemanticMetric{}
		if err := json.Unmarshal(data, m); err != nil {
			return err
		}
		*d = Definition{Metric: m}
	default:
		return fmt.Errorf("unknown definition kind %q", probe.Kind)
	}
	return nil
}

// ID returns the id of whichever side is set.
func (d *Definition) ID() string {
	switch {
	case d == nil:
		return ""
	case d.Variant != nil:
		return d.Variant.ID
	case d.Metric != nil:
		return d.Metric.ID
	}
	return ""
}

// Name returns the name of whichever side is set.
func (d *Definition) Name() string {
	switch {
	case d == nil:
		return ""
	case d.Variant != nil:
		return d.Variant.Name
	case d.Metric != nil:
		return d.Metric.Name
	}
	return ""
}

// MetricRef points at a metric or variant, either by id or inline.
type MetricRef struct {
	MetricID string      `json:"metric_id,omitempty" yaml:"metric_id,omitempty"`
	Inline   *Definition `json:"metric,omitempty" yaml:"metric,omitempty"`
	Alias    string      `json:"alias,omitempty" yaml:"alias,omitempty"`
	// JoinOn lists dimension names used to join a combined metric. Only
	// meaningful inside Combine.
	JoinOn []string `json:"join_on,omitempty" yaml:"join_on,omitempty"`
}

// Validate checks that exactly one of MetricID and Inline is set.
func (r MetricRef) Validate() error {
	hasID := r.MetricID != ""
	hasInline := r.Inline != nil
	if hasID == hasInline {
		return ErrInvalidMetricRef
	}
	if hasInline {
		if err := r.Inline.Validate(); err != nil {
			return fmt.Errorf("inline metric: %w", err)
		}
	}
	return nil
}

// String describes the reference for logs and error messages.
func (r MetricRef) String() string {
	if r.MetricID != "" {
		return r.MetricID
	}
	if r.Inline != nil {
		return "inline:" + r.Inline.Name()
	}
	return "<empty>"
}

// ComponentNames lists component names per kind.
type ComponentNames struct {
	Measures   []string `json:"measures,omitempty" yaml:"measures,omitempty"`
	Dimensions []string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Filters    []string `json:"filters,omitempty" yaml:"filters,omitempty"`
	Joins      []string `json:"joins,omitempty" yaml:"joins,omitempty"`
}

// IncludedComponents is a whitelist applied before overrides. A nil list leaves
// that kind unrestricted; an empty list keeps nothing of that kind.
type IncludedComponents = ComponentNames

// Components holds full component objects per kind.
type Components struct {
	Measures   []Measure   `json:"measures,omitempty" yaml:"measures,omitempty"`
	Dimensions []Dimension `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Filters    []Filter    `json:"filters,omitempty" yaml:"filters,omitempty"`
	Joins      []Join      `json:"joins,omitempty" yaml:"joins,omitempty"`
	Order      []OrderBy   `json:"order,omitempty" yaml:"order,omitempty"`
}

// Overrides modifies the components and scalar settings inherited from a source.
type Overrides struct {
	Exclude *ComponentNames `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Replace *Components     `json:"replace,omitempty" yaml:"replace,omitempty"`
	Add     *Components     `json:"add,omitempty" yaml:"add,omitempty"`

	TableName *string `json:"table_name,omitempty" yaml:"table_name,omitempty"`
	Limit     *int    `json:"limit,omitempty" yaml:"limit,omitempty"`
	Grouped   *bool   `json:"grouped,omitempty" yaml:"grouped,omitempty"`
	Ordered   *bool   `json:"ordered,omitempty" yaml:"ordered,omitempty"`
}

// SemanticMetricVariant is a recipe that inherits from a source metric and
// compiles into a SemanticMetric. Its identity, version, visibility, cache,
// refresh, parameters and meta are its own and never inherited.
type SemanticMetricVariant struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Alias       string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	EnvironmentID string `json:"environment_id" yaml:"environment_id"`
	DataModelID   string `json:"data_model_id" yaml:"data_model_id"`
	DataSourceID  string `json:"data_source_id,omitempty" yaml:"data_source_id,omitempty"`

	SourceID    string              `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Source      MetricRef           `json:"source" yaml:"source"`
	Include     *IncludedComponents `json:"include,omitempty" yaml:"include,omitempty"`
	Overrides   *Overrides          `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Derivations []DerivedEntity     `json:"derivations,omitempty" yaml:"derivations,omitempty"`
	Combine     []MetricRef         `json:"combine,omitempty" yaml:"combine,omitempty"`

	Version    int            `json:"version,omitempty" yaml:"version,omitempty"`
	Public     bool           `json:"public,omitempty" yaml:"public,omitempty"`
	Cache      *CacheConfig   `json:"cache,omitempty" yaml:"cache,omitempty"`
	Refresh    *RefreshConfig `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Parameters []Parameter    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Meta       map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// References returns the ids this variant depends on directly: its source and
// every combined metric referenced by id. Inline references are walked.
func (v *SemanticMetricVariant) References() []string {
	var ids []string
	collect := func(ref MetricRef) {
		if ref.MetricID != "" {
			ids = append(ids, ref.MetricID)
			return
		}
		if ref.Inline != nil && ref.Inline.Variant != nil {
			ids = append(ids, ref.Inline.Variant.References()...)
		}
	}
	collect(v.Source)
	for _, ref := range v.Combine {
		collect(ref)
	}
	return ids
}
