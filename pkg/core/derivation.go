package core

// DerivationKind names a derived calculation.
type DerivationKind string

// Aggregate-window kinds.
const (
	DerivePercentOfTotal  DerivationKind = "percent_of_total"
	DeriveShare           DerivationKind = "share"
	DeriveRunningTotal    DerivationKind = "running_total"
	DeriveCumulativeCount DerivationKind = "cumulative_count"
)

// Arithmetic kinds. Each takes two inputs: source.measure and source.by.
const (
	DeriveDivide   DerivationKind = "divide"
	DeriveMultiply DerivationKind = "multiply"
	DeriveSubtract DerivationKind = "subtract"
	DeriveAdd      DerivationKind = "add"
)

// Window kinds.
const (
	DeriveRowNumber   DerivationKind = "row_number"
	DeriveRank        DerivationKind = "rank"
	DeriveDenseRank   DerivationKind = "dense_rank"
	DerivePercentRank DerivationKind = "percent_rank"
	DeriveCumeDist    DerivationKind = "cume_dist"
	DeriveNtile       DerivationKind = "ntile"
	DeriveLag         DerivationKind = "lag"
	DeriveLead        DerivationKind = "lead"
	DeriveFirstValue  DerivationKind = "first_value"
	DeriveLastValue   DerivationKind = "last_value"
	DeriveNthValue    DerivationKind = "nth_value"
)

// DerivationKinds lists every declared kind in declaration order.
var DerivationKinds = []DerivationKind{
	DerivePercentOfTotal, DeriveShare, DeriveRunningTotal, DeriveCumulativeCount,
	DeriveDivide, DeriveMultiply, DeriveSubtract, DeriveAdd,
	DeriveRowNumber, DeriveRank, DeriveDenseRank, DerivePercentRank, DeriveCumeDist,
	DeriveNtile, DeriveLag, DeriveLead, DeriveFirstValue, DeriveLastValue, DeriveNthValue,
}

// SourceRef names the inputs of a derivation. Measure may be qualified as
// "alias.measure" to reference a composed metric.
type SourceRef struct {
	Measure string `json:"measure" yaml:"measure"`
	By      string `json:"by,omitempty" yaml:"by,omitempty"`
}

// DerivedEntity is a calculated column layered on top of a metric's measures.
type DerivedEntity struct {
	Name           string         `json:"name" yaml:"name"`
	Type           DerivationKind `json:"type" yaml:"type"`
	Source         SourceRef      `json:"source" yaml:"source"`
	OrderDimension string         `json:"order_dimension,omitempty" yaml:"order_dimension,omitempty"`
	PartitionBy    []string       `json:"partition_by,omitempty" yaml:"partition_by,omitempty"`
	Offset         *int           `json:"offset,omitempty" yaml:"offset,omitempty"`
	DefaultValue   any            `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	N              *int           `json:"n,omitempty" yaml:"n,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Format         string         `json:"format,omitempty" yaml:"format,omitempty"`
}
