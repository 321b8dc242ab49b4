// Package derive validates derived calculations against a metric's measures
// and its composed sub-metrics.
package derive

import "github.com/leapstack-labs/leapmetric/pkg/core"

// Category groups derivation kinds by how they are rendered.
type Category int

// Derivation categories.
const (
	CategoryAggregateWindow Category = iota
	CategoryArithmetic
	CategoryWindow
)

func (c Category) String() string {
	switch c {
	case CategoryAggregateWindow:
		return "aggregate_window"
	case CategoryArithmetic:
		return "arithmetic"
	case CategoryWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Rule describes the parameters a derivation kind requires.
type Rule struct {
	Category       Category
	NeedsBy        bool
	NeedsOrder     bool
	NeedsPartition bool
	NeedsN         bool
}

// Kinds is the closed table of supported derivation kinds.
var Kinds = map[core.DerivationKind]Rule{
	core.DerivePercentOfTotal:  {Category: CategoryAggregateWindow},
	core.DeriveShare:           {Category: CategoryAggregateWindow, NeedsPartition: true},
	core.DeriveRunningTotal:    {Category: CategoryAggregateWindow, NeedsOrder: true},
	core.DeriveCumulativeCount: {Category: CategoryAggregateWindow, NeedsOrder: true},

	core.DeriveDivide:   {Category: CategoryArithmetic, NeedsBy: true},
	core.DeriveMultiply: {Category: CategoryArithmetic, NeedsBy: true},
	core.DeriveSubtract: {Category: CategoryArithmetic, NeedsBy: true},
	core.DeriveAdd:      {Category: CategoryArithmetic, NeedsBy: true},

	core.DeriveRowNumber:   {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveRank:        {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveDenseRank:   {Category: CategoryWindow, NeedsOrder: true},
	core.DerivePercentRank: {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveCumeDist:    {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveNtile:       {Category: CategoryWindow, NeedsOrder: true, NeedsN: true},
	core.DeriveLag:         {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveLead:        {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveFirstValue:  {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveLastValue:   {Category: CategoryWindow, NeedsOrder: true},
	core.DeriveNthValue:    {Category: CategoryWindow, NeedsOrder: true, NeedsN: true},
}

// Lookup returns the rule for a kind.
func Lookup(kind core.DerivationKind) (Rule, bool) {
	r, ok := Kinds[kind]
	return r, ok
}
