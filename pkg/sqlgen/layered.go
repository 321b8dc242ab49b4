package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

const (
	frameToCurrent = "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
	frameAll       = "ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"
)

// Internal CTE names. Both are always quoted.
const (
	baseCTE           = "__base"
	composedCTEPrefix = "__cte_"
)

// layered wraps the core query in a base CTE, adds one CTE per composed
// metric and selects derivations on top. Ordering and limit move outward.
//
// CTEs get internal names so they never shadow a table read by a later
// CTE. Composition aliases only name output columns and qualify references.
func (g *SQLGenerator) layered(m *core.SemanticMetric, body string) (string, error) {
	base := g.dialect.QuoteIdentifier(baseCTE)
	ctes := []string{base + " AS (" + body + ")"}
	selects := []string{base + ".*"}
	var joins []string

	names := make(map[string]string, len(m.Composition))
	for i, c := range m.Composition {
		if _, dup := names[c.Alias]; dup {
			return "", &DuplicateAliasError{Alias: c.Alias}
		}
		name := g.dialect.QuoteIdentifier(composedCTEPrefix + strconv.Itoa(i+1))
		names[c.Alias] = name

		sub, err := g.Generate(c.Metric)
		if err != nil {
			return "", fmt.Errorf("composed metric %q: %w", c.Alias, err)
		}
		ctes = append(ctes, name+" AS ("+sub+")")

		for _, measure := range c.Metric.MeasureNames() {
			selects = append(selects, name+"."+g.dialect.QuoteIdentifier(measure)+" AS "+g.dialect.QuoteIdentifier(c.Alias+"_"+measure))
		}

		conds := make([]string, 0, len(c.JoinOn))
		for _, dim := range c.JoinOn {
			q := g.dialect.QuoteIdentifier(dim)
			conds = append(conds, base+"."+q+" = "+name+"."+q)
		}
		joins = append(joins, "LEFT JOIN "+name+" ON "+strings.Join(conds, " AND "))
	}

	derived := make(map[string]bool, len(m.Derivations))
	for _, d := range m.Derivations {
		expr, err := g.derivation(d, names)
		if err != nil {
			return "", err
		}
		selects = append(selects, expr+" AS "+g.dialect.QuoteIdentifier(d.Name))
		derived[d.Name] = true
	}

	return joinClauses(
		"WITH "+strings.Join(ctes, ", "),
		"SELECT "+strings.Join(selects, ", "),
		"FROM "+base,
		strings.Join(joins, " "),
		g.layeredOrderClause(m, names, derived),
		g.limitClause(m),
	), nil
}

// layeredOrderClause qualifies order items with their CTE. Derivations are
// ordered by their output name.
func (g *SQLGenerator) layeredOrderClause(m *core.SemanticMetric, ctes map[string]string, derived map[string]bool) string {
	if !m.Ordered || len(m.Order) == 0 {
		return ""
	}
	items := make([]string, 0, len(m.Order))
	for _, o := range m.Order {
		item := g.ref(o.Name, ctes)
		if derived[o.Name] {
			item = g.dialect.QuoteIdentifier(o.Name)
		}
		if strings.EqualFold(o.Direction, "desc") {
			item += " DESC"
		}
		items = append(items, item)
	}
	return "ORDER BY " + strings.Join(items, ", ")
}

// ref qualifies a measure or dimension reference with its CTE. Names of the
// form "alias.name" with a known alias point into a composed metric; all
// others are base columns.
func (g *SQLGenerator) ref(name string, ctes map[string]string) string {
	if alias, col, ok := strings.Cut(name, "."); ok {
		if cte, known := ctes[alias]; known {
			return cte + "." + g.dialect.QuoteIdentifier(col)
		}
	}
	return g.dialect.QuoteIdentifier(baseCTE) + "." + g.dialect.QuoteIdentifier(name)
}

// over renders a window specification.
func (g *SQLGenerator) over(d core.DerivedEntity, ctes map[string]string, withOrder bool, frame string) string {
	var parts []string
	if len(d.PartitionBy) > 0 {
		cols := make([]string, 0, len(d.PartitionBy))
		for _, p := range d.PartitionBy {
			cols = append(cols, g.ref(p, ctes))
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if withOrder && d.OrderDimension != "" {
		parts = append(parts, "ORDER BY "+g.ref(d.OrderDimension, ctes))
		if frame != "" {
			parts = append(parts, frame)
		}
	}
	return "OVER (" + strings.Join(parts, " ") + ")"
}

func (g *SQLGenerator) derivation(d core.DerivedEntity, ctes map[string]string) (string, error) {
	m := g.ref(d.Source.Measure, ctes)
	by := ""
	if d.Source.By != "" {
		by = g.ref(d.Source.By, ctes)
	}

	switch d.Type {
	case core.DerivePercentOfTotal:
		return m + " * 100.0 / NULLIF(SUM(" + m + ") " + g.over(d, ctes, false, "") + ", 0)", nil
	case core.DeriveShare:
		return m + " * 1.0 / NULLIF(SUM(" + m + ") " + g.over(d, ctes, false, "") + ", 0)", nil
	case core.DeriveRunningTotal:
		return "SUM(" + m + ") " + g.over(d, ctes, true, frameToCurrent), nil
	case core.DeriveCumulativeCount:
		return "COUNT(" + m + ") " + g.over(d, ctes, true, frameToCurrent), nil

	case core.DeriveDivide:
		return m + " * 1.0 / NULLIF(" + by + ", 0)", nil
	case core.DeriveMultiply:
		return m + " * " + by, nil
	case core.DeriveSubtract:
		return m + " - " + by, nil
	case core.DeriveAdd:
		return m + " + " + by, nil

	case core.DeriveRowNumber:
		return "ROW_NUMBER() " + g.over(d, ctes, true, ""), nil
	case core.DeriveRank:
		return "RANK() " + g.over(d, ctes, true, ""), nil
	case core.DeriveDenseRank:
		return "DENSE_RANK() " + g.over(d, ctes, true, ""), nil
	case core.DerivePercentRank:
		return "PERCENT_RANK() " + g.over(d, ctes, true, ""), nil
	case core.DeriveCumeDist:
		return "CUME_DIST() " + g.over(d, ctes, true, ""), nil
	case core.DeriveNtile:
		return "NTILE(" + strconv.Itoa(intOr(d.N, 1)) + ") " + g.over(d, ctes, true, ""), nil
	case core.DeriveLag, core.DeriveLead:
		fn := "LAG"
		if d.Type == core.DeriveLead {
			fn = "LEAD"
		}
		args := m + ", " + strconv.Itoa(intOr(d.Offset, 1))
		if d.DefaultValue != nil {
			args += ", " + Literal(d.DefaultValue)
		}
		return fn + "(" + args + ") " + g.over(d, ctes, true, ""), nil
	case core.DeriveFirstValue:
		return "FIRST_VALUE(" + m + ") " + g.over(d, ctes, true, ""), nil
	case core.DeriveLastValue:
		return "LAST_VALUE(" + m + ") " + g.over(d, ctes, true, frameAll), nil
	case core.DeriveNthValue:
		return "NTH_VALUE(" + m + ", " + strconv.Itoa(intOr(d.N, 1)) + ") " + g.over(d, ctes, true, ""), nil
	}

	return "", &core.InvalidDerivationError{
		Derivation: d.Name,
		Field:      "type",
		Reason:     fmt.Sprintf("unknown derivation type %q", d.Type),
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
