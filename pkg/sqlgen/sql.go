package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// QueryAlias names the subquery of a raw-query metric without a table_name.
const QueryAlias = "base"

var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLGenerator renders metrics as SELECT statements in one dialect.
type SQLGenerator struct {
	dialect *Dialect
}

// NewSQLGenerator creates a generator for a dialect.
func NewSQLGenerator(d *Dialect) *SQLGenerator {
	return &SQLGenerator{dialect: d}
}

// Name returns the dialect name.
func (g *SQLGenerator) Name() string {
	return g.dialect.Name
}

// Dialect returns the generator's dialect.
func (g *SQLGenerator) Dialect() *Dialect {
	return g.dialect
}

// Generate renders a resolved metric.
func (g *SQLGenerator) Generate(m *core.SemanticMetric) (string, error) {
	if m == nil {
		return "", core.ErrInvalidDefinition
	}

	if m.Query != "" && nothingToAdd(m) {
		return trimQuery(m.Query), nil
	}

	body, err := g.coreQuery(m)
	if err != nil {
		return "", err
	}

	if len(m.Derivations) == 0 && len(m.Composition) == 0 {
		return joinClauses(body, g.orderClause(m), g.limitClause(m)), nil
	}
	return g.layered(m, body)
}

// nothingToAdd reports whether a raw-query metric declares nothing beyond its query.
func nothingToAdd(m *core.SemanticMetric) bool {
	return len(m.Measures) == 0 &&
		len(m.Dimensions) == 0 &&
		len(m.Filters) == 0 &&
		len(m.Joins) == 0 &&
		len(m.Derivations) == 0 &&
		len(m.Composition) == 0 &&
		!(m.Ordered && len(m.Order) > 0) &&
		m.Limit <= 0
}

func trimQuery(q string) string {
	return strings.TrimRight(strings.TrimSpace(q), "; \t\n")
}

// coreQuery renders SELECT, FROM, joins, WHERE and GROUP BY.
func (g *SQLGenerator) coreQuery(m *core.SemanticMetric) (string, error) {
	from, err := g.fromClause(m)
	if err != nil {
		return "", err
	}

	joins, err := g.joinList(m)
	if err != nil {
		return "", err
	}

	where, err := g.whereClause(m)
	if err != nil {
		return "", err
	}

	return joinClauses("SELECT "+g.selectList(m), from, joins, where, g.groupClause(m)), nil
}

func (g *SQLGenerator) selectList(m *core.SemanticMetric) string {
	items := make([]string, 0, len(m.Dimensions)+len(m.Measures))
	for _, d := range m.Dimensions {
		items = append(items, expression(d.Query, d.Name, d.Table)+" AS "+g.dialect.QuoteIdentifier(d.Name))
	}
	for _, ms := range m.Measures {
		items = append(items, measureExpression(ms)+" AS "+g.dialect.QuoteIdentifier(ms.Name))
	}
	if len(items) == 0 {
		return "*"
	}
	return strings.Join(items, ", ")
}

func measureExpression(ms core.Measure) string {
	e := expression(ms.Query, ms.Name, ms.Table)
	switch ms.Type {
	case core.MeasureCount:
		return "COUNT(" + e + ")"
	case core.MeasureSum:
		return "SUM(" + e + ")"
	case core.MeasureAvg:
		return "AVG(" + e + ")"
	default:
		return e
	}
}

// expression returns query, falling back to name, qualified with table when
// the result is a bare identifier.
func expression(query, name, table string) string {
	e := query
	if e == "" {
		e = name
	}
	if table != "" && bareIdentifier.MatchString(e) {
		return table + "." + e
	}
	return e
}

// qualify prefixes a column with its table unless it is already qualified.
func qualify(table, column string) string {
	if table == "" || strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

func (g *SQLGenerator) fromClause(m *core.SemanticMetric) (string, error) {
	if m.Query != "" {
		alias := m.TableName
		if alias == "" {
			alias = QueryAlias
		}
		return "FROM (" + trimQuery(m.Query) + ") AS " + alias, nil
	}
	if m.TableName == "" {
		return "", fmt.Errorf("metric %q: %w", m.ID, ErrNoSource)
	}
	return "FROM " + m.TableName, nil
}

// primaryRef is how joins refer to the metric's own table.
func primaryRef(m *core.SemanticMetric) string {
	if m.Query != "" && m.TableName == "" {
		return QueryAlias
	}
	return m.TableName
}

var joinKeywords = map[core.JoinType]string{
	"":                 "INNER JOIN",
	core.JoinTypeInner: "INNER JOIN",
	core.JoinTypeLeft:  "LEFT JOIN",
	core.JoinTypeRight: "RIGHT JOIN",
	core.JoinTypeFull:  "FULL OUTER JOIN",
	core.JoinTypeCross: "CROSS JOIN",
}

func (g *SQLGenerator) joinList(m *core.SemanticMetric) (string, error) {
	if len(m.Joins) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(m.Joins))
	for _, j := range m.Joins {
		keyword, ok := joinKeywords[core.JoinType(strings.ToLower(string(j.Type)))]
		if !ok {
			return "", fmt.Errorf("join %q: unsupported join type %q", j.Name, j.Type)
		}
		if j.RightTable == "" {
			return "", fmt.Errorf("join %q: right_table is required", j.Name)
		}

		target := j.RightTable
		right := j.RightTable
		if j.Alias != "" {
			target += " AS " + j.Alias
			right = j.Alias
		}

		if keyword == "CROSS JOIN" {
			parts = append(parts, keyword+" "+target)
			continue
		}
		if len(j.Conditions) == 0 {
			return "", fmt.Errorf("join %q: at least one condition is required", j.Name)
		}

		left := j.LeftTable
		if left == "" {
			left = primaryRef(m)
		}
		conds := make([]string, 0, len(j.Conditions))
		for _, c := range j.Conditions {
			conds = append(conds, qualify(left, c.LeftColumn)+" "+c.Op()+" "+qualify(right, c.RightColumn))
		}
		parts = append(parts, keyword+" "+target+" ON "+strings.Join(conds, " AND "))
	}
	return strings.Join(parts, " "), nil
}

func (g *SQLGenerator) whereClause(m *core.SemanticMetric) (string, error) {
	if len(m.Filters) == 0 {
		return "", nil
	}
	preds := make([]string, 0, len(m.Filters))
	for _, f := range m.Filters {
		p, err := renderFilter(f)
		if err != nil {
			return "", err
		}
		preds = append(preds, p)
	}
	return "WHERE " + strings.Join(preds, " AND "), nil
}

func (g *SQLGenerator) groupClause(m *core.SemanticMetric) string {
	if !m.Grouped || len(m.Dimensions) == 0 {
		return ""
	}
	exprs := make([]string, 0, len(m.Dimensions))
	for _, d := range m.Dimensions {
		exprs = append(exprs, expression(d.Query, d.Name, d.Table))
	}
	return "GROUP BY " + strings.Join(exprs, ", ")
}

func (g *SQLGenerator) orderClause(m *core.SemanticMetric) string {
	if !m.Ordered || len(m.Order) == 0 {
		return ""
	}
	items := make([]string, 0, len(m.Order))
	for _, o := range m.Order {
		item := g.dialect.QuoteIdentifier(o.Name)
		if strings.EqualFold(o.Direction, "desc") {
			item += " DESC"
		}
		items = append(items, item)
	}
	return "ORDER BY " + strings.Join(items, ", ")
}

func (g *SQLGenerator) limitClause(m *core.SemanticMetric) string {
	if m.Limit <= 0 {
		return ""
	}
	return g.dialect.LimitClause(m.Limit)
}

// joinClauses joins non-empty clauses with single spaces.
func joinClauses(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
