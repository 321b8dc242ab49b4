// Package joininfer proposes joins for tables a metric references but never joins.
//
// Matching tries, in order: declared foreign keys, shared column names and the
// {singular}_id naming convention. Inference is best effort and never fails;
// tables that cannot be matched are skipped.
package joininfer

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// surrogateKey is each table's own id column; sharing it is not a relationship.
const surrogateKey = "id"

// Strategy names which rule produced a join condition.
type Strategy string

// Matching strategies in priority order.
const (
	StrategyForeignKey Strategy = "foreign_key"
	StrategyCommon     Strategy = "common_column"
	StrategyNaming     Strategy = "naming_convention"
)

// Match is a proposed equality between two tables.
type Match struct {
	LeftTable   string   `json:"left_table"`
	LeftColumn  string   `json:"left_column"`
	RightTable  string   `json:"right_table"`
	RightColumn string   `json:"right_column"`
	Strategy    Strategy `json:"strategy"`
}

// Join converts the match into a LEFT JOIN.
func (m Match) Join() core.Join {
	return core.Join{
		Name:       m.LeftTable + "_" + m.RightTable,
		Type:       core.JoinTypeLeft,
		LeftTable:  m.LeftTable,
		RightTable: m.RightTable,
		Conditions: []core.JoinCondition{{
			LeftColumn:  m.LeftColumn,
			RightColumn: m.RightColumn,
			Operator:    core.DefaultJoinOperator,
		}},
	}
}

// Infer returns LEFT JOINs for referenced tables missing from the metric's joins.
func Infer(m *core.SemanticMetric, schema *core.DatabaseSchema) []core.Join {
	matches := InferMatches(m, schema)
	if len(matches) == 0 {
		return nil
	}
	joins := make([]core.Join, 0, len(matches))
	for _, match := range matches {
		joins = append(joins, match.Join())
	}
	return joins
}

// InferMatches is Infer with the matching strategy of each join.
func InferMatches(m *core.SemanticMetric, schema *core.DatabaseSchema) []Match {
	if m == nil || schema == nil || m.TableName == "" {
		return nil
	}

	present := map[string]bool{m.TableName: true}
	var joined []string
	for _, j := range m.Joins {
		for _, t := range []string{j.LeftTable, j.RightTable} {
			if t == "" || present[t] {
				continue
			}
			present[t] = true
			joined = append(joined, t)
		}
		if j.Alias != "" {
			present[j.Alias] = true
		}
	}
	sort.Strings(joined)

	missing := MissingTables(m, present)
	if len(missing) == 0 {
		return nil
	}

	candidates := append([]string{m.TableName}, joined...)
	var out []Match
	for _, table := range missing {
		right := schema.Table(table)
		if right == nil {
			continue
		}
		for _, leftName := range candidates {
			left := schema.Table(leftName)
			if left == nil {
				continue
			}
			lcol, rcol, strategy, ok := matchTables(left, right)
			if !ok {
				continue
			}
			out = append(out, Match{
				LeftTable:   leftName,
				LeftColumn:  lcol,
				RightTable:  table,
				RightColumn: rcol,
				Strategy:    strategy,
			})
			candidates = append(candidates, table)
			break
		}
	}
	return out
}

// MissingTables returns referenced tables not in present, sorted.
func MissingTables(m *core.SemanticMetric, present map[string]bool) []string {
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !present[t] {
			seen[t] = true
		}
	}
	for _, ms := range m.Measures {
		add(ms.Table)
	}
	for _, d := range m.Dimensions {
		add(d.Table)
	}
	for _, f := range m.Filters {
		add(f.Table)
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func matchTables(left, right *core.TableSchema) (string, string, Strategy, bool) {
	if l, r, ok := matchForeignKey(left, right); ok {
		return l, r, StrategyForeignKey, true
	}
	if c, ok := matchCommonColumn(left, right); ok {
		return c, c, StrategyCommon, true
	}
	if l, r, ok := matchNaming(left, right); ok {
		return l, r, StrategyNaming, true
	}
	return "", "", "", false
}

// matchForeignKey looks for a declared foreign key on either table that
// points at the other and whose columns both exist.
func matchForeignKey(left, right *core.TableSchema) (string, string, bool) {
	for _, fk := range left.ForeignKeys {
		for _, rel := range fk.Relations {
			if sameTable(rel.ReferencedTable, right.Name) && left.HasColumn(rel.Column) && right.HasColumn(rel.ReferencedColumn) {
				return rel.Column, rel.ReferencedColumn, true
			}
		}
	}
	for _, fk := range right.ForeignKeys {
		for _, rel := range fk.Relations {
			if sameTable(rel.ReferencedTable, left.Name) && right.HasColumn(rel.Column) && left.HasColumn(rel.ReferencedColumn) {
				return rel.ReferencedColumn, rel.Column, true
			}
		}
	}
	return "", "", false
}

// matchCommonColumn picks a column present in both tables, preferring names
// containing "id" and then alphabetical order.
func matchCommonColumn(left, right *core.TableSchema) (string, bool) {
	var common []string
	for _, c := range left.Columns {
		if strings.EqualFold(c.Name, surrogateKey) {
			continue
		}
		if right.HasColumn(c.Name) {
			common = append(common, c.Name)
		}
	}
	if len(common) == 0 {
		return "", false
	}
	sort.Slice(common, func(i, j int) bool {
		ai := strings.Contains(strings.ToLower(common[i]), "id")
		aj := strings.Contains(strings.ToLower(common[j]), "id")
		if ai != aj {
			return ai
		}
		return common[i] < common[j]
	})
	return common[0], true
}

// matchNaming looks for {singular}_id on one table paired with the other's id.
func matchNaming(left, right *core.TableSchema) (string, string, bool) {
	if fk := Singularize(shortName(right.Name)) + "_id"; left.HasColumn(fk) && right.HasColumn(surrogateKey) {
		return fk, surrogateKey, true
	}
	if fk := Singularize(shortName(left.Name)) + "_id"; right.HasColumn(fk) && left.HasColumn(surrogateKey) {
		return surrogateKey, fk, true
	}
	return "", "", false
}

// Singularize applies simple English plural rules to a table name.
func Singularize(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "ies") && len(name) > 3:
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(lower, "ses"), strings.HasSuffix(lower, "xes"), strings.HasSuffix(lower, "zes"):
		return name[:len(name)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return name[:len(name)-1]
	}
	return name
}

func shortName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func sameTable(a, b string) bool {
	return strings.EqualFold(a, b) || strings.EqualFold(shortName(a), shortName(b))
}

// Apply returns a copy of m with joins appended.
func Apply(m *core.SemanticMetric, joins []core.Join) (*core.SemanticMetric, error) {
	out, err := m.Clone()
	if err != nil {
		return nil, err
	}
	out.Joins = append(out.Joins, joins...)
	out.CompiledQuery = ""
	return out, nil
}
