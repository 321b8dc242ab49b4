package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Filter operators.
const (
	OpEquals     = "equals"
	OpNotEquals  = "not_equals"
	OpGT         = "gt"
	OpGTE        = "gte"
	OpLT         = "lt"
	OpLTE        = "lte"
	OpIn         = "in"
	OpNotIn      = "not_in"
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpIsNull     = "is_null"
	OpIsNotNull  = "is_not_null"
)

var comparisonOps = map[string]string{
	OpEquals:    "=",
	OpNotEquals: "<>",
	OpGT:        ">",
	OpGTE:       ">=",
	OpLT:        "<",
	OpLTE:       "<=",
}

// renderFilter renders one filter as a SQL predicate.
func renderFilter(f core.Filter) (string, error) {
	if f.Query != "" {
		return f.Query, nil
	}
	if f.Column == "" {
		return "", fmt.Errorf("filter %q: column is required", f.Name)
	}

	col := qualify(f.Table, f.Column)
	op := strings.ToLower(f.Operator)

	if sym, ok := comparisonOps[op]; ok {
		if len(f.Values) != 1 {
			return "", fmt.Errorf("filter %q: %s takes exactly one value, got %d", f.Name, op, len(f.Values))
		}
		return col + " " + sym + " " + Literal(f.Values[0]), nil
	}

	switch op {
	case OpIn, OpNotIn:
		if len(f.Values) == 0 {
			return "", fmt.Errorf("filter %q: %s needs at least one value", f.Name, op)
		}
		lits := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			lits = append(lits, Literal(v))
		}
		kw := " IN ("
		if op == OpNotIn {
			kw = " NOT IN ("
		}
		return col + kw + strings.Join(lits, ", ") + ")", nil
	case OpContains, OpStartsWith:
		if len(f.Values) != 1 {
			return "", fmt.Errorf("filter %q: %s takes exactly one value, got %d", f.Name, op, len(f.Values))
		}
		pattern := escapeString(fmt.Sprint(f.Values[0])) + "%"
		if op == OpContains {
			pattern = "%" + pattern
		}
		return col + " LIKE '" + pattern + "'", nil
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil
	}

	return "", fmt.Errorf("filter %q: %w %q", f.Name, ErrUnsupportedOperator, f.Operator)
}

// Literal renders a Go value as a SQL literal. Numbers are rendered raw and
// strings are single-quoted.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return "'" + x.Format(time.RFC3339) + "'"
	case string:
		return "'" + escapeString(x) + "'"
	default:
		return "'" + escapeString(fmt.Sprint(x)) + "'"
	}
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
