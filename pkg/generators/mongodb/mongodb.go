// Package mongodb renders metrics as MongoDB aggregation pipelines.
//
// Each metric maps to one collection (table_name). Filters become a $match
// stage, dimensions the $group key and measures its accumulators. Joins, raw
// queries, derivations and composed metrics have no pipeline rendering.
package mongodb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

// Name is the data source type this generator registers under.
const Name = "mongodb"

// ErrUnsupported is returned for metric features with no pipeline rendering.
var ErrUnsupported = errors.New("not supported by the mongodb generator")

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

func init() {
	sqlgen.Register(Name, func() sqlgen.Generator { return &Generator{} })
	sqlgen.Register("mongo", func() sqlgen.Generator { return &Generator{} })
}

// Generator implements sqlgen.Generator for MongoDB.
type Generator struct{}

// Name returns "mongodb".
func (g *Generator) Name() string {
	return Name
}

// Generate returns an aggregate command as relaxed extended JSON.
func (g *Generator) Generate(m *core.SemanticMetric) (string, error) {
	pipeline, err := Pipeline(m)
	if err != nil {
		return "", err
	}
	cmd := bson.D{
		{Key: "aggregate", Value: m.TableName},
		{Key: "pipeline", Value: pipeline},
		{Key: "cursor", Value: bson.D{}},
	}
	out, err := bson.MarshalExtJSON(cmd, false, false)
	if err != nil {
		return "", fmt.Errorf("marshal pipeline for %q: %w", m.ID, err)
	}
	return string(out), nil
}

// Pipeline builds the aggregation stages for a metric.
func Pipeline(m *core.SemanticMetric) (bson.A, error) {
	if m == nil {
		return nil, core.ErrInvalidDefinition
	}
	switch {
	case m.Query != "":
		return nil, fmt.Errorf("raw query: %w", ErrUnsupported)
	case len(m.Joins) > 0:
		return nil, fmt.Errorf("joins: %w", ErrUnsupported)
	case len(m.Composition) > 0:
		return nil, fmt.Errorf("composition: %w", ErrUnsupported)
	case len(m.Derivations) > 0:
		return nil, fmt.Errorf("derivations: %w", ErrUnsupported)
	case m.TableName == "":
		return nil, fmt.Errorf("metric %q: %w", m.ID, sqlgen.ErrNoSource)
	}

	var pipeline bson.A

	if len(m.Filters) > 0 {
		match, err := matchStage(m.Filters)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	stages, err := shapeStages(m)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, stages...)

	if m.Ordered && len(m.Order) > 0 {
		sort := bson.D{}
		for _, o := range m.Order {
			dir := 1
			if strings.EqualFold(o.Direction, "desc") {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Name, Value: dir})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}

	if m.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: m.Limit}})
	}

	if pipeline == nil {
		pipeline = bson.A{}
	}
	return pipeline, nil
}

func field(query, name string) (string, error) {
	f := query
	if f == "" {
		f = name
	}
	if !fieldPath.MatchString(f) {
		return "", fmt.Errorf("expression %q is not a field path: %w", f, ErrUnsupported)
	}
	return f, nil
}

// shapeStages returns $group and $project stages for dimensions and measures.
func shapeStages(m *core.SemanticMetric) (bson.A, error) {
	if len(m.Dimensions) == 0 && len(m.Measures) == 0 {
		return nil, nil
	}

	aggregate := len(m.Measures) > 0 && (m.Grouped || len(m.Dimensions) == 0)
	project := bson.D{{Key: "_id", Value: 0}}

	if !aggregate {
		for _, d := range m.Dimensions {
			f, err := field(d.Query, d.Name)
			if err != nil {
				return nil, err
			}
			project = append(project, bson.E{Key: d.Name, Value: "$" + f})
		}
		for _, ms := range m.Measures {
			f, err := field(ms.Query, ms.Name)
			if err != nil {
				return nil, err
			}
			project = append(project, bson.E{Key: ms.Name, Value: "$" + f})
		}
		return bson.A{bson.D{{Key: "$project", Value: project}}}, nil
	}

	var id any
	if len(m.Dimensions) > 0 {
		key := bson.D{}
		for _, d := range m.Dimensions {
			f, err := field(d.Query, d.Name)
			if err != nil {
				return nil, err
			}
			key = append(key, bson.E{Key: d.Name, Value: "$" + f})
			project = append(project, bson.E{Key: d.Name, Value: "$_id." + d.Name})
		}
		id = key
	}

	group := bson.D{{Key: "_id", Value: id}}
	for _, ms := range m.Measures {
		acc, err := accumulator(ms)
		if err != nil {
			return nil, err
		}
		group = append(group, bson.E{Key: ms.Name, Value: acc})
		project = append(project, bson.E{Key: ms.Name, Value: 1})
	}

	return bson.A{
		bson.D{{Key: "$group", Value: group}},
		bson.D{{Key: "$project", Value: project}},
	}, nil
}

func accumulator(ms core.Measure) (bson.D, error) {
	if ms.Type == core.MeasureCount {
		return bson.D{{Key: "$sum", Value: 1}}, nil
	}
	f, err := field(ms.Query, ms.Name)
	if err != nil {
		return nil, err
	}
	switch ms.Type {
	case core.MeasureSum:
		return bson.D{{Key: "$sum", Value: "$" + f}}, nil
	case core.MeasureAvg:
		return bson.D{{Key: "$avg", Value: "$" + f}}, nil
	default:
		return bson.D{{Key: "$first", Value: "$" + f}}, nil
	}
}

var comparison = map[string]string{
	sqlgen.OpNotEquals: "$ne",
	sqlgen.OpGT:        "$gt",
	sqlgen.OpGTE:       "$gte",
	sqlgen.OpLT:        "$lt",
	sqlgen.OpLTE:       "$lte",
}

func matchStage(filters []core.Filter) (bson.D, error) {
	conds := make(bson.A, 0, len(filters))
	for _, f := range filters {
		c, err := condition(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if len(conds) == 1 {
		return conds[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: conds}}, nil
}

func condition(f core.Filter) (bson.D, error) {
	if f.Query != "" {
		return nil, fmt.Errorf("filter %q raw query: %w", f.Name, ErrUnsupported)
	}
	if f.Column == "" {
		return nil, fmt.Errorf("filter %q: column is required", f.Name)
	}
	col := f.Column
	op := strings.ToLower(f.Operator)

	single := func() (any, error) {
		if len(f.Values) != 1 {
			return nil, fmt.Errorf("filter %q: %s takes exactly one value, got %d", f.Name, op, len(f.Values))
		}
		return f.Values[0], nil
	}

	switch op {
	case sqlgen.OpEquals:
		v, err := single()
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: col, Value: v}}, nil
	case sqlgen.OpIn, sqlgen.OpNotIn:
		if len(f.Values) == 0 {
			return nil, fmt.Errorf("filter %q: %s needs at least one value", f.Name, op)
		}
		key := "$in"
		if op == sqlgen.OpNotIn {
			key = "$nin"
		}
		return bson.D{{Key: col, Value: bson.D{{Key: key, Value: bson.A(f.Values)}}}}, nil
	case sqlgen.OpContains, sqlgen.OpStartsWith:
		v, err := single()
		if err != nil {
			return nil, err
		}
		pattern := regexp.QuoteMeta(fmt.Sprint(v))
		if op == sqlgen.OpStartsWith {
			pattern = "^" + pattern
		}
		return bson.D{{Key: col, Value: bson.D{{Key: "$regex", Value: pattern}}}}, nil
	case sqlgen.OpIsNull:
		return bson.D{{Key: col, Value: nil}}, nil
	case sqlgen.OpIsNotNull:
		return bson.D{{Key: col, Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
	}

	if key, ok := comparison[op]; ok {
		v, err := single()
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: col, Value: bson.D{{Key: key, Value: v}}}}, nil
	}
	return nil, fmt.Errorf("filter %q: %w %q", f.Name, sqlgen.ErrUnsupportedOperator, f.Operator)
}
