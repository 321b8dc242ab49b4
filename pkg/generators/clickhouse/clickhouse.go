// Package clickhouse registers the ClickHouse generator.
package clickhouse

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(ClickHouse)
}

// ClickHouse quotes identifiers with backticks.
var ClickHouse = sqlgen.NewDialect("clickhouse").
	Identifiers("`", "`", "``").
	Build()
