// Package duckdb registers the DuckDB generator.
package duckdb

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(DuckDB)
}

// DuckDB is the DuckDB dialect.
var DuckDB = sqlgen.NewDialect("duckdb").
	Identifiers(`"`, `"`, `""`).
	Build()
