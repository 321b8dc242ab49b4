// Package postgres registers the PostgreSQL generator.
package postgres

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(Postgres)
}

// Postgres is the PostgreSQL dialect.
var Postgres = sqlgen.NewDialect("postgres").
	Aliases("postgresql", "pg").
	Identifiers(`"`, `"`, `""`).
	Build()
