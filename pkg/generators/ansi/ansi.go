// Package ansi registers the ANSI SQL generator.
// It is the fallback for engines without a dedicated registration.
package ansi

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(ANSI)
}

// ANSI renders standard SQL with FETCH FIRST for limits.
var ANSI = sqlgen.NewDialect("ansi").
	Aliases("sql", "standard").
	LimitStyle(sqlgen.LimitFetchFirst).
	Build()
