// Package sqlite registers the SQLite generator.
package sqlite

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(SQLite)
}

// SQLite is the SQLite dialect.
var SQLite = sqlgen.NewDialect("sqlite").
	Aliases("sqlite3").
	Identifiers(`"`, `"`, `""`).
	Build()
