// Package snowflake registers the Snowflake generator.
package snowflake

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(Snowflake)
}

// Snowflake is the Snowflake dialect.
var Snowflake = sqlgen.NewDialect("snowflake").
	Identifiers(`"`, `"`, `""`).
	Build()
