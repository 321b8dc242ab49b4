// Package mysql registers the MySQL generator.
package mysql

import "github.com/leapstack-labs/leapmetric/pkg/sqlgen"

func init() {
	sqlgen.RegisterDialect(MySQL)
}

// MySQL quotes identifiers with backticks.
var MySQL = sqlgen.NewDialect("mysql").
	Aliases("mariadb").
	Identifiers("`", "`", "``").
	Build()
