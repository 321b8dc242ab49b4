// Package all registers every built-in generator.
package all

import (
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/ansi"       // Register ANSI generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/clickhouse" // Register ClickHouse generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/duckdb"     // Register DuckDB generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/mongodb"    // Register MongoDB pipeline generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/mysql"      // Register MySQL generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/postgres"   // Register PostgreSQL generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/snowflake"  // Register Snowflake generator
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/sqlite"     // Register SQLite generator
)
