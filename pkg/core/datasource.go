package core

import "strings"

// DataSourceType selects a query generator.
type DataSourceType string

// Known data source types.
const (
	DataSourceANSI       DataSourceType = "ansi"
	DataSourcePostgres   DataSourceType = "postgres"
	DataSourceDuckDB     DataSourceType = "duckdb"
	DataSourceSQLite     DataSourceType = "sqlite"
	DataSourceMySQL      DataSourceType = "mysql"
	DataSourceClickHouse DataSourceType = "clickhouse"
	DataSourceSnowflake  DataSourceType = "snowflake"
	DataSourceMongoDB    DataSourceType = "mongodb"
)

// Normalize returns the lower-cased, trimmed form used as a registry key.
func (t DataSourceType) Normalize() DataSourceType {
	return DataSourceType(strings.ToLower(strings.TrimSpace(string(t))))
}

func (t DataSourceType) String() string {
	return string(t)
}
