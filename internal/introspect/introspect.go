// Package introspect reads table metadata from a live database into a
// core.DatabaseSchema for join inference.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	_ "github.com/go-sql-driver/mysql"         // MySQL driver
	"github.com/go-viper/mapstructure/v2"
	_ "github.com/jackc/pgx/v5/stdlib"  // PostgreSQL driver
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	_ "modernc.org/sqlite"              // SQLite driver (pure Go)

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Flavor selects the catalog queries used to read metadata.
type Flavor string

// Supported flavors.
const (
	FlavorInformationSchema Flavor = "information_schema"
	FlavorMySQL             Flavor = "mysql"
	FlavorSQLite            Flavor = "sqlite"
	FlavorClickHouse        Flavor = "clickhouse"
)

type driverInfo struct {
	driver string
	flavor Flavor
}

var drivers = map[core.DataSourceType]driverInfo{
	core.DataSourcePostgres:   {"pgx", FlavorInformationSchema},
	core.DataSourceDuckDB:     {"duckdb", FlavorInformationSchema},
	core.DataSourceMySQL:      {"mysql", FlavorMySQL},
	core.DataSourceSQLite:     {"sqlite", FlavorSQLite},
	core.DataSourceClickHouse: {"clickhouse", FlavorClickHouse},
}

// UnsupportedTypeError is returned for data source types without a driver.
type UnsupportedTypeError struct {
	Type core.DataSourceType
}

func (e *UnsupportedTypeError) Error() string {
	supported := make([]string, 0, len(drivers))
	for t := range drivers {
		supported = append(supported, string(t))
	}
	sort.Strings(supported)
	return fmt.Sprintf("cannot introspect %q, supported types: %s", e.Type, strings.Join(supported, ", "))
}

// Options narrows what Load reads.
type Options struct {
	// Schema is the database schema to read. Empty uses the connection default.
	Schema string `mapstructure:"schema"`
	// Tables limits the result to these tables. Empty keeps all.
	Tables []string `mapstructure:"tables"`
	// SkipForeignKeys disables the foreign key queries.
	SkipForeignKeys bool `mapstructure:"skip_foreign_keys"`
}

// DecodeOptions decodes introspection options from free-form target params.
// Unknown keys are errors.
func DecodeOptions(params map[string]any) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(params); err != nil {
		return opts, fmt.Errorf("invalid target params: %w", err)
	}
	return opts, nil
}

// FlavorFor returns the flavor used for a data source type.
func FlavorFor(t core.DataSourceType) (Flavor, error) {
	info, ok := drivers[t.Normalize()]
	if !ok {
		return "", &UnsupportedTypeError{Type: t}
	}
	return info.flavor, nil
}

// Open connects to a database of the given type.
func Open(ctx context.Context, t core.DataSourceType, dsn string) (*sql.DB, Flavor, error) {
	info, ok := drivers[t.Normalize()]
	if !ok {
		return nil, "", &UnsupportedTypeError{Type: t}
	}
	db, err := sql.Open(info.driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s connection: %w", t, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to %s: %w", t, err)
	}
	return db, info.flavor, nil
}

// Load reads table metadata using the queries of flavor.
func Load(ctx context.Context, db *sql.DB, flavor Flavor, opts Options) (*core.DatabaseSchema, error) {
	var (
		schema *core.DatabaseSchema
		err    error
	)
	switch flavor {
	case FlavorInformationSchema:
		schema, err = loadInformationSchema(ctx, db, opts)
	case FlavorMySQL:
		schema, err = loadMySQL(ctx, db, opts)
	case FlavorSQLite:
		schema, err = loadSQLite(ctx, db, opts)
	case FlavorClickHouse:
		schema, err = loadClickHouse(ctx, db, opts)
	default:
		return nil, fmt.Errorf("unknown introspection flavor %q", flavor)
	}
	if err != nil {
		return nil, err
	}
	schema.Tables = filterTables(schema.Tables, opts.Tables)
	return schema, nil
}

func filterTables(tables []core.TableSchema, keep []string) []core.TableSchema {
	if len(keep) == 0 {
		return tables
	}
	out := tables[:0]
	for _, t := range tables {
		if slices.Contains(keep, t.Name) {
			out = append(out, t)
		}
	}
	return out
}

// tableSet accumulates columns and keys in query order.
type tableSet struct {
	order  []string
	tables map[string]*core.TableSchema
	fks    map[string]map[string]int
}

func newTableSet() *tableSet {
	return &tableSet{
		tables: make(map[string]*core.TableSchema),
		fks:    make(map[string]map[string]int),
	}
}

func (s *tableSet) table(name string) *core.TableSchema {
	t, ok := s.tables[name]
	if !ok {
		t = &core.TableSchema{Name: name}
		s.tables[name] = t
		s.order = append(s.order, name)
	}
	return t
}

func (s *tableSet) addColumn(table, column, typ string) {
	t := s.table(table)
	t.Columns = append(t.Columns, core.ColumnSchema{Name: column, Type: typ})
}

// addRelation appends a relation to the named constraint, creating it on first use.
// Relations of tables with no columns are dropped by schema.
func (s *tableSet) addRelation(table, constraint string, rel core.ForeignKeyRelation) {
	if _, ok := s.tables[table]; !ok {
		return
	}
	t := s.tables[table]
	byName, ok := s.fks[table]
	if !ok {
		byName = make(map[string]int)
		s.fks[table] = byName
	}
	idx, ok := byName[constraint]
	if !ok {
		t.ForeignKeys = append(t.ForeignKeys, core.ForeignKey{Name: constraint})
		idx = len(t.ForeignKeys) - 1
		byName[constraint] = idx
	}
	t.ForeignKeys[idx].Relations = append(t.ForeignKeys[idx].Relations, rel)
}

func (s *tableSet) schema() *core.DatabaseSchema {
	out := &core.DatabaseSchema{Tables: make([]core.TableSchema, 0, len(s.order))}
	for _, name := range s.order {
		out.Tables = append(out.Tables, *s.tables[name])
	}
	return out
}

// Introspect connects with dsn, reads the schema and closes the connection.
// params are decoded with DecodeOptions; a non-empty schemaName overrides
// params["schema"].
func Introspect(ctx context.Context, t core.DataSourceType, dsn, schemaName string, params map[string]any) (*core.DatabaseSchema, error) {
	opts, err := DecodeOptions(params)
	if err != nil {
		return nil, err
	}
	if schemaName != "" {
		opts.Schema = schemaName
	}

	db, flavor, err := Open(ctx, t, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return Load(ctx, db, flavor, opts)
}
