package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

const infoSchemaColumns = `
	SELECT table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
	ORDER BY table_name, ordinal_position`

const infoSchemaForeignKeys = `
	SELECT kcu.table_name, tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON tc.constraint_name = ccu.constraint_name
		AND tc.table_schema = ccu.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = COALESCE(NULLIF($1, ''), current_schema())
	ORDER BY kcu.table_name, tc.constraint_name, kcu.ordinal_position`

const mysqlColumns = `
	SELECT table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
	ORDER BY table_name, ordinal_position`

const mysqlForeignKeys = `
	SELECT table_name, constraint_name, column_name, referenced_table_name, referenced_column_name
	FROM information_schema.key_column_usage
	WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		AND referenced_table_name IS NOT NULL
	ORDER BY table_name, constraint_name, ordinal_position`

const sqliteTables = `
	SELECT name FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const sqliteColumns = `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`

const sqliteForeignKeys = `
	SELECT id, "table", "from", COALESCE("to", '')
	FROM pragma_foreign_key_list(?)
	ORDER BY id, seq`

const clickhouseColumns = `
	SELECT table, name, type
	FROM system.columns
	WHERE database = if(? = '', currentDatabase(), ?)
	ORDER BY table, position`

func loadInformationSchema(ctx context.Context, db *sql.DB, opts Options) (*core.DatabaseSchema, error) {
	set := newTableSet()
	if err := scanColumns(ctx, db, set, infoSchemaColumns, opts.Schema); err != nil {
		return nil, err
	}
	if !opts.SkipForeignKeys {
		if err := scanForeignKeys(ctx, db, set, infoSchemaForeignKeys, opts.Schema); err != nil {
			return nil, err
		}
	}
	return set.schema(), nil
}

func loadMySQL(ctx context.Context, db *sql.DB, opts Options) (*core.DatabaseSchema, error) {
	set := newTableSet()
	if err := scanColumns(ctx, db, set, mysqlColumns, opts.Schema); err != nil {
		return nil, err
	}
	if !opts.SkipForeignKeys {
		if err := scanForeignKeys(ctx, db, set, mysqlForeignKeys, opts.Schema); err != nil {
			return nil, err
		}
	}
	return set.schema(), nil
}

// loadClickHouse reads columns only; ClickHouse has no foreign keys.
func loadClickHouse(ctx context.Context, db *sql.DB, opts Options) (*core.DatabaseSchema, error) {
	set := newTableSet()
	if err := scanColumns(ctx, db, set, clickhouseColumns, opts.Schema, opts.Schema); err != nil {
		return nil, err
	}
	return set.schema(), nil
}

func loadSQLite(ctx context.Context, db *sql.DB, opts Options) (*core.DatabaseSchema, error) {
	names, err := queryStrings(ctx, db, sqliteTables)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	set := newTableSet()
	for _, name := range names {
		if err := scanSQLiteTable(ctx, db, set, name, opts.SkipForeignKeys); err != nil {
			return nil, err
		}
	}
	return set.schema(), nil
}

func scanSQLiteTable(ctx context.Context, db *sql.DB, set *tableSet, table string, skipFKs bool) error {
	rows, err := db.QueryContext(ctx, sqliteColumns, table)
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		set.addColumn(table, name, typ)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if skipFKs {
		return nil
	}

	rows, err = db.QueryContext(ctx, sqliteForeignKeys, table)
	if err != nil {
		return fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id            int
			ref, from, to string
		)
		if err := rows.Scan(&id, &ref, &from, &to); err != nil {
			return fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		if to == "" {
			// An omitted target column means the referenced primary key.
			to = "id"
		}
		set.addRelation(table, fmt.Sprintf("%s_fk_%d", table, id), core.ForeignKeyRelation{
			Column:           from,
			ReferencedTable:  ref,
			ReferencedColumn: to,
		})
	}
	return rows.Err()
}

func scanColumns(ctx context.Context, db *sql.DB, set *tableSet, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, column, typ string
		if err := rows.Scan(&table, &column, &typ); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		set.addColumn(table, column, typ)
	}
	return rows.Err()
}

func scanForeignKeys(ctx context.Context, db *sql.DB, set *tableSet, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to read foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, constraint, column, refTable, refColumn string
		if err := rows.Scan(&table, &constraint, &column, &refTable, &refColumn); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		set.addRelation(table, constraint, core.ForeignKeyRelation{
			Column:           column,
			ReferencedTable:  refTable,
			ReferencedColumn: refColumn,
		})
	}
	return rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
