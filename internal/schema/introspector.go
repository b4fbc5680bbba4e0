package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlask/sqlask/internal/config"
	"github.com/sqlask/sqlask/internal/db"
)

type catalogReader interface {
	listTables(ctx context.Context, conn *sql.DB) ([]string, error)
	listColumns(ctx context.Context, conn *sql.DB, table string) ([]Column, error)
}

// Introspector reads table and column metadata. Each Describe call opens its
// own connection and closes it before returning.
type Introspector struct {
	opener db.Opener
	reader catalogReader
	logger *slog.Logger
}

func NewIntrospector(opener db.Opener, driver string, logger *slog.Logger) (*Introspector, error) {
	if opener == nil {
		return nil, fmt.Errorf("database opener is required")
	}
	var reader catalogReader
	switch driver {
	case config.DriverSQLite, "":
		reader = sqliteCatalog{}
	case config.DriverDuckDB:
		reader = duckdbCatalog{}
	case config.DriverPostgres:
		reader = postgresCatalog{schema: "public"}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{opener: opener, reader: reader, logger: logger}, nil
}

func (i *Introspector) Describe(ctx context.Context) (Descriptor, error) {
	conn, err := i.opener.Open(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tables, err := i.reader.listTables(ctx, conn)
	if err != nil {
		return Descriptor{}, fmt.Errorf("list tables: %w", err)
	}

	descriptor := Descriptor{Tables: make([]Table, 0, len(tables))}
	for _, name := range tables {
		columns, err := i.reader.listColumns(ctx, conn, name)
		if err != nil {
			return Descriptor{}, fmt.Errorf("list columns for table %q: %w", name, err)
		}
		descriptor.Tables = append(descriptor.Tables, Table{Name: name, Columns: columns})
	}
	i.logger.DebugContext(ctx, "schema described", slog.Int("tables", len(descriptor.Tables)))
	return descriptor, nil
}

// RenderSchema satisfies prompt.SchemaSource.
func (i *Introspector) RenderSchema(ctx context.Context) (string, error) {
	descriptor, err := i.Describe(ctx)
	if err != nil {
		return "", err
	}
	return descriptor.Render(), nil
}

type sqliteCatalog struct{}

func (sqliteCatalog) listTables(ctx context.Context, conn *sql.DB) ([]string, error) {
	return queryNames(ctx, conn, `SELECT name FROM sqlite_master WHERE type = 'table'`)
}

func (sqliteCatalog) listColumns(ctx context.Context, conn *sql.DB, table string) ([]Column, error) {
	return pragmaTableInfo(ctx, conn, table)
}

type duckdbCatalog struct{}

func (duckdbCatalog) listTables(ctx context.Context, conn *sql.DB) ([]string, error) {
	return queryNames(ctx, conn, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
ORDER BY table_name`)
}

func (duckdbCatalog) listColumns(ctx context.Context, conn *sql.DB, table string) ([]Column, error) {
	return pragmaTableInfo(ctx, conn, table)
}

type postgresCatalog struct {
	schema string
}

func (c postgresCatalog) listTables(ctx context.Context, conn *sql.DB) ([]string, error) {
	return queryNames(ctx, conn, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`, c.schema)
}

func (c postgresCatalog) listColumns(ctx context.Context, conn *sql.DB, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT c.column_name, c.data_type, c.is_nullable = 'NO', c.column_default,
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON tc.constraint_name = k.constraint_name
			AND tc.table_schema = k.table_schema
			AND tc.table_name = k.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	)
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`, c.schema, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			column     Column
			defaultVal sql.NullString
		)
		if err := rows.Scan(&column.Name, &column.Type, &column.NotNull, &defaultVal, &column.PrimaryKey); err != nil {
			return nil, err
		}
		if defaultVal.Valid {
			column.Default = &defaultVal.String
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

// pragmaTableInfo reads cid, name, type, notnull, dflt_value, pk. SQLite
// reports the flags as integers and DuckDB as booleans.
func pragmaTableInfo(ctx context.Context, conn *sql.DB, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteLiteral(table)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			cid        any
			column     Column
			colType    sql.NullString
			notNull    any
			defaultVal sql.NullString
			primaryKey any
		)
		if err := rows.Scan(&cid, &column.Name, &colType, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, err
		}
		column.Type = colType.String
		column.NotNull = truthy(notNull)
		column.PrimaryKey = truthy(primaryKey)
		if defaultVal.Valid {
			column.Default = &defaultVal.String
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func queryNames(ctx context.Context, conn *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case int64:
		return typed != 0
	case int32:
		return typed != 0
	case int:
		return typed != 0
	case []byte:
		return len(typed) > 0 && string(typed) != "0"
	case string:
		return typed != "" && typed != "0"
	default:
		return false
	}
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
