// Package ingest builds the statements that stage a text-typed table on each
// supported engine.
package ingest

import (
	"fmt"
	"strings"
)

// Ingester defines the interface for generating staging statements
type Ingester interface {
	// QuoteIdentifier quotes a single identifier for the engine
	QuoteIdentifier(name string) string

	// TableName returns the namespace-qualified, quoted table name
	TableName(table string) string

	// DropTableSQL drops the table if it exists
	DropTableSQL(table string) string

	// CreateTableSQL creates the table with one text column per name
	CreateTableSQL(table string, columns []string) (string, error)

	// InsertSQL inserts rows rows of len(columns) values using ? placeholders
	InsertSQL(table string, columns []string, rows int) (string, error)

	// TableExistsSQL counts tables named by its single ? argument
	TableExistsSQL() string

	// SelectAllSQL selects every column and row of the table
	SelectAllSQL(table string) string
}

// NewIngester creates a new ingester based on the database type. Namespace
// parts (schema, catalog or dataset) prefix every table name.
func NewIngester(dbType string, namespace ...string) (Ingester, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return NewSQLiteIngester(), nil
	case "duckdb":
		return NewDuckDBIngester(namespace...), nil
	case "snowflake":
		return NewSnowflakeIngester(namespace...), nil
	case "bigquery":
		return NewBigQueryIngester(namespace...), nil
	case "databricks":
		return NewDatabricksIngester(namespace...), nil
	case "postgres":
		return NewPostgresIngester(namespace...), nil
	case "mssql":
		return NewMSSQLIngester(namespace...), nil
	default:
		return nil, fmt.Errorf("unsupported database type for ingestion: %s", dbType)
	}
}

// SQLIngester is a statement builder parameterised by the engine's
// identifier quoting and text column type.
type SQLIngester struct {
	open, close string
	textType    string
	namespace   []string
	existsSQL   string
}

// NewSQLiteIngester creates an ingester for SQLite.
func NewSQLiteIngester() *SQLIngester {
	return &SQLIngester{
		open: `"`, close: `"`,
		textType:  "TEXT",
		existsSQL: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
	}
}

// NewDuckDBIngester creates an ingester for DuckDB.
func NewDuckDBIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: `"`, close: `"`,
		textType:  "TEXT",
		namespace: namespace,
		existsSQL: schemaFilter("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", "table_schema", namespace, "current_schema()"),
	}
}

// NewPostgresIngester creates an ingester for PostgreSQL.
func NewPostgresIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: `"`, close: `"`,
		textType:  "TEXT",
		namespace: namespace,
		existsSQL: schemaFilter("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", "table_schema", namespace, "current_schema()"),
	}
}

// NewMSSQLIngester creates an ingester for Microsoft SQL Server.
func NewMSSQLIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: "[", close: "]",
		textType:  "NVARCHAR(MAX)",
		namespace: namespace,
		existsSQL: schemaFilter("SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ?", "TABLE_SCHEMA", namespace, "SCHEMA_NAME()"),
	}
}

// NewSnowflakeIngester creates an ingester for Snowflake.
func NewSnowflakeIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: `"`, close: `"`,
		textType:  "VARCHAR",
		namespace: namespace,
		existsSQL: schemaFilter("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", "table_schema", namespace, "CURRENT_SCHEMA()"),
	}
}

// NewDatabricksIngester creates an ingester for Databricks SQL.
func NewDatabricksIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: "`", close: "`",
		textType:  "STRING",
		namespace: namespace,
		existsSQL: schemaFilter("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", "table_schema", namespace, "current_schema()"),
	}
}

// NewBigQueryIngester creates an ingester for BigQuery. The namespace is the
// project and dataset; table metadata is read through the client API.
func NewBigQueryIngester(namespace ...string) *SQLIngester {
	return &SQLIngester{
		open: "`", close: "`",
		textType:  "STRING",
		namespace: namespace,
	}
}

// schemaFilter restricts an information_schema lookup to the last namespace
// part, or to the session schema when there is none.
func schemaFilter(query, column string, namespace []string, current string) string {
	schema := ""
	for _, ns := range namespace {
		if ns != "" {
			schema = ns
		}
	}
	if schema == "" {
		return fmt.Sprintf("%s AND %s = %s", query, column, current)
	}
	return fmt.Sprintf("%s AND %s = '%s'", query, column, strings.ReplaceAll(schema, "'", "''"))
}

// QuoteIdentifier quotes name, doubling any embedded closing quote.
func (i *SQLIngester) QuoteIdentifier(name string) string {
	return i.open + strings.ReplaceAll(name, i.close, i.close+i.close) + i.close
}

// TableName returns the qualified and quoted table name.
func (i *SQLIngester) TableName(table string) string {
	parts := make([]string, 0, len(i.namespace)+1)
	for _, ns := range i.namespace {
		if ns != "" {
			parts = append(parts, i.QuoteIdentifier(ns))
		}
	}
	parts = append(parts, i.QuoteIdentifier(table))
	return strings.Join(parts, ".")
}

// DropTableSQL generates the statement dropping the table when present
func (i *SQLIngester) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", i.TableName(table))
}

// CreateTableSQL generates the statement creating a text-typed table
func (i *SQLIngester) CreateTableSQL(table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}

	defs := make([]string, len(columns))
	for n, col := range columns {
		defs[n] = fmt.Sprintf("%s %s", i.QuoteIdentifier(col), i.textType)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", i.TableName(table), strings.Join(defs, ", ")), nil
}

// InsertSQL generates a multi-row insert with ? placeholders
func (i *SQLIngester) InsertSQL(table string, columns []string, rows int) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	if rows < 1 {
		return "", fmt.Errorf("insert into %s needs at least one row", table)
	}

	names := make([]string, len(columns))
	for n, col := range columns {
		names[n] = i.QuoteIdentifier(col)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	values := strings.TrimSuffix(strings.Repeat(tuple+", ", rows), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", i.TableName(table), strings.Join(names, ", "), values), nil
}

// TableExistsSQL returns the table lookup query
func (i *SQLIngester) TableExistsSQL() string {
	return i.existsSQL
}

// SelectAllSQL generates the full-table select used by the exporter
func (i *SQLIngester) SelectAllSQL(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", i.TableName(table))
}
