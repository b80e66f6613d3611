package database

import (
	"context"
	"database/sql"
	"errors"
)

// Engine names accepted by NewDatabase.
const (
	EngineSQLite     = "sqlite"
	EngineSQLite3    = "sqlite3"
	EngineDuckDB     = "duckdb"
	EnginePostgres   = "postgres"
	EngineMSSQL      = "mssql"
	EngineSnowflake  = "snowflake"
	EngineDatabricks = "databricks"
	EngineBigQuery   = "bigquery"
)

var (
	// ErrUnsupportedEngine is returned for an unknown or unavailable engine.
	ErrUnsupportedEngine = errors.New("unsupported database engine")
	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("database not connected")
)

// Database defines the interface for staging table operations
type Database interface {
	// Connect establishes a connection to the database
	Connect(ctx context.Context) error

	// Close closes the database connection
	Close() error

	// Engine returns the engine name
	Engine() string

	// ReplaceTable drops table, recreates it with one text column per name
	// and inserts rows, atomically where the engine allows it
	ReplaceTable(ctx context.Context, table string, columns []string, rows [][]string) (int64, error)

	// TableExists reports whether the table exists
	TableExists(ctx context.Context, table string) (bool, error)

	// GetColumns returns the columns of a table
	GetColumns(ctx context.Context, table string) ([]Column, error)

	// GetTotalRows returns the total number of rows in a table
	GetTotalRows(ctx context.Context, table string) (int64, error)

	// ReadTable returns the columns and every row of a table
	ReadTable(ctx context.Context, table string) ([]Column, []Record, error)
}

// Column represents a database column
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Record is one table row; invalid entries are NULL.
type Record []sql.NullString

// Strings returns the record values with NULL mapped to the empty string.
func (r Record) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		if v.Valid {
			out[i] = v.String
		}
	}
	return out
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
