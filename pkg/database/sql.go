package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/ingest"
	"github.com/jmoiron/sqlx"
)

func init() {
	// drivers sqlx does not know about natively
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlx.BindDriver("duckdb", sqlx.QUESTION)
	sqlx.BindDriver("snowflake", sqlx.QUESTION)
	sqlx.BindDriver("databricks", sqlx.QUESTION)
}

// txMode describes how much of a table replacement runs in a transaction.
type txMode int

const (
	// txAll runs drop, create and insert in one transaction
	txAll txMode = iota
	// txInsert runs DDL outside the transaction, for engines where DDL
	// commits implicitly
	txInsert
	// txNone runs every statement in autocommit mode
	txNone
)

// defaultMaxParams bounds the placeholders of one insert statement.
const defaultMaxParams = 999

// sqlEngine implements Database on top of database/sql drivers through sqlx.
type sqlEngine struct {
	engine    string
	driver    string
	dsn       func() (string, error)
	ing       ingest.Ingester
	tx        txMode
	maxParams int
	maxConns  int
	db        *sqlx.DB
}

// Engine returns the engine name
func (e *sqlEngine) Engine() string {
	return e.engine
}

// Connect establishes a connection to the database
func (e *sqlEngine) Connect(ctx context.Context) error {
	dsn, err := e.dsn()
	if err != nil {
		return fmt.Errorf("failed to create DSN: %w", err)
	}

	db, err := sqlx.Open(e.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if e.maxConns > 0 {
		db.SetMaxOpenConns(e.maxConns)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.db = db
	return nil
}

// Close closes the database connection
func (e *sqlEngine) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// ReplaceTable drops and recreates table, then inserts rows in batches.
func (e *sqlEngine) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]string) (int64, error) {
	if e.db == nil {
		return 0, ErrNotConnected
	}

	create, err := e.ing.CreateTableSQL(table, columns)
	if err != nil {
		return 0, err
	}
	ddl := []string{e.ing.DropTableSQL(table), create}

	if e.tx == txNone {
		if err := execAll(ctx, e.db, ddl); err != nil {
			return 0, err
		}
		return e.insert(ctx, e.db, table, columns, rows)
	}

	if e.tx == txInsert {
		if err := execAll(ctx, e.db, ddl); err != nil {
			return 0, err
		}
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if e.tx == txAll {
		if err := execAll(ctx, tx, ddl); err != nil {
			return 0, err
		}
	}

	n, err := e.insert(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

func execAll(ctx context.Context, ex sqlx.ExecerContext, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// insert writes rows in multi-row statements that stay under maxParams
// placeholders.
func (e *sqlEngine) insert(ctx context.Context, ext sqlx.ExtContext, table string, columns []string, rows [][]string) (int64, error) {
	maxParams := e.maxParams
	if maxParams <= 0 {
		maxParams = defaultMaxParams
	}
	batch := maxParams / len(columns)
	if batch < 1 {
		batch = 1
	}

	var inserted int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		chunk := rows[start:end]

		args := make([]interface{}, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				return inserted, fmt.Errorf("row %d has %d values, table %s has %d columns", start+i+1, len(row), table, len(columns))
			}
			for _, v := range row {
				args = append(args, v)
			}
		}

		query, err := e.ing.InsertSQL(table, columns, len(chunk))
		if err != nil {
			return inserted, err
		}
		if _, err := ext.ExecContext(ctx, ext.Rebind(query), args...); err != nil {
			return inserted, fmt.Errorf("failed to insert rows %d-%d: %w", start+1, end, err)
		}
		inserted += int64(len(chunk))
	}
	return inserted, nil
}

// TableExists reports whether the table exists
func (e *sqlEngine) TableExists(ctx context.Context, table string) (bool, error) {
	if e.db == nil {
		return false, ErrNotConnected
	}

	var count int
	if err := e.db.GetContext(ctx, &count, e.db.Rebind(e.ing.TableExistsSQL()), table); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// GetColumns returns the columns of a table
func (e *sqlEngine) GetColumns(ctx context.Context, table string) ([]Column, error) {
	if e.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := e.db.QueryxContext(ctx, e.ing.SelectAllSQL(table)+" WHERE 1 = 0")
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	return columnsOf(rows.Rows)
}

// GetTotalRows returns the total number of rows in a table
func (e *sqlEngine) GetTotalRows(ctx context.Context, table string) (int64, error) {
	if e.db == nil {
		return 0, ErrNotConnected
	}

	var count int64
	if err := e.db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", e.ing.TableName(table))); err != nil {
		return 0, fmt.Errorf("failed to get total rows: %w", err)
	}
	return count, nil
}

// ReadTable returns the columns and every row of a table
func (e *sqlEngine) ReadTable(ctx context.Context, table string) ([]Column, []Record, error) {
	if e.db == nil {
		return nil, nil, ErrNotConnected
	}

	rows, err := e.db.QueryxContext(ctx, e.ing.SelectAllSQL(table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := columnsOf(rows.Rows)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	for rows.Next() {
		record := make(Record, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range record {
			dest[i] = &record[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, records, nil
}

func columnsOf(rows *sql.Rows) ([]Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]Column, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		columns[i] = Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable || !ok,
		}
	}
	return columns, nil
}
