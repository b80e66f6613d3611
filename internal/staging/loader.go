// Package staging loads parsed CSV tables into the staging database.
package staging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gerhard-ee/arlstage/internal/logging"
	"github.com/gerhard-ee/arlstage/pkg/database"
)

var (
	// ErrFieldCount is wrapped by FieldCountError.
	ErrFieldCount = errors.New("field count does not match header")
	// ErrEmptyColumn is returned when a header sanitizes to an empty name.
	ErrEmptyColumn = errors.New("empty column name")
	// ErrDuplicateColumn is returned when two headers sanitize to the same name.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrRowCount is returned when the staged table does not hold the rows
	// that were inserted.
	ErrRowCount = errors.New("staged row count mismatch")
)

// FieldCountError reports a data row whose field count differs from the
// header. Row is 1-based and counts data rows only.
type FieldCountError struct {
	Row  int
	Got  int
	Want int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("row %d has %d fields, header has %d", e.Row, e.Got, e.Want)
}

func (e *FieldCountError) Unwrap() error {
	return ErrFieldCount
}

// ColumnName turns a trimmed CSV header into a staging column name.
func ColumnName(header string) string {
	return strings.ReplaceAll(header, " ", "_")
}

// Columns sanitizes headers and rejects empty or duplicate names.
func Columns(headers []string) ([]string, error) {
	columns := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := ColumnName(h)
		if name == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyColumn, i+1)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w %q at positions %d and %d", ErrDuplicateColumn, name, prev+1, i+1)
		}
		seen[name] = i
		columns[i] = name
	}
	return columns, nil
}

// Loader replaces the staging table with the contents of a parsed file.
type Loader struct {
	db database.Database
}

// NewLoader creates a Loader writing to db.
func NewLoader(db database.Database) *Loader {
	return &Loader{db: db}
}

// Load drops and recreates table with one text column per header and inserts
// rows in one batch. A row with the wrong field count fails the whole load
// before anything is written.
func (l *Loader) Load(ctx context.Context, table string, headers []string, rows [][]string) (int, error) {
	columns, err := Columns(headers)
	if err != nil {
		return 0, err
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, &FieldCountError{Row: i + 1, Got: len(row), Want: len(columns)}
		}
	}

	log := logging.FromContext(ctx)
	log.Debug("replacing staging table", "table", table, "engine", l.db.Engine(), "columns", len(columns), "rows", len(rows))

	n, err := l.db.ReplaceTable(ctx, table, columns, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", table, err)
	}

	total, err := l.db.GetTotalRows(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	if total != n {
		return 0, fmt.Errorf("%w: inserted %d, %s holds %d", ErrRowCount, n, table, total)
	}

	log.Info("staging table loaded", "table", table, "rows", n)
	return int(n), nil
}
