// Package extractor exports a staging table to a file.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gerhard-ee/arlstage/internal/logging"
	"github.com/gerhard-ee/arlstage/pkg/database"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
)

// ErrUnsupportedFormat is returned for an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Extractor handles data extraction from a database table
type Extractor struct {
	db         database.Database
	table      string
	outputFile string
	format     string
	crlf       bool
}

// NewExtractor creates a new Extractor instance. crlf only affects CSV output.
func NewExtractor(db database.Database, table, outputFile, format string, crlf bool) *Extractor {
	return &Extractor{
		db:         db,
		table:      table,
		outputFile: outputFile,
		format:     format,
		crlf:       crlf,
	}
}

// writeFunc writes a header and rows to path.
type writeFunc func(path string, header []string, rows [][]string) error

func (e *Extractor) writer() (writeFunc, error) {
	switch e.format {
	case FormatCSV, "":
		return func(path string, header []string, rows [][]string) error {
			return writeCSV(path, header, rows, e.crlf)
		}, nil
	case FormatParquet:
		return writeParquet, nil
	case FormatXLSX:
		return func(path string, header []string, rows [][]string) error {
			return writeXLSX(path, e.table, header, rows)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, e.format)
	}
}

// Extract reads every row of the table and writes the output file with a
// header row taken from the table columns. An empty table produces no file
// and a zero count. NULL values are written as empty strings.
func (e *Extractor) Extract(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	write, err := e.writer()
	if err != nil {
		return 0, err
	}

	columns, records, err := e.db.ReadTable(ctx, e.table)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", e.table, err)
	}

	log := logging.FromContext(ctx)
	if len(records) == 0 {
		log.Info("staging table is empty, nothing exported", "table", e.table)
		return 0, nil
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Strings()
	}

	if err := os.MkdirAll(filepath.Dir(e.outputFile), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := write(e.outputFile, database.ColumnNames(columns), rows); err != nil {
		return 0, fmt.Errorf("failed to export to %s: %w", e.format, err)
	}

	log.Info("table exported", "table", e.table, "path", e.outputFile, "format", e.format, "rows", len(rows))
	return int64(len(rows)), nil
}
