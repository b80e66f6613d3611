package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// bigQueryMaxParams bounds the query parameters of one DML insert.
const bigQueryMaxParams = 10000

// BigQuery implements the Database interface for Google BigQuery. DDL runs
// through the table API and rows are inserted with parameterised DML, which
// is not atomic with the recreate.
type BigQuery struct {
	config *config.EngineConfig
	client *bigquery.Client
	ing    ingest.Ingester
}

// NewBigQuery creates a new BigQuery instance
func NewBigQuery(cfg *config.EngineConfig) (*BigQuery, error) {
	if cfg.ProjectID == "" || cfg.Dataset == "" {
		return nil, fmt.Errorf("bigquery engine requires a project and a dataset")
	}
	return &BigQuery{
		config: cfg,
		ing:    ingest.NewBigQueryIngester(cfg.ProjectID, cfg.Dataset),
	}, nil
}

// Engine returns the engine name
func (b *BigQuery) Engine() string {
	return EngineBigQuery
}

// Connect creates the BigQuery client
func (b *BigQuery) Connect(ctx context.Context) error {
	var opts []option.ClientOption
	if b.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(b.config.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, b.config.ProjectID, opts...)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if b.config.Location != "" {
		client.Location = b.config.Location
	}

	b.client = client
	return nil
}

// Close closes the BigQuery client
func (b *BigQuery) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func (b *BigQuery) table(name string) *bigquery.Table {
	return b.client.Dataset(b.config.Dataset).Table(name)
}

// ReplaceTable deletes and recreates the table with STRING columns, then
// inserts rows with DML statements.
func (b *BigQuery) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]string) (int64, error) {
	if b.client == nil {
		return 0, ErrNotConnected
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("table %s has no columns", table)
	}

	t := b.table(table)
	if err := t.Delete(ctx); err != nil && !isNotFound(err) {
		return 0, fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	schema := make(bigquery.Schema, len(columns))
	for i, col := range columns {
		schema[i] = &bigquery.FieldSchema{Name: col, Type: bigquery.StringFieldType}
	}
	if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	batch := max(bigQueryMaxParams/len(columns), 1)
	var inserted int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		chunk := rows[start:end]

		params := make([]bigquery.QueryParameter, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				return inserted, fmt.Errorf("row %d has %d values, table %s has %d columns", start+i+1, len(row), table, len(columns))
			}
			for _, v := range row {
				params = append(params, bigquery.QueryParameter{Value: v})
			}
		}

		stmt, err := b.ing.InsertSQL(table, columns, len(chunk))
		if err != nil {
			return inserted, err
		}
		q := b.client.Query(stmt)
		q.Parameters = params
		if err := b.runQuery(ctx, q); err != nil {
			return inserted, fmt.Errorf("failed to insert rows %d-%d: %w", start+1, end, err)
		}
		inserted += int64(len(chunk))
	}
	return inserted, nil
}

func (b *BigQuery) runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// TableExists reports whether the table exists
func (b *BigQuery) TableExists(ctx context.Context, table string) (bool, error) {
	if b.client == nil {
		return false, ErrNotConnected
	}
	if _, err := b.table(table).Metadata(ctx); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return true, nil
}

// GetColumns returns the columns of a table
func (b *BigQuery) GetColumns(ctx context.Context, table string) ([]Column, error) {
	if b.client == nil {
		return nil, ErrNotConnected
	}

	md, err := b.table(table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table metadata: %w", err)
	}

	columns := make([]Column, len(md.Schema))
	for i, field := range md.Schema {
		columns[i] = Column{
			Name:     field.Name,
			Type:     string(field.Type),
			Nullable: !field.Required,
		}
	}
	return columns, nil
}

// GetTotalRows returns the total number of rows in a table
func (b *BigQuery) GetTotalRows(ctx context.Context, table string) (int64, error) {
	if b.client == nil {
		return 0, ErrNotConnected
	}

	it, err := b.client.Query(fmt.Sprintf("SELECT COUNT(*) FROM %s", b.ing.TableName(table))).Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get total rows: %w", err)
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("failed to get total rows: %w", err)
	}
	count, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", row[0])
	}
	return count, nil
}

// ReadTable returns the columns and every row of a table
func (b *BigQuery) ReadTable(ctx context.Context, table string) ([]Column, []Record, error) {
	columns, err := b.GetColumns(ctx, table)
	if err != nil {
		return nil, nil, err
	}

	it, err := b.client.Query(b.ing.SelectAllSQL(table)).Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	var records []Record
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, recordOf(values))
	}
	return columns, records, nil
}

func recordOf(values []bigquery.Value) Record {
	record := make(Record, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		record[i].Valid = true
		record[i].String = fmt.Sprint(v)
	}
	return record
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
