// Package pipeline runs the CSV to staging table to export flow once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/logging"
	"github.com/gerhard-ee/arlstage/internal/source"
	"github.com/gerhard-ee/arlstage/internal/staging"
	"github.com/gerhard-ee/arlstage/internal/state"
	"github.com/gerhard-ee/arlstage/pkg/database"
	"github.com/gerhard-ee/arlstage/pkg/extractor"
	"github.com/google/uuid"
)

// ErrLocked is returned when another run holds the table lock.
var ErrLocked = errors.New("staging table is locked by another run")

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

// Report summarises one run.
type Report struct {
	RunID          string
	SourcePath     string
	FixtureCreated bool
	Attempts       []source.Attempt
	Encoding       string
	Dialect        source.Dialect
	LoadedRows     int
	ExportedRows   int64
	// OutputPath is set only when an export file was written.
	OutputPath string
	Status     string
}

// Pipeline wires the source reader, the staging loader and the exporter
// around one database connection.
type Pipeline struct {
	cfg    *config.Config
	db     database.Database
	states state.Manager
	out    io.Writer
}

// New creates a Pipeline. db must already be connected. Status lines are
// written to out.
func New(cfg *config.Config, db database.Database, states state.Manager, out io.Writer) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		cfg:    cfg,
		db:     db,
		states: states,
		out:    out,
	}
}

// Run performs the pipeline once: locate the input, create the fixture when
// it is missing, read it under the candidate encodings, replace the staging
// table and export it when it has rows. The run is recorded in the state
// manager under a table lock.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	encodings, err := source.LookupEncodings(p.cfg.Encodings)
	if err != nil {
		return nil, err
	}
	reader := source.NewReader(encodings, p.cfg.SampleSize)

	report := &Report{
		RunID:  uuid.NewString(),
		Status: state.StatusRunning,
	}
	ctx, log := logging.WithFields(ctx, "run_id", report.RunID, "table", p.cfg.Table)

	locked, err := p.states.LockState(ctx, p.cfg.Table, p.cfg.State.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", p.cfg.Table, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, p.cfg.Table)
	}
	defer func() {
		// the run context may be cancelled already
		if err := p.states.UnlockState(context.WithoutCancel(ctx), p.cfg.Table); err != nil {
			log.Warn("failed to release table lock", "error", err)
		}
	}()

	now := time.Now()
	run := &state.State{
		JobID:       report.RunID,
		Table:       p.cfg.Table,
		Status:      state.StatusRunning,
		StartedAt:   now,
		LastUpdated: now,
	}
	if err := p.states.CreateState(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	log.Info("run started", "engine", p.db.Engine(), "on_exhausted", p.cfg.OnExhausted)
	runErr := p.run(ctx, reader, report)

	switch {
	case runErr != nil:
		report.Status = state.StatusFailed
	case report.Status == state.StatusRunning:
		report.Status = state.StatusCompleted
	}

	run.SourcePath = report.SourcePath
	run.Encoding = report.Encoding
	if report.Dialect.Delimiter != 0 {
		run.Delimiter = string(report.Dialect.Delimiter)
	}
	run.LoadedRows = int64(report.LoadedRows)
	run.ExportedRows = report.ExportedRows
	run.Status = report.Status
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := p.states.UpdateState(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("failed to record run result", "error", err)
	}

	if runErr != nil {
		log.Error("run failed", "error", runErr)
		return report, runErr
	}
	log.Info("run finished", "status", report.Status, "loaded", report.LoadedRows, "exported", report.ExportedRows)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, reader *source.Reader, report *Report) error {
	log := logging.FromContext(ctx)

	path := p.cfg.InputPath
	if path == "" {
		path = source.Locate(p.cfg.DataDir, p.cfg.InputFile)
	}
	report.SourcePath = path

	created, err := source.EnsureFixture(path, p.cfg.CRLF)
	if err != nil {
		return err
	}
	if created {
		report.FixtureCreated = true
		warnColor.Fprintf(p.out, "Input file not found. Generated test fixture at %s\n", path)
	}

	table, attempts, err := reader.ReadFile(ctx, path)
	report.Attempts = attempts
	for _, a := range attempts {
		if !a.Parsed() {
			log.Debug("encoding attempt failed", "encoding", a.Encoding, "error", a.Err)
		}
	}

	switch {
	case errors.Is(err, source.ErrEncodingsExhausted):
		if p.cfg.OnExhausted != config.OnExhaustedSkip {
			failColor.Fprintf(p.out, "Could not parse %s with any of %v\n", path, p.cfg.Encodings)
			return err
		}
		warnColor.Fprintf(p.out, "Could not parse %s with any of %v, load skipped\n", path, p.cfg.Encodings)
		log.Warn("encodings exhausted, load skipped", "error", err)
		report.Status = state.StatusSkipped
		return p.exportExisting(ctx, report)

	case err != nil:
		return fmt.Errorf("read source: %w", err)
	}

	report.Encoding = table.Encoding
	report.Dialect = table.Dialect
	log.Info("source parsed", "path", path, "encoding", table.Encoding, "dialect", table.Dialect.String(), "rows", len(table.Rows))

	n, err := staging.NewLoader(p.db).Load(ctx, p.cfg.Table, table.Headers, table.Rows)
	if err != nil {
		return fmt.Errorf("load staging table: %w", err)
	}
	report.LoadedRows = n
	okColor.Fprintf(p.out, "Load succeeded (encoding: %s). %d records imported into %s.\n", table.Encoding, n, p.cfg.Table)

	return p.export(ctx, report)
}

// exportExisting exports whatever staging table a previous run left behind.
func (p *Pipeline) exportExisting(ctx context.Context, report *Report) error {
	exists, err := p.db.TableExists(ctx, p.cfg.Table)
	if err != nil {
		return err
	}
	if !exists {
		warnColor.Fprintf(p.out, "No staging table %s, nothing exported\n", p.cfg.Table)
		return nil
	}
	return p.export(ctx, report)
}

func (p *Pipeline) export(ctx context.Context, report *Report) error {
	ext := extractor.NewExtractor(p.db, p.cfg.Table, p.cfg.OutputPath, p.cfg.Format(), p.cfg.CRLF)
	n, err := ext.Extract(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	report.ExportedRows = n

	if n == 0 {
		warnColor.Fprintf(p.out, "Staging table %s is empty, no export written\n", p.cfg.Table)
		return nil
	}
	report.OutputPath = p.cfg.OutputPath
	okColor.Fprintf(p.out, "Export finished: %s\n", p.cfg.OutputPath)
	return nil
}
