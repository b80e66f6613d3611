package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/source"
	"github.com/gerhard-ee/arlstage/internal/staging"
	"github.com/gerhard-ee/arlstage/internal/state"
	"github.com/gerhard-ee/arlstage/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.Engine.Path = filepath.Join(dir, "db", "proyecto.db")
	cfg.OutputPath = filepath.Join(dir, "db", "export.csv")
	cfg.State.Dir = filepath.Join(dir, "db", "state")
	return cfg
}

type harness struct {
	cfg    *config.Config
	db     database.Database
	states *state.MemoryManager
	out    *bytes.Buffer
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	db, err := database.NewDatabase(&cfg.Engine)
	require.NoError(t, err)
	require.NoError(t, db.Connect(context.Background()))
	t.Cleanup(func() { db.Close() })

	return &harness{
		cfg:    cfg,
		db:     db,
		states: state.NewMemoryManager(),
		out:    &bytes.Buffer{},
	}
}

func (h *harness) run(t *testing.T) (*Report, error) {
	t.Helper()
	return New(h.cfg, h.db, h.states, h.out).Run(context.Background())
}

func (h *harness) inputPath() string {
	return filepath.Join(h.cfg.DataDir, h.cfg.InputFile)
}

func (h *harness) writeInput(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(h.cfg.DataDir, 0755))
	require.NoError(t, os.WriteFile(h.inputPath(), data, 0644))
}

func (h *harness) readExport(t *testing.T) *source.Table {
	t.Helper()
	encs, err := source.LookupEncodings([]string{"utf-8"})
	require.NoError(t, err)
	table, _, err := source.NewReader(encs, 0).ReadFile(context.Background(), h.cfg.OutputPath)
	require.NoError(t, err)
	return table
}

func TestRunCreatesFixture(t *testing.T) {
	h := newHarness(t, testConfig(t))

	report, err := h.run(t)
	require.NoError(t, err)

	assert.True(t, report.FixtureCreated)
	assert.Equal(t, h.inputPath(), report.SourcePath)
	assert.Equal(t, "utf-8", report.Encoding)
	assert.Equal(t, 1, report.LoadedRows)
	assert.Equal(t, int64(1), report.ExportedRows)
	assert.Equal(t, h.cfg.OutputPath, report.OutputPath)
	assert.Equal(t, state.StatusCompleted, report.Status)

	out := h.out.String()
	assert.Contains(t, out, "Generated test fixture at "+h.inputPath())
	assert.Contains(t, out, "Load succeeded (encoding: utf-8). 1 records imported into reporte_arl.")
	assert.Contains(t, out, "Export finished: "+h.cfg.OutputPath)

	total, err := h.db.GetTotalRows(context.Background(), "reporte_arl")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	exported := h.readExport(t)
	assert.Equal(t, source.FixtureHeader, exported.Headers)
	require.Len(t, exported.Rows, 1)
	assert.Equal(t, source.FixtureRow, exported.Rows[0])
}

func TestRunEachEncoding(t *testing.T) {
	tests := []struct {
		encoding string
		delim    rune
		want     string
	}{
		{"utf-8", ',', "utf-8"},
		{"latin-1", ';', "latin-1"},
		{"cp1252", '\t', "latin-1"},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			h := newHarness(t, testConfig(t))
			enc, err := source.LookupEncoding(tt.encoding)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, source.WriteFixture(&buf, enc, tt.delim, 40, false))
			h.writeInput(t, buf.Bytes())

			report, err := h.run(t)
			require.NoError(t, err)
			assert.False(t, report.FixtureCreated)
			assert.Equal(t, tt.want, report.Encoding)
			assert.Equal(t, tt.delim, report.Dialect.Delimiter)
			assert.Equal(t, 40, report.LoadedRows)
			assert.Equal(t, int64(40), report.ExportedRows)

			exported := h.readExport(t)
			require.Len(t, exported.Rows, 40)
			assert.Equal(t, "Construcción", exported.Rows[0][0])
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(t))
	h.writeInput(t, []byte("ACTIVEC;NUM CASOS\nMineria;3\nConstruccion;5\n"))

	_, err := h.run(t)
	require.NoError(t, err)
	_, first, err := h.db.ReadTable(ctx, "reporte_arl")
	require.NoError(t, err)

	_, err = h.run(t)
	require.NoError(t, err)
	cols, second, err := h.db.ReadTable(ctx, "reporte_arl")
	require.NoError(t, err)

	assert.Equal(t, []string{"ACTIVEC", "NUM_CASOS"}, database.ColumnNames(cols))
	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestRunRoundTrip(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.writeInput(t, []byte(" ACTIVEC , NUM CASOS ,DPTO\n\"Mineria, oro\",3,Meta\nConstruccion,,Cali\n"))

	_, err := h.run(t)
	require.NoError(t, err)

	exported := h.readExport(t)
	assert.Equal(t, []string{"ACTIVEC", "NUM_CASOS", "DPTO"}, exported.Headers)
	assert.Equal(t, [][]string{
		{"Mineria, oro", "3", "Meta"},
		{"Construccion", "", "Cali"},
	}, exported.Rows)
}

func TestRunHeaderOnly(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.writeInput(t, []byte("ACTIVEC,AÑO,ARL\n"))

	report, err := h.run(t)
	require.NoError(t, err)
	assert.Zero(t, report.LoadedRows)
	assert.Zero(t, report.ExportedRows)
	assert.Empty(t, report.OutputPath)
	assert.Contains(t, h.out.String(), "no export written")

	_, err = os.Stat(h.cfg.OutputPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	exists, err := h.db.TableExists(context.Background(), "reporte_arl")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunExhaustedFails(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.writeInput(t, []byte("ACTIVEC\nMineria\n"))

	report, err := h.run(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrEncodingsExhausted))
	assert.Equal(t, state.StatusFailed, report.Status)
	assert.Len(t, report.Attempts, 3)

	states, err := h.states.ListStates(context.Background(), "reporte_arl")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, state.StatusFailed, states[0].Status)
	assert.Contains(t, states[0].Error, "no candidate encoding")
}

func TestRunExhaustedSkip(t *testing.T) {
	t.Run("no staging table", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OnExhausted = config.OnExhaustedSkip
		h := newHarness(t, cfg)
		h.writeInput(t, []byte("ACTIVEC\nMineria\n"))

		report, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, state.StatusSkipped, report.Status)
		assert.Contains(t, h.out.String(), "nothing exported")

		_, err = os.Stat(cfg.OutputPath)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("previous staging table is exported", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OnExhausted = config.OnExhaustedSkip
		h := newHarness(t, cfg)
		_, err := h.db.ReplaceTable(context.Background(), "reporte_arl", []string{"a"}, [][]string{{"old"}})
		require.NoError(t, err)
		h.writeInput(t, []byte("ACTIVEC\nMineria\n"))

		report, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, state.StatusSkipped, report.Status)
		assert.Equal(t, int64(1), report.ExportedRows)

		data, err := os.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, "a\nold\n", string(data))
	})
}

func TestRunMalformedRowIsFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(t))
	_, err := h.db.ReplaceTable(ctx, "reporte_arl", []string{"a", "b"}, [][]string{{"x", "y"}})
	require.NoError(t, err)

	input := "a,b\n" + strings.Repeat("1,2\n", 10) + "3\n"
	h.writeInput(t, []byte(input))

	report, err := h.run(t)
	require.Error(t, err)
	var fcErr *staging.FieldCountError
	require.True(t, errors.As(err, &fcErr))
	assert.Equal(t, 11, fcErr.Row)
	assert.Equal(t, state.StatusFailed, report.Status)

	_, records, err := h.db.ReadTable(ctx, "reporte_arl")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"x", "y"}, records[0].Strings())
}

func TestRunLocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(t))

	ok, err := h.states.LockState(ctx, "reporte_arl", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.run(t)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, h.states.UnlockState(ctx, "reporte_arl"))
	_, err = h.run(t)
	require.NoError(t, err)

	// the lock is released after a run
	ok, err = h.states.LockState(ctx, "reporte_arl", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunRecordsState(t *testing.T) {
	h := newHarness(t, testConfig(t))

	report, err := h.run(t)
	require.NoError(t, err)

	got, err := h.states.GetState(context.Background(), report.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state.StatusCompleted, got.Status)
	assert.Equal(t, "utf-8", got.Encoding)
	assert.Equal(t, ",", got.Delimiter)
	assert.Equal(t, int64(1), got.LoadedRows)
	assert.Equal(t, int64(1), got.ExportedRows)
}

func TestRunInputPathOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "custom.csv")
	require.NoError(t, os.WriteFile(cfg.InputPath, []byte("a|b\n1|2\n"), 0644))
	h := newHarness(t, cfg)

	report, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, cfg.InputPath, report.SourcePath)
	assert.Equal(t, '|', report.Dialect.Delimiter)
}

func TestRunExportFormats(t *testing.T) {
	for _, ext := range []string{".parquet", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.OutputPath = filepath.Join(cfg.DBDir, "export"+ext)
			h := newHarness(t, cfg)

			report, err := h.run(t)
			require.NoError(t, err)
			assert.Equal(t, int64(1), report.ExportedRows)

			info, err := os.Stat(cfg.OutputPath)
			require.NoError(t, err)
			assert.NotZero(t, info.Size())
		})
	}
}

func TestExecute(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	report, err := Execute(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LoadedRows)
	assert.Contains(t, out.String(), "Export finished")

	cfg.Engine.Type = "oracle"
	_, err = Execute(context.Background(), cfg, &out)
	assert.True(t, errors.Is(err, database.ErrUnsupportedEngine))
}
