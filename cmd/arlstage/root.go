package main

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/logging"
	"github.com/gerhard-ee/arlstage/internal/pipeline"
	"github.com/spf13/cobra"
)

// options holds flag values; only flags set on the command line override the
// environment configuration.
type options struct {
	envFile     string
	input       string
	dataDir     string
	dbDir       string
	table       string
	output      string
	format      string
	encodings   []string
	onExhausted string
	crlf        bool
	engine      string
	dbPath      string
	stateType   string
	stateDir    string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:   "arlstage",
		Short: "Stage the ARL labor-risk report into a database and export it",
		Long: `arlstage reads the ARL statistics CSV (generating a one-row fixture when it
is missing), detects its encoding and delimiter, replaces the staging table
with its rows and exports the table when it has any.

Configuration comes from ARL_* environment variables and an optional .env
file; flags override both.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			*cfg = *loaded
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := pipeline.Execute(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "Environment file to load before reading ARL_* variables")
	flags.StringVar(&opts.engine, "engine", "", "Staging engine (sqlite, sqlite3, duckdb, postgres, mssql, snowflake, databricks, bigquery)")
	flags.StringVar(&opts.dbPath, "db-path", "", "Database file for sqlite, sqlite3 and duckdb")
	flags.StringVar(&opts.table, "table", "", "Staging table name")
	flags.StringVar(&opts.stateType, "state-type", "", "Run state backend (memory, file, kubernetes)")
	flags.StringVar(&opts.stateDir, "state-dir", "", "Directory for file run state")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")

	local := root.Flags()
	local.StringVarP(&opts.input, "input", "i", "", "Input CSV path, bypassing the data directory lookup")
	local.StringVar(&opts.dataDir, "data-dir", "", "Directory searched first for the input file")
	local.StringVar(&opts.dbDir, "db-dir", "", "Directory for the database file and the export, unless --db-path or --output is given")
	local.StringVarP(&opts.output, "output", "o", "", "Export file path")
	local.StringVarP(&opts.format, "format", "f", "", "Export format (csv, parquet, xlsx); default from the output extension")
	local.StringSliceVar(&opts.encodings, "encodings", nil, "Candidate encodings, tried in order")
	local.StringVar(&opts.onExhausted, "on-exhausted", "", "What to do when no encoding parses the input (fail, skip)")
	local.BoolVar(&opts.crlf, "crlf", false, "Write CRLF line endings in generated CSV files")

	root.AddCommand(newRunsCmd(cfg))
	return root
}

// loadConfig reads the environment configuration and applies the flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("input", func() { cfg.InputPath = opts.input })
	set("data-dir", func() { cfg.DataDir = opts.dataDir })
	// before output and db-path, which take precedence
	set("db-dir", func() { cfg.SetDBDir(opts.dbDir) })
	set("table", func() { cfg.Table = opts.table })
	set("output", func() { cfg.OutputPath = opts.output })
	set("format", func() { cfg.ExportFormat = opts.format })
	set("encodings", func() { cfg.Encodings = opts.encodings })
	set("on-exhausted", func() { cfg.OnExhausted = opts.onExhausted })
	set("crlf", func() { cfg.CRLF = opts.crlf })
	set("engine", func() { cfg.Engine.Type = opts.engine })
	set("db-path", func() { cfg.Engine.Path = opts.dbPath })
	set("state-type", func() { cfg.State.Type = opts.stateType })
	set("state-dir", func() { cfg.State.Dir = opts.stateDir })
	set("log-level", func() { cfg.Logging.Level = opts.logLevel })
	set("log-format", func() { cfg.Logging.Format = opts.logFormat })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
