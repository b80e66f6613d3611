package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Exhaustion policies applied when no candidate encoding parses the input.
const (
	OnExhaustedFail = "fail"
	OnExhaustedSkip = "skip"
)

// Config represents the pipeline configuration. It is built once at process
// start and passed to every stage.
type Config struct {
	// Directories created before any I/O
	DataDir string `env:"ARL_DATA_DIR" default:"data"`
	DBDir   string `env:"ARL_DB_DIR" default:"db"`

	// Source
	InputFile  string   `env:"ARL_INPUT_FILE" default:"Estadisticas_Riegos_Laborales_Positiva-Sep_2025.csv"`
	InputPath  string   `env:"ARL_INPUT_PATH"`
	Encodings  []string `env:"ARL_ENCODINGS" default:"utf-8,latin-1,cp1252"`
	SampleSize int      `env:"ARL_SAMPLE_SIZE" default:"1024"`

	// Staging and export
	Table        string `env:"ARL_TABLE" default:"reporte_arl"`
	OutputPath   string `env:"ARL_OUTPUT_PATH" default:"db/export.csv"`
	ExportFormat string `env:"ARL_EXPORT_FORMAT"`
	CRLF         bool   `env:"ARL_CRLF" default:"false"`
	OnExhausted  string `env:"ARL_ON_EXHAUSTED" default:"fail"`

	Engine  EngineConfig
	State   StateConfig
	Logging LoggingConfig
}

// EngineConfig holds the staging engine connection settings.
type EngineConfig struct {
	// Common fields
	Type     string `env:"ARL_ENGINE" default:"sqlite"`
	Path     string `env:"ARL_DB_PATH" default:"db/proyecto.db"`
	Host     string `env:"ARL_DB_HOST"`
	Port     int    `env:"ARL_DB_PORT"`
	User     string `env:"ARL_DB_USER"`
	Password string `env:"ARL_DB_PASSWORD"`
	Database string `env:"ARL_DB_NAME"`
	Schema   string `env:"ARL_DB_SCHEMA"`
	SSLMode  string `env:"ARL_DB_SSLMODE" default:"disable"`

	// BigQuery specific
	ProjectID string `env:"ARL_BQ_PROJECT"`
	Dataset   string `env:"ARL_BQ_DATASET"`
	Location  string `env:"ARL_BQ_LOCATION"`

	// CredentialsFile is a service account key; empty uses application
	// default credentials
	CredentialsFile string `env:"ARL_BQ_CREDENTIALS"`

	// Snowflake specific
	Account   string `env:"ARL_SF_ACCOUNT"`
	Warehouse string `env:"ARL_SF_WAREHOUSE"`
	Role      string `env:"ARL_SF_ROLE"`

	// Databricks specific
	HTTPPath string `env:"ARL_DBX_HTTP_PATH"`
	Token    string `env:"ARL_DBX_TOKEN"`
	Catalog  string `env:"ARL_DBX_CATALOG"`
}

// StateConfig selects where pipeline run state is recorded.
type StateConfig struct {
	Type      string        `env:"ARL_STATE_TYPE" default:"memory"`
	Dir       string        `env:"ARL_STATE_DIR" default:"db/state"`
	Namespace string        `env:"ARL_STATE_NAMESPACE" default:"default"`
	LockTTL   time.Duration `env:"ARL_STATE_LOCK_TTL" default:"10m"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// EnsureDirs creates the data and database directories if they don't exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.DBDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SetDBDir moves the database directory. The database file and the export
// file follow it unless ARL_DB_PATH or ARL_OUTPUT_PATH name them explicitly.
func (c *Config) SetDBDir(dir string) {
	if os.Getenv("ARL_DB_PATH") == "" {
		c.Engine.Path = filepath.Join(dir, filepath.Base(c.Engine.Path))
	}
	if os.Getenv("ARL_OUTPUT_PATH") == "" {
		c.OutputPath = filepath.Join(dir, filepath.Base(c.OutputPath))
	}
	c.DBDir = dir
}

// Format returns the export format, falling back to the output file extension.
func (c *Config) Format() string {
	if c.ExportFormat != "" {
		return strings.ToLower(c.ExportFormat)
	}
	switch strings.ToLower(filepath.Ext(c.OutputPath)) {
	case ".parquet":
		return "parquet"
	case ".xlsx":
		return "xlsx"
	default:
		return "csv"
	}
}
