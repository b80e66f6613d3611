package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, after loading the
// given .env files (missing files are ignored). It applies defaults for unset
// values and validates the result.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if os.Getenv("ARL_DB_DIR") != "" {
		cfg.SetDBDir(cfg.DBDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration built from struct tag defaults only,
// ignoring the environment.
func Default() *Config {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), func(string) string { return "" }); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value, lookup ...func(string) string) error {
	getenv := os.Getenv
	if len(lookup) > 0 {
		getenv = lookup[0]
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, getenv); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := getenv(envName)
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(SplitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// SplitList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.InputFile == "" && c.InputPath == "" {
		errs = append(errs, "ARL_INPUT_FILE or ARL_INPUT_PATH is required")
	}
	if c.Table == "" {
		errs = append(errs, "ARL_TABLE is required")
	}
	if c.OutputPath == "" {
		errs = append(errs, "ARL_OUTPUT_PATH is required")
	}
	if len(c.Encodings) == 0 {
		errs = append(errs, "ARL_ENCODINGS must list at least one encoding")
	}
	if c.SampleSize <= 0 {
		errs = append(errs, "ARL_SAMPLE_SIZE must be positive")
	}

	switch c.OnExhausted {
	case OnExhaustedFail, OnExhaustedSkip:
	default:
		errs = append(errs, fmt.Sprintf("ARL_ON_EXHAUSTED (%q) must be one of: fail, skip", c.OnExhausted))
	}

	switch c.Format() {
	case "csv", "parquet", "xlsx":
	default:
		errs = append(errs, fmt.Sprintf("ARL_EXPORT_FORMAT (%q) must be one of: csv, parquet, xlsx", c.ExportFormat))
	}

	switch c.Engine.Type {
	case "sqlite", "sqlite3", "duckdb":
		if c.Engine.Path == "" {
			errs = append(errs, fmt.Sprintf("ARL_DB_PATH is required for %s", c.Engine.Type))
		}
	case "postgres", "mssql":
		if c.Engine.Host == "" || c.Engine.Port == 0 || c.Engine.User == "" || c.Engine.Database == "" {
			errs = append(errs, "ARL_DB_HOST, ARL_DB_PORT, ARL_DB_USER and ARL_DB_NAME are required for postgres/mssql")
		}
	case "bigquery":
		if c.Engine.ProjectID == "" || c.Engine.Dataset == "" {
			errs = append(errs, "ARL_BQ_PROJECT and ARL_BQ_DATASET are required for bigquery")
		}
	case "snowflake":
		if c.Engine.Account == "" || c.Engine.User == "" || c.Engine.Database == "" {
			errs = append(errs, "ARL_SF_ACCOUNT, ARL_DB_USER and ARL_DB_NAME are required for snowflake")
		}
	case "databricks":
		if c.Engine.Host == "" || c.Engine.HTTPPath == "" || c.Engine.Token == "" {
			errs = append(errs, "ARL_DB_HOST, ARL_DBX_HTTP_PATH and ARL_DBX_TOKEN are required for databricks")
		}
	default:
		errs = append(errs, fmt.Sprintf("ARL_ENGINE (%q) is not a supported engine", c.Engine.Type))
	}

	switch c.State.Type {
	case "memory", "kubernetes":
	case "file":
		if c.State.Dir == "" {
			errs = append(errs, "ARL_STATE_DIR is required for file state")
		}
	default:
		errs = append(errs, fmt.Sprintf("ARL_STATE_TYPE (%q) must be one of: memory, file, kubernetes", c.State.Type))
	}
	if c.State.LockTTL <= 0 {
		errs = append(errs, "ARL_STATE_LOCK_TTL must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("DataDir: %q, DBDir: %q, InputFile: %q, ", c.DataDir, c.DBDir, c.InputFile))
	b.WriteString(fmt.Sprintf("Table: %q, Output: %q (%s), ", c.Table, c.OutputPath, c.Format()))
	b.WriteString(fmt.Sprintf("Encodings: %v, OnExhausted: %q, ", c.Encodings, c.OnExhausted))
	b.WriteString(fmt.Sprintf("Engine: {Type: %q, Path: %q, Host: %q, Password: [MASKED], Token: [MASKED]}, ",
		c.Engine.Type, c.Engine.Path, c.Engine.Host))
	b.WriteString(fmt.Sprintf("State: {Type: %q}, Logging: {Level: %q, Format: %q}",
		c.State.Type, c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
