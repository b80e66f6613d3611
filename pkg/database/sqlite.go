package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "modernc.org/sqlite"
)

// SQLite implements the Database interface for a SQLite file using the pure
// Go driver
type SQLite struct {
	sqlEngine
}

// NewSQLite creates a new SQLite instance
func NewSQLite(cfg *config.EngineConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite engine requires a database path")
	}

	return &SQLite{sqlEngine{
		engine: EngineSQLite,
		driver: "sqlite",
		dsn: func() (string, error) {
			return sqliteDSN(cfg.Path, "?_pragma=busy_timeout(5000)")
		},
		ing: ingest.NewSQLiteIngester(),
		tx:  txAll,
		// a single writer avoids SQLITE_BUSY inside the replace transaction
		maxConns: 1,
	}}, nil
}

// sqliteDSN creates the parent directory of path and appends the driver
// options.
func sqliteDSN(path, options string) (string, error) {
	if err := ensureParentDir(path); err != nil {
		return "", err
	}
	return "file:" + path + options, nil
}

func ensureParentDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}
