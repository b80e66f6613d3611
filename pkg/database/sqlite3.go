//go:build cgo

package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite3 implements the Database interface for a SQLite file using the cgo
// driver
type SQLite3 struct {
	sqlEngine
}

// NewSQLite3 creates a new SQLite3 instance
func NewSQLite3(cfg *config.EngineConfig) (*SQLite3, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite3 engine requires a database path")
	}

	return &SQLite3{sqlEngine{
		engine: EngineSQLite3,
		driver: "sqlite3",
		dsn: func() (string, error) {
			return sqliteDSN(cfg.Path, "?_busy_timeout=5000")
		},
		ing:      ingest.NewSQLiteIngester(),
		tx:       txAll,
		maxConns: 1,
	}}, nil
}
