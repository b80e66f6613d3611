//go:build cgo

package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "github.com/marcboeker/go-duckdb"
)

// DuckDB implements the Database interface for DuckDB
type DuckDB struct {
	sqlEngine
}

// NewDuckDB creates a new DuckDB instance
func NewDuckDB(cfg *config.EngineConfig) (*DuckDB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("duckdb engine requires a database path")
	}

	return &DuckDB{sqlEngine{
		engine: EngineDuckDB,
		driver: "duckdb",
		// For DuckDB the path is the database file, created on first connect
		dsn: func() (string, error) {
			if err := ensureParentDir(cfg.Path); err != nil {
				return "", err
			}
			return cfg.Path, nil
		},
		ing:      ingest.NewDuckDBIngester(cfg.Schema),
		tx:       txAll,
		maxConns: 1,
	}}, nil
}
