//go:build !cgo

package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
)

// DuckDB is unavailable without cgo
type DuckDB struct {
	sqlEngine
}

// NewDuckDB reports that DuckDB support is not compiled in
func NewDuckDB(cfg *config.EngineConfig) (*DuckDB, error) {
	return nil, fmt.Errorf("%w: duckdb requires cgo", ErrUnsupportedEngine)
}
