//go:build !cgo

package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
)

// SQLite3 is unavailable without cgo
type SQLite3 struct {
	sqlEngine
}

// NewSQLite3 reports that the cgo SQLite driver is not compiled in
func NewSQLite3(cfg *config.EngineConfig) (*SQLite3, error) {
	return nil, fmt.Errorf("%w: sqlite3 requires cgo, use sqlite instead", ErrUnsupportedEngine)
}
