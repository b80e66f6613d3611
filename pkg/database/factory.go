package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
)

// NewDatabase creates the staging engine selected by cfg.Type. The returned
// database is not connected yet.
func NewDatabase(cfg *config.EngineConfig) (Database, error) {
	var (
		db  Database
		err error
	)
	switch cfg.Type {
	case EngineSQLite, "":
		db, err = NewSQLite(cfg)
	case EngineSQLite3:
		db, err = NewSQLite3(cfg)
	case EngineDuckDB:
		db, err = NewDuckDB(cfg)
	case EnginePostgres:
		db, err = NewPostgres(cfg)
	case EngineMSSQL:
		db, err = NewMSSQL(cfg)
	case EngineSnowflake:
		db, err = NewSnowflake(cfg)
	case EngineDatabricks:
		db, err = NewDatabricks(cfg)
	case EngineBigQuery:
		db, err = NewBigQuery(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
