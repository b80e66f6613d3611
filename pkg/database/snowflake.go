package database

import (
	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	sf "github.com/snowflakedb/gosnowflake"
)

// Snowflake implements the Database interface for Snowflake
type Snowflake struct {
	sqlEngine
}

// NewSnowflake creates a new Snowflake instance. DDL commits implicitly on
// Snowflake, so only the inserts share a transaction.
func NewSnowflake(cfg *config.EngineConfig) (*Snowflake, error) {
	return &Snowflake{sqlEngine{
		engine: EngineSnowflake,
		driver: "snowflake",
		dsn: func() (string, error) {
			return snowflakeDSN(cfg)
		},
		ing:       ingest.NewSnowflakeIngester(cfg.Schema),
		tx:        txInsert,
		maxParams: 10000,
	}}, nil
}

func snowflakeDSN(cfg *config.EngineConfig) (string, error) {
	warehouse := cfg.Warehouse
	if warehouse == "" {
		warehouse = "COMPUTE_WH"
	}
	return sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: warehouse,
		Role:      cfg.Role,
	})
}
