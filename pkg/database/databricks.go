package database

import (
	"fmt"
	"net/url"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "github.com/databricks/databricks-sql-go"
)

// Databricks implements the Database interface for Databricks SQL
// warehouses. Databricks has no multi-statement transactions, so a failed
// replace can leave the table partially loaded.
type Databricks struct {
	sqlEngine
}

// NewDatabricks creates a new Databricks instance
func NewDatabricks(cfg *config.EngineConfig) (*Databricks, error) {
	return &Databricks{sqlEngine{
		engine: EngineDatabricks,
		driver: "databricks",
		dsn: func() (string, error) {
			return databricksDSN(cfg), nil
		},
		ing:       ingest.NewDatabricksIngester(cfg.Catalog, cfg.Schema),
		tx:        txNone,
		maxParams: 256,
	}}, nil
}

// databricksDSN builds token:<token>@<host>:<port><http path>?catalog=&schema=
func databricksDSN(cfg *config.EngineConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 443
	}

	q := url.Values{}
	if cfg.Catalog != "" {
		q.Set("catalog", cfg.Catalog)
	}
	if cfg.Schema != "" {
		q.Set("schema", cfg.Schema)
	}

	dsn := fmt.Sprintf("token:%s@%s:%d%s", cfg.Token, cfg.Host, port, cfg.HTTPPath)
	if len(q) > 0 {
		dsn += "?" + q.Encode()
	}
	return dsn
}
