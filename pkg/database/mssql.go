package database

import (
	"fmt"
	"net/url"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "github.com/denisenkom/go-mssqldb"
)

// MSSQL implements the Database interface for Microsoft SQL Server
type MSSQL struct {
	sqlEngine
}

// NewMSSQL creates a new SQL Server instance
func NewMSSQL(cfg *config.EngineConfig) (*MSSQL, error) {
	return &MSSQL{sqlEngine{
		engine: EngineMSSQL,
		driver: "sqlserver",
		dsn: func() (string, error) {
			return mssqlDSN(cfg), nil
		},
		ing: ingest.NewMSSQLIngester(cfg.Schema),
		tx:  txAll,
		// SQL Server accepts at most 2100 parameters per request
		maxParams: 2000,
	}}, nil
}

func mssqlDSN(cfg *config.EngineConfig) string {
	dsn := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	q := dsn.Query()
	q.Set("database", cfg.Database)
	dsn.RawQuery = q.Encode()
	return dsn.String()
}
