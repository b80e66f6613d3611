package database

import (
	"fmt"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/ingest"
	_ "github.com/lib/pq"
)

// Postgres implements the Database interface for PostgreSQL
type Postgres struct {
	sqlEngine
}

// NewPostgres creates a new PostgreSQL instance
func NewPostgres(cfg *config.EngineConfig) (*Postgres, error) {
	return &Postgres{sqlEngine{
		engine: EnginePostgres,
		driver: "postgres",
		dsn: func() (string, error) {
			return postgresDSN(cfg), nil
		},
		ing:       ingest.NewPostgresIngester(cfg.Schema),
		tx:        txAll,
		maxParams: 65535,
	}}, nil
}

func postgresDSN(cfg *config.EngineConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		sslMode,
	)
}
