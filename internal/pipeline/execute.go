package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/logging"
	"github.com/gerhard-ee/arlstage/internal/state"
	"github.com/gerhard-ee/arlstage/pkg/database"
)

// Execute builds the staging engine and the state manager from cfg, runs
// the pipeline once and closes the connection on every path.
func Execute(ctx context.Context, cfg *config.Config, out io.Writer) (*Report, error) {
	db, err := database.NewDatabase(&cfg.Engine)
	if err != nil {
		return nil, err
	}

	states, err := state.NewManager(cfg.State)
	if err != nil {
		return nil, err
	}

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", db.Engine(), err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.FromContext(ctx).Warn("failed to close database", "error", err)
		}
	}()

	return New(cfg, db, states, out).Run(ctx)
}
