// Package postgres implements the persistent collaborators of the
// pipeline on PostgreSQL: the inventory template store, the trade data
// source, the export ratio table, the commodity catalog and the
// write-back of regionalized nodes.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/regioflow/internal/config"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// NewPool opens a pgx connection pool against the configured database and
// verifies connectivity before returning it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeConfigError, "parsing database config")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "creating connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "database unreachable")
	}
	return pool, nil
}
