// Package postgres owns the pgx connection pool, its zap query tracing and
// the embedded schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fogsched/fogsched/config/storage/postgresql/migrations"
	config "github.com/fogsched/fogsched/config/utils"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	zaptracer "github.com/jackc/pgx-zap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// Completion callbacks write back concurrently, so the pool holds a few
// connections instead of one.
const maxPoolConns = 4

// DB wraps the pgx pool together with a dollar-placeholder squirrel builder
// so repositories build queries against the same instance they execute on.
type DB struct {
	*pgxpool.Pool
	QueryBuilder *squirrel.StatementBuilderType
	url          string
}

// New parses the connection settings, attaches the zap tracer and returns a
// pinged pool. A failed ping is a construction error: the process has no
// business starting against an unreachable database.
func New(ctx context.Context, cfg *config.DB, logger *zap.Logger) (*DB, error) {
	url := fmt.Sprintf("%s://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Connection, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	poolCfg.MaxConns = maxPoolConns
	poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   zaptracer.NewLogger(logger),
		LogLevel: tracelog.LogLevelInfo,
	}
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	poolCfg.ConnConfig.StatementCacheCapacity = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	return &DB{
		Pool:         pool,
		QueryBuilder: &builder,
		url:          url,
	}, nil
}

// Migrate applies the embedded migrations; an already current schema is not
// an error.
func (db *DB) Migrate() error {
	src, err := iofs.New(migrations.MigrationsFS, ".")
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, db.url)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// DBHealth reports whether the database still answers.
func (db *DB) DBHealth(ctx context.Context) error {
	return db.Ping(ctx)
}

// ErrorCode returns the PostgreSQL error code of the given error, or an
// empty string when the error did not come from the server.
func (db *DB) ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Close releases the pool.
func (db *DB) Close() {
	db.Pool.Close()
}
