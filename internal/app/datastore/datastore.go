package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mashpotato9/placefinder/internal/repository"
	"github.com/mashpotato9/placefinder/internal/repository/postgres"
	"github.com/mashpotato9/placefinder/internal/repository/sqlite"
	"github.com/mashpotato9/placefinder/pkg/config"
)

// Backend bundles the repositories of the configured database.
type Backend struct {
	Users  repository.UserRepository
	Places repository.PlaceRepository
	// SQL is a database/sql handle on the same database, used for migrations.
	SQL *sql.DB

	ping  func(context.Context) error
	close func()
}

// Open connects to the database selected by driver.
func Open(ctx context.Context, driver, dsn string) (*Backend, error) {
	switch driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := postgres.New(pool)
		db := stdlib.OpenDBFromPool(pool)
		return &Backend{
			Users:  repo,
			Places: repo,
			SQL:    db,
			ping:   repo.Ping,
			close: func() {
				_ = db.Close()
				pool.Close()
			},
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Users:  store,
			Places: store,
			SQL:    store.DB(),
			ping:   store.Ping,
			close:  func() { _ = store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ping checks the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases every connection held by the backend.
func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}
