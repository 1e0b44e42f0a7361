package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mashpotato9/placefinder/internal/domain"
	"github.com/mashpotato9/placefinder/internal/repository"
)

// Store implements persistence interfaces over a SQLite file.
type Store struct {
	db *sql.DB
}

var (
	_ repository.UserRepository  = (*Store)(nil)
	_ repository.PlaceRepository = (*Store)(nil)
)

// Open opens the SQLite database at path. The schema is managed by the
// migration runner, not by Open.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the raw handle, used by the migration runner.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, toMillis(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username", repository.ErrConflict)
		}
		return err
	}
	return nil
}

// GetUserByUsername fetches a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// CreatePlace inserts a saved place.
func (s *Store) CreatePlace(ctx context.Context, place *domain.Place) error {
	const query = `INSERT INTO places (id, owner_id, name, address, place_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, place.ID, place.OwnerID, place.Name, place.Address, place.PlaceID, toMillis(place.CreatedAt))
	return err
}

// ListPlacesByOwner returns places saved by the owner, oldest first.
func (s *Store) ListPlacesByOwner(ctx context.Context, ownerID string) ([]domain.Place, error) {
	const query = `SELECT id, owner_id, name, address, place_id, created_at
		FROM places WHERE owner_id = ? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := make([]domain.Place, 0)
	for rows.Next() {
		var (
			p       domain.Place
			created int64
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.PlaceID, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		places = append(places, p)
	}
	return places, rows.Err()
}

// DeletePlace removes a place owned by ownerID.
func (s *Store) DeletePlace(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM places WHERE id = ? AND owner_id = ?`
	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
