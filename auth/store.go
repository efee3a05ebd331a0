package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MemoryUserStore keeps users in process memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]User)}
}

func (s *MemoryUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Email]; exists {
		return fmt.Errorf("%q, %w", u.Email, ErrUserExists)
	}
	s.users[u.Email] = *u
	return nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, exists := s.users[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) Ping(ctx context.Context) error {
	return nil
}

// DBPool is the subset of a pgx pool used by PostgresUserStore.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	uniqueViolation = "23505"

	usersSchemaSQL = `CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

	insertUserSQL     = `INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	selectUserByEmail = `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
)

type PostgresUserStore struct {
	db DBPool
}

func NewPostgresUserStore(db DBPool) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, usersSchemaSQL); err != nil {
		return fmt.Errorf("unable to migrate users, %w", err)
	}
	return nil
}

func (s *PostgresUserStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.Exec(ctx, insertUserSQL, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%q, %w", u.Email, ErrUserExists)
		}
		return fmt.Errorf("unable to insert user, %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, selectUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("unable to query user, %w", err)
	}
	return &u, nil
}

func (s *PostgresUserStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
