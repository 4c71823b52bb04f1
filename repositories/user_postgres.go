package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"pulse-chat/errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		roles         TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL
	)
`

// PostgresUserRepository keeps accounts in Postgres so several servers can share them.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) IUserRepository {
	return &PostgresUserRepository{db: db}
}

// MigrateUsers creates the users table when missing.
func MigrateUsers(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("cannot create users table: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p PostgresUserRepository) CreateUser(email, hashedPassword string) (string, error) {
	query := `
		INSERT INTO users (id, email, password_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`
	var id string
	err := p.db.QueryRow(query, uuid.New().String(), normalizeEmail(email), hashedPassword,
		pq.Array([]string{"user"}), time.Now().UTC()).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.ErrUserAlreadyExists
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return id, nil
}

func (p PostgresUserRepository) GetUserByEmail(email string) (User, error) {
	query := `
		SELECT id, email, password_hash, roles, created_at
		FROM users
		WHERE email = $1
	`
	var user User
	err := p.db.QueryRow(query, normalizeEmail(email)).
		Scan(&user.ID, &user.Email, &user.PasswordHash, pq.Array(&user.Roles), &user.CreatedAt)
	if err == sql.ErrNoRows {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return user, nil
}
