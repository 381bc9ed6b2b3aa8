package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pishro-capital/ledger-core/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  telegram_id BIGINT NOT NULL UNIQUE,
  phone_number TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'investor',
  is_verified BOOLEAN NOT NULL DEFAULT false,
  verified_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);
CREATE INDEX IF NOT EXISTS idx_users_phone_number ON users(phone_number);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, telegram_id, phone_number, name, role, is_verified, verified_at, created_at, updated_at`

// Create inserts a new user row and returns the new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (telegram_id, phone_number, name, role, is_verified, created_at, updated_at)
		VALUES (:telegram_id, :phone_number, :name, :role, :is_verified, :created_at, :updated_at)
		RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return 0, errors.New("no id returned")
}

// GetByID fetches one user or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByTelegramID fetches by the chat identity.
func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, telegramID); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone fetches by normalized phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone_number=$1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, phone); err != nil {
		return nil, err
	}
	return &u, nil
}

// Verify marks a user as verified.
func (r *UserRepo) Verify(ctx context.Context, id int64) error {
	const q = `UPDATE users SET is_verified=true, verified_at=NOW(), updated_at=NOW() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateRole changes a user's role.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role entity.Role) error {
	const q = `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, role)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// List returns a page of users, newest first.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	var out []*entity.User
	if err := r.db.SelectContext(ctx, &out, q, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// Search matches name or phone number by substring, capped at 20 rows.
func (r *UserRepo) Search(ctx context.Context, query string) ([]*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE name ILIKE $1 OR phone_number ILIKE $1
		ORDER BY name LIMIT 20`
	var out []*entity.User
	if err := r.db.SelectContext(ctx, &out, q, "%"+query+"%"); err != nil {
		return nil, err
	}
	return out, nil
}

// requireRow converts zero affected rows into sql.ErrNoRows so the service
// layer maps missing users uniformly.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
