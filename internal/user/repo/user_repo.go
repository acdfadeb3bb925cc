package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-social/pkg/database"
)

const userColumns = `id, email, password_hash, first_name, last_name, email_verified,
	created_at, updated_at, deleted_at, is_deleted`

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  first_name TEXT,
  last_name TEXT,
  email_verified BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  deleted_at TIMESTAMPTZ,
  is_deleted BOOLEAN NOT NULL DEFAULT false,
  CONSTRAINT users_email_key UNIQUE (email)
);
CREATE INDEX IF NOT EXISTS idx_users_active ON users(id) WHERE is_deleted = false;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts u, which must already carry its id and password hash.
// The timestamps are filled from the database defaults.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, email, password_hash, first_name, last_name, email_verified)
		VALUES (:id, :email, :password_hash, :first_name, :last_name, :email_verified)
		RETURNING created_at, updated_at`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return entity.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if database.IsUniqueViolation(err, "users_email_key") {
				return entity.ErrDuplicateEmail
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return errors.New("insert user: no row returned")
	}
	return rows.Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByEmail returns the live user with exactly this email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1 AND is_deleted=false`
	return r.getOne(ctx, q, email)
}

// GetActiveByID returns the user unless it is missing or soft deleted.
func (r *UserRepo) GetActiveByID(ctx context.Context, id int64) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1 AND is_deleted=false`
	return r.getOne(ctx, q, id)
}

// GetByIDs loads users keyed by id, soft deleted ones included, so that posts
// and likes keep rendering their author.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.User, error) {
	out := make(map[int64]*entity.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []entity.User
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// UpdateProfile sets the name fields of a live user and returns the new row.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, firstName, lastName *string) (*entity.User, error) {
	q := `UPDATE users SET first_name=$2, last_name=$3, updated_at=NOW()
		WHERE id=$1 AND is_deleted=false RETURNING ` + userColumns
	return r.getOne(ctx, q, id, firstName, lastName)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...any) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
