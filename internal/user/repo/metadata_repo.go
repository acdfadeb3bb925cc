package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

// MetaDataRepo stores the enrichment payloads attached to each user.
type MetaDataRepo struct {
	db *sqlx.DB
}

func NewMetaDataRepo(db *sqlx.DB) *MetaDataRepo { return &MetaDataRepo{db: db} }

func (r *MetaDataRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_meta_data (
  user_id BIGINT PRIMARY KEY REFERENCES users(id),
  geo_data JSONB,
  public_holidays JSONB,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns nil without error when no enrichment has been stored yet.
func (r *MetaDataRepo) Get(ctx context.Context, userID int64) (*entity.MetaData, error) {
	const q = `SELECT user_id, geo_data, public_holidays, updated_at FROM user_meta_data WHERE user_id=$1`
	var m entity.MetaData
	if err := r.db.GetContext(ctx, &m, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SetGeoData upserts the geo payload, leaving holidays untouched.
func (r *MetaDataRepo) SetGeoData(ctx context.Context, userID int64, geo []byte) error {
	const q = `INSERT INTO user_meta_data (user_id, geo_data) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET geo_data=EXCLUDED.geo_data, updated_at=NOW()`
	_, err := r.db.ExecContext(ctx, q, userID, nullJSON(geo))
	return err
}

// SetPublicHolidays upserts the holiday payload, leaving geo data untouched.
func (r *MetaDataRepo) SetPublicHolidays(ctx context.Context, userID int64, holidays []byte) error {
	const q = `INSERT INTO user_meta_data (user_id, public_holidays) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET public_holidays=EXCLUDED.public_holidays, updated_at=NOW()`
	_, err := r.db.ExecContext(ctx, q, userID, nullJSON(holidays))
	return err
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
