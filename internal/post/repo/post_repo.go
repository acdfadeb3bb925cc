package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-social/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-social/pkg/database"
)

const postColumns = `id, author_id, message, slug, created_at, updated_at, deleted_at, is_deleted`

// PostRepo provides data access for posts and their like-sets.
type PostRepo struct {
	db *sqlx.DB
}

func NewPostRepo(db *sqlx.DB) *PostRepo { return &PostRepo{db: db} }

// EnsureTable creates posts and post_likes if they do not exist. The users
// table must exist first.
func (r *PostRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS posts (
  id BIGINT PRIMARY KEY,
  author_id BIGINT NOT NULL REFERENCES users(id),
  message VARCHAR(2048) NOT NULL,
  slug VARCHAR(255),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  deleted_at TIMESTAMPTZ,
  is_deleted BOOLEAN NOT NULL DEFAULT false,
  CONSTRAINT posts_slug_key UNIQUE (slug)
);
CREATE INDEX IF NOT EXISTS idx_posts_active ON posts(created_at DESC) WHERE is_deleted = false;
CREATE TABLE IF NOT EXISTS post_likes (
  post_id BIGINT NOT NULL REFERENCES posts(id),
  user_id BIGINT NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (post_id, user_id)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Insert stores p with its chosen slug. A slug collision is ErrSlugTaken so
// the caller can retry with another candidate.
func (r *PostRepo) Insert(ctx context.Context, p *entity.Post) error {
	const q = `INSERT INTO posts (id, author_id, message, slug)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, q, p.ID, p.AuthorID, p.Message, p.Slug).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "posts_slug_key") {
			return entity.ErrSlugTaken
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetActive returns a post unless it is missing or soft deleted.
func (r *PostRepo) GetActive(ctx context.Context, id int64) (*entity.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id=$1 AND is_deleted=false`
	var p entity.Post
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListActive returns live posts, newest first.
func (r *PostRepo) ListActive(ctx context.Context) ([]*entity.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE is_deleted=false ORDER BY created_at DESC, id DESC`
	var posts []*entity.Post
	if err := r.db.SelectContext(ctx, &posts, q); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// UpdateMessage rewrites the message of a live post and bumps updated_at.
func (r *PostRepo) UpdateMessage(ctx context.Context, id int64, message string) (*entity.Post, error) {
	q := `UPDATE posts SET message=$2, updated_at=NOW()
		WHERE id=$1 AND is_deleted=false RETURNING ` + postColumns
	var p entity.Post
	if err := r.db.GetContext(ctx, &p, q, id, message); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SoftDelete persists a transition already applied with Post.SoftDelete.
func (r *PostRepo) SoftDelete(ctx context.Context, p *entity.Post) error {
	if p.State() != entity.Deleted || p.DeletedAt == nil {
		return fmt.Errorf("soft delete post %d: not in deleted state", p.ID)
	}
	const q = `UPDATE posts SET is_deleted=true, deleted_at=$2, updated_at=NOW()
		WHERE id=$1 AND is_deleted=false`
	res, err := r.db.ExecContext(ctx, q, p.ID, *p.DeletedAt)
	if err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// AddLike inserts into the like-set; liking twice is a no-op.
func (r *PostRepo) AddLike(ctx context.Context, postID, userID int64) error {
	const q = `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, postID, userID)
	return err
}

// RemoveLike deletes from the like-set; unliking twice is a no-op.
func (r *PostRepo) RemoveLike(ctx context.Context, postID, userID int64) error {
	const q = `DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2`
	_, err := r.db.ExecContext(ctx, q, postID, userID)
	return err
}

// Likes returns the liker ids of each post, in like order.
func (r *PostRepo) Likes(ctx context.Context, postIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT post_id, user_id FROM post_likes WHERE post_id IN (?) ORDER BY created_at, user_id`, postIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		PostID int64 `db:"post_id"`
		UserID int64 `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select likes: %w", err)
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.UserID)
	}
	return out, nil
}
