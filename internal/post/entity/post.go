package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	userentity "github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

var (
	ErrNotFound       = errors.New("post not found")
	ErrSlugTaken      = errors.New("slug already taken")
	ErrAlreadyDeleted = errors.New("post already deleted")
)

// State is the lifecycle position of a post. Deleted is terminal.
type State int

const (
	Active State = iota
	Deleted
)

// Post is a row of the posts table. AuthorID never changes after insert.
type Post struct {
	ID        int64      `db:"id"`
	AuthorID  int64      `db:"author_id"`
	Message   string     `db:"message"`
	Slug      *string    `db:"slug"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
	IsDeleted bool       `db:"is_deleted"`
}

func (p *Post) State() State {
	if p.IsDeleted {
		return Deleted
	}
	return Active
}

// SoftDelete moves p from Active to Deleted. The row is kept.
func (p *Post) SoftDelete(now time.Time) error {
	if p.State() == Deleted {
		return ErrAlreadyDeleted
	}
	p.IsDeleted = true
	p.DeletedAt = &now
	return nil
}

func (p *Post) OwnerID() int64 { return p.AuthorID }

// MaxSlugAttempts bounds slug allocation: the bare slug, four suffixed
// variants and one id-prefixed variant.
const MaxSlugAttempts = 6

// MaxSlugBaseBytes caps the message-derived part of a slug, leaving room for
// the id prefix and suffix within the 255-character column.
const MaxSlugBaseBytes = 200

// Slugify lowercases the trimmed message and joins words with dashes. The
// result is cut at a rune boundary to at most MaxSlugBaseBytes.
func Slugify(message string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(message), " ", "-"))
	if len(slug) <= MaxSlugBaseBytes {
		return slug
	}
	cut := 0
	for i := range slug {
		if i > MaxSlugBaseBytes {
			break
		}
		cut = i
	}
	return strings.TrimRight(slug[:cut], "-")
}

// SlugCandidate returns the slug to try on the given attempt (0-based).
func SlugCandidate(id int64, base string, attempt int, suffix func() string) string {
	switch {
	case attempt == 0:
		return base
	case attempt < MaxSlugAttempts-1:
		return base + "-" + suffix()
	default:
		return fmt.Sprintf("%d-%s-%s", id, base, suffix())
	}
}

// PublicView is the feed representation of a post.
type PublicView struct {
	ID        int64                   `json:"id"`
	Author    userentity.PublicView   `json:"author"`
	Message   string                  `json:"message"`
	Likes     []userentity.PublicView `json:"likes"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// PrivateView is returned to the author after create and update.
type PrivateView struct {
	ID        int64                   `json:"id"`
	Author    userentity.PrivateView  `json:"author"`
	Message   string                  `json:"message"`
	Slug      *string                 `json:"slug"`
	Likes     []userentity.PublicView `json:"likes"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
	DeletedAt *time.Time              `json:"deleted_at"`
	IsDeleted bool                    `json:"is_deleted"`
}

func (p *Post) Public(author *userentity.User, likers []*userentity.User) PublicView {
	v := PublicView{
		ID:        p.ID,
		Message:   p.Message,
		Likes:     publicUsers(likers),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if author != nil {
		v.Author = author.Public()
	}
	return v
}

// Private renders p for its author; meta is the author's enrichment, nil when
// none has landed.
func (p *Post) Private(author *userentity.User, meta *userentity.MetaData, likers []*userentity.User) PrivateView {
	v := PrivateView{
		ID:        p.ID,
		Message:   p.Message,
		Slug:      p.Slug,
		Likes:     publicUsers(likers),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DeletedAt: p.DeletedAt,
		IsDeleted: p.IsDeleted,
	}
	if author != nil {
		v.Author = author.Private(meta)
	}
	return v
}

func publicUsers(users []*userentity.User) []userentity.PublicView {
	out := make([]userentity.PublicView, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
