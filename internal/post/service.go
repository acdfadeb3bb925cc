package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
	"github.com/ovaphlow/pitchfork/service-social/internal/post/entity"
	userentity "github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

// Store is satisfied by *repo.PostRepo.
type Store interface {
	Insert(ctx context.Context, p *entity.Post) error
	GetActive(ctx context.Context, id int64) (*entity.Post, error)
	ListActive(ctx context.Context) ([]*entity.Post, error)
	UpdateMessage(ctx context.Context, id int64, message string) (*entity.Post, error)
	SoftDelete(ctx context.Context, p *entity.Post) error
	AddLike(ctx context.Context, postID, userID int64) error
	RemoveLike(ctx context.Context, postID, userID int64) error
	Likes(ctx context.Context, postIDs []int64) (map[int64][]int64, error)
}

// Users resolves authors and likers; *repo.UserRepo satisfies it.
type Users interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*userentity.User, error)
}

// MetaDataReader is satisfied by *repo.MetaDataRepo.
type MetaDataReader interface {
	Get(ctx context.Context, userID int64) (*userentity.MetaData, error)
}

type PostService struct {
	store  Store
	users  Users
	meta   MetaDataReader
	now    func() time.Time
	suffix func() string
	logger *zap.SugaredLogger
}

func NewPostService(store Store, users Users, meta MetaDataReader, logger *zap.SugaredLogger) *PostService {
	return &PostService{
		store:  store,
		users:  users,
		meta:   meta,
		now:    time.Now,
		suffix: func() string { return utilities.RandomSuffix(5) },
		logger: logger,
	}
}

// Create stores a new post authored by identity, allocating its slug.
func (s *PostService) Create(ctx context.Context, identity *userentity.User, message string) (entity.PrivateView, error) {
	if identity == nil {
		return entity.PrivateView{}, apperror.Unauthenticated()
	}
	if strings.TrimSpace(message) == "" {
		return entity.PrivateView{}, apperror.Field("message", "This field may not be blank.")
	}
	p := &entity.Post{ID: utilities.NextID(), AuthorID: identity.ID, Message: message}
	if err := s.insertWithSlug(ctx, p); err != nil {
		return entity.PrivateView{}, err
	}
	return p.Private(identity, s.authorMeta(ctx, identity), nil), nil
}

func (s *PostService) insertWithSlug(ctx context.Context, p *entity.Post) error {
	base := entity.Slugify(p.Message)
	for attempt := 0; attempt < entity.MaxSlugAttempts; attempt++ {
		slug := entity.SlugCandidate(p.ID, base, attempt, s.suffix)
		p.Slug = &slug
		err := s.store.Insert(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entity.ErrSlugTaken) {
			return apperror.Internal(err)
		}
		s.logger.Debugw("slug taken", "post_id", p.ID, "slug", slug, "attempt", attempt)
	}
	return apperror.Internal(fmt.Errorf("post %d: no free slug after %d attempts", p.ID, entity.MaxSlugAttempts))
}

// List returns the public feed.
func (s *PostService) List(ctx context.Context) ([]entity.PublicView, error) {
	posts, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.publicViews(ctx, posts)
}

func (s *PostService) Get(ctx context.Context, id int64) (entity.PublicView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return entity.PublicView{}, err
	}
	return s.publicView(ctx, p)
}

// Update replaces the message of p, which must have passed AuthorizeWrite
// for identity.
func (s *PostService) Update(ctx context.Context, identity *userentity.User, p *entity.Post, message string) (entity.PrivateView, error) {
	if strings.TrimSpace(message) == "" {
		return entity.PrivateView{}, apperror.Field("message", "This field may not be blank.")
	}
	p, err := s.store.UpdateMessage(ctx, p.ID, message)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return entity.PrivateView{}, apperror.NotFound("")
		}
		return entity.PrivateView{}, apperror.Internal(err)
	}
	likes, users, err := s.related(ctx, []*entity.Post{p})
	if err != nil {
		return entity.PrivateView{}, err
	}
	return p.Private(identity, s.authorMeta(ctx, identity), pick(users, likes[p.ID])), nil
}

// Delete soft-deletes a post owned by identity.
func (s *PostService) Delete(ctx context.Context, identity *userentity.User, id int64) error {
	p, err := s.AuthorizeWrite(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := p.SoftDelete(s.now()); err != nil {
		return apperror.NotFound("")
	}
	if err := s.store.SoftDelete(ctx, p); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return apperror.NotFound("")
		}
		return apperror.Internal(err)
	}
	s.logger.Infow("post deleted", "post_id", p.ID, "user_id", identity.ID)
	return nil
}

// Like adds identity to the like-set of post id.
func (s *PostService) Like(ctx context.Context, identity *userentity.User, id int64) (entity.PublicView, error) {
	return s.mutateLikes(ctx, identity, id, s.store.AddLike)
}

// Unlike removes identity from the like-set of post id.
func (s *PostService) Unlike(ctx context.Context, identity *userentity.User, id int64) (entity.PublicView, error) {
	return s.mutateLikes(ctx, identity, id, s.store.RemoveLike)
}

func (s *PostService) mutateLikes(ctx context.Context, identity *userentity.User, id int64, op func(context.Context, int64, int64) error) (entity.PublicView, error) {
	if identity == nil {
		return entity.PublicView{}, apperror.Unauthenticated()
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return entity.PublicView{}, err
	}
	if err := op(ctx, p.ID, identity.ID); err != nil {
		return entity.PublicView{}, apperror.Internal(err)
	}
	return s.publicView(ctx, p)
}

// AuthorizeWrite loads a live post and checks identity owns it. Anonymous
// callers are rejected before the lookup.
func (s *PostService) AuthorizeWrite(ctx context.Context, identity *userentity.User, id int64) (*entity.Post, error) {
	if identity == nil {
		return nil, apperror.Unauthenticated()
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(identity, p, auth.Write).Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// authorMeta loads the enrichment shown in the private author view. It is
// optional, so failures render as absent.
func (s *PostService) authorMeta(ctx context.Context, author *userentity.User) *userentity.MetaData {
	meta, err := s.meta.Get(ctx, author.ID)
	if err != nil {
		s.logger.Warnw("load author metadata", "user_id", author.ID, "err", err)
		return nil
	}
	return meta
}

func (s *PostService) load(ctx context.Context, id int64) (*entity.Post, error) {
	p, err := s.store.GetActive(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, apperror.NotFound("")
		}
		return nil, apperror.Internal(err)
	}
	return p, nil
}

func (s *PostService) publicView(ctx context.Context, p *entity.Post) (entity.PublicView, error) {
	views, err := s.publicViews(ctx, []*entity.Post{p})
	if err != nil {
		return entity.PublicView{}, err
	}
	return views[0], nil
}

func (s *PostService) publicViews(ctx context.Context, posts []*entity.Post) ([]entity.PublicView, error) {
	likes, users, err := s.related(ctx, posts)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PublicView, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Public(users[p.AuthorID], pick(users, likes[p.ID])))
	}
	return out, nil
}

// related loads the like-sets of posts and every user they mention.
func (s *PostService) related(ctx context.Context, posts []*entity.Post) (map[int64][]int64, map[int64]*userentity.User, error) {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	likes, err := s.store.Likes(ctx, ids)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}
	seen := make(map[int64]struct{})
	var userIDs []int64
	add := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			userIDs = append(userIDs, id)
		}
	}
	for _, p := range posts {
		add(p.AuthorID)
		for _, uid := range likes[p.ID] {
			add(uid)
		}
	}
	users, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}
	return likes, users, nil
}

func pick(users map[int64]*userentity.User, ids []int64) []*userentity.User {
	out := make([]*userentity.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}
