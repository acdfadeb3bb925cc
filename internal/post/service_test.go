package post

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/post/entity"
	userentity "github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type memPosts struct {
	mu    sync.Mutex
	posts map[int64]*entity.Post
	slugs map[string]bool
	likes map[int64][]int64
	// takenSlugs are reported as collisions regardless of content
	takenSlugs map[string]bool
	failInsert error
}

func newMemPosts() *memPosts {
	return &memPosts{
		posts:      make(map[int64]*entity.Post),
		slugs:      make(map[string]bool),
		likes:      make(map[int64][]int64),
		takenSlugs: make(map[string]bool),
	}
}

func (m *memPosts) Insert(_ context.Context, p *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	if p.Slug != nil && (m.slugs[*p.Slug] || m.takenSlugs[*p.Slug]) {
		return entity.ErrSlugTaken
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	m.posts[p.ID] = &cp
	m.slugs[*p.Slug] = true
	return nil
}

func (m *memPosts) GetActive(_ context.Context, id int64) (*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.IsDeleted {
		return nil, entity.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) ListActive(context.Context) ([]*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Post
	for _, p := range m.posts {
		if !p.IsDeleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memPosts) UpdateMessage(_ context.Context, id int64, message string) (*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.IsDeleted {
		return nil, entity.ErrNotFound
	}
	p.Message = message
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (m *memPosts) SoftDelete(_ context.Context, p *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.posts[p.ID]
	if !ok || stored.IsDeleted {
		return entity.ErrNotFound
	}
	stored.IsDeleted = p.IsDeleted
	stored.DeletedAt = p.DeletedAt
	return nil
}

func (m *memPosts) AddLike(_ context.Context, postID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.likes[postID] {
		if id == userID {
			return nil
		}
	}
	m.likes[postID] = append(m.likes[postID], userID)
	return nil
}

func (m *memPosts) RemoveLike(_ context.Context, postID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.likes[postID]
	for i, id := range ids {
		if id == userID {
			m.likes[postID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memPosts) Likes(_ context.Context, postIDs []int64) (map[int64][]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]int64)
	for _, id := range postIDs {
		out[id] = append([]int64(nil), m.likes[id]...)
	}
	return out, nil
}

type metaDir struct {
	rows map[int64]*userentity.MetaData
	err  error
}

func (m metaDir) Get(_ context.Context, userID int64) (*userentity.MetaData, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[userID], nil
}

type userDir map[int64]*userentity.User

func (d userDir) GetByIDs(_ context.Context, ids []int64) (map[int64]*userentity.User, error) {
	out := make(map[int64]*userentity.User)
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

var (
	alice = &userentity.User{ID: 1, Email: "alice@x.com"}
	bob   = &userentity.User{ID: 2, Email: "bob@x.com"}
)

func newTestService() (*PostService, *memPosts) {
	store := newMemPosts()
	svc := NewPostService(store, userDir{1: alice, 2: bob}, metaDir{}, zap.NewNop().Sugar())
	svc.suffix = func() string { return "zzzzz" }
	return svc, store
}

func statusOf(err error) int { return apperror.As(err).StatusCode() }

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, "hello")
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	_, err = svc.Create(ctx, alice, "   ")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	v, err := svc.Create(ctx, alice, "Hello World")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", v.Author.Email)
	require.NotNil(t, v.Slug)
	assert.Equal(t, "hello-world", *v.Slug)
	assert.Empty(t, v.Likes)
	assert.False(t, v.IsDeleted)
}

func TestCreateRetriesSlugCollisions(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, "same")
	require.NoError(t, err)
	assert.Equal(t, "same", *first.Slug)

	second, err := svc.Create(ctx, bob, "same")
	require.NoError(t, err)
	assert.Equal(t, "same-zzzzz", *second.Slug)

	// bare and suffixed forms all taken: falls through to the id-prefixed form
	third, err := svc.Create(ctx, bob, "same")
	require.NoError(t, err)
	assert.Regexp(t, `^\d+-same-zzzzz$`, *third.Slug)
	assert.Len(t, store.posts, 3)
}

func TestCreateFailsWhenSlugsExhausted(t *testing.T) {
	svc, store := newTestService()
	store.takenSlugs["busy"] = true
	store.takenSlugs["busy-fixed"] = true
	calls := 0
	svc.suffix = func() string {
		calls++
		return "fixed"
	}

	v, err := svc.Create(context.Background(), alice, "busy")
	require.NoError(t, err)
	assert.Regexp(t, `^\d+-busy-fixed$`, *v.Slug)
	assert.Equal(t, entity.MaxSlugAttempts-1, calls)

	store.failInsert = entity.ErrSlugTaken
	_, err = svc.Create(context.Background(), alice, "busy")
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
}

func TestCreateLongMessageGetsBoundedSlug(t *testing.T) {
	svc, _ := newTestService()
	msg := strings.Repeat("lorem ipsum dolor ", 110)

	v, err := svc.Create(context.Background(), alice, msg)
	require.NoError(t, err)
	assert.Equal(t, msg, v.Message)
	require.NotNil(t, v.Slug)
	assert.LessOrEqual(t, len(*v.Slug), entity.MaxSlugBaseBytes)
	assert.True(t, strings.HasPrefix(*v.Slug, "lorem-ipsum-dolor-"))
}

func TestPrivateViewCarriesAuthorMetaData(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.meta = metaDir{rows: map[int64]*userentity.MetaData{
		1: {UserID: 1, GeoData: []byte(`{"country_code":"SE"}`), PublicHolidays: []byte(`[]`)},
	}}

	v, err := svc.Create(ctx, alice, "with meta")
	require.NoError(t, err)
	assert.JSONEq(t, `{"country_code":"SE"}`, string(v.Author.MetaData.GeoData))
	assert.JSONEq(t, `[]`, string(v.Author.MetaData.PublicHolidays))

	p, err := svc.AuthorizeWrite(ctx, alice, v.ID)
	require.NoError(t, err)
	updated, err := svc.Update(ctx, alice, p, "edited")
	require.NoError(t, err)
	assert.JSONEq(t, `{"country_code":"SE"}`, string(updated.Author.MetaData.GeoData))

	// a failing metadata store degrades to an empty block
	svc.meta = metaDir{err: errors.New("db down")}
	v, err = svc.Create(ctx, alice, "no meta")
	require.NoError(t, err)
	assert.Nil(t, v.Author.MetaData.GeoData)
}

func TestCreateStoreFailure(t *testing.T) {
	svc, store := newTestService()
	store.failInsert = errors.New("db down")
	_, err := svc.Create(context.Background(), alice, "x")
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
}

func TestWriteOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, alice, "mine")
	require.NoError(t, err)

	_, err = svc.AuthorizeWrite(ctx, nil, v.ID)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	_, err = svc.AuthorizeWrite(ctx, bob, v.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(err))
	_, err = svc.AuthorizeWrite(ctx, bob, 999)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	assert.Equal(t, http.StatusUnauthorized, statusOf(svc.Delete(ctx, nil, v.ID)))
	assert.Equal(t, http.StatusForbidden, statusOf(svc.Delete(ctx, bob, v.ID)))

	p, err := svc.AuthorizeWrite(ctx, alice, v.ID)
	require.NoError(t, err)
	updated, err := svc.Update(ctx, alice, p, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Message)
	assert.Equal(t, "mine", *updated.Slug)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	_, err = svc.Update(ctx, alice, p, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestSoftDeleteHidesPostButKeepsRow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, alice, "short lived")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, v.ID))

	_, err = svc.Get(ctx, v.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	row := store.posts[v.ID]
	require.NotNil(t, row)
	assert.True(t, row.IsDeleted)
	assert.NotNil(t, row.DeletedAt)

	assert.Equal(t, http.StatusNotFound, statusOf(svc.Delete(ctx, alice, v.ID)))
}

func TestLikeUnlikeIsIdempotent(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, alice, "like me")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.Like(ctx, bob, v.ID)
		require.NoError(t, err)
		assert.Len(t, got.Likes, 1)
	}
	for i := 0; i < 2; i++ {
		got, err := svc.Unlike(ctx, bob, v.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Likes)
	}
	assert.Empty(t, store.likes[v.ID])

	_, err = svc.Like(ctx, nil, v.ID)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	_, err = svc.Like(ctx, bob, 12345)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestConcurrentLikesNeverDuplicate(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, alice, "busy post")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := alice
			if i%2 == 0 {
				u = bob
			}
			_, _ = svc.Like(ctx, u, v.ID)
		}(i)
	}
	wg.Wait()
	assert.ElementsMatch(t, []int64{1, 2}, store.likes[v.ID])
}

func TestListRendersAuthorsAndLikes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	first := "Bob"
	bob.FirstName = &first
	t.Cleanup(func() { bob.FirstName = nil })

	v, err := svc.Create(ctx, bob, "from bob")
	require.NoError(t, err)
	_, err = svc.Like(ctx, alice, v.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", *list[0].Author.FirstName)
	assert.Len(t, list[0].Likes, 1)
}
