package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/token"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type fakeStore struct {
	users map[int64]*entity.User
	err   error
}

func (f *fakeStore) GetActiveByID(_ context.Context, id int64) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return nil, entity.ErrNotFound
	}
	return u, nil
}

func newCodec() *token.Codec {
	return token.NewCodec(token.Config{
		SigningKey: "auth-test-secret",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
}

func newStore(users ...*entity.User) *fakeStore {
	s := &fakeStore{users: make(map[int64]*entity.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func mustEncode(t *testing.T, c *token.Codec, sub int64, typ token.Type, at time.Time) string {
	t.Helper()
	raw, _, err := c.Encode(sub, typ, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

var errDBDown = errors.New("db down")

var nop = zap.NewNop().Sugar()
