package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type ownedThing struct{ owner int64 }

func (o ownedThing) OwnerID() int64 { return o.owner }

func TestVerbClassOf(t *testing.T) {
	t.Parallel()
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		assert.Equal(t, Read, VerbClassOf(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.Equal(t, Write, VerbClassOf(m), m)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	alice := &entity.User{ID: 1}
	bob := &entity.User{ID: 2}
	post := ownedThing{owner: alice.ID}

	cases := []struct {
		name     string
		identity *entity.User
		res      Resource
		verb     VerbClass
		want     Decision
	}{
		{"anonymous read", nil, post, Read, Allow},
		{"stranger read", bob, post, Read, Allow},
		{"anonymous write", nil, post, Write, DenyUnauthenticated},
		{"stranger write", bob, post, Write, DenyForbidden},
		{"owner write", alice, post, Write, Allow},
		{"self profile write", alice, alice, Write, Allow},
		{"other profile write", bob, alice, Write, DenyForbidden},
		{"anonymous profile write", nil, alice, Write, DenyUnauthenticated},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Authorize(tc.identity, tc.res, tc.verb), tc.name)
	}
}

func TestDecisionErr(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Allow.Err())
	assert.Equal(t, http.StatusUnauthorized, apperror.As(DenyUnauthenticated.Err()).StatusCode())
	assert.Equal(t, http.StatusForbidden, apperror.As(DenyForbidden.Err()).StatusCode())
}
