package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec(Config{
		SigningKey: "test-secret",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	c := testCodec()
	now := time.Date(2024, 3, 1, 12, 30, 15, 987654321, time.UTC)

	for _, typ := range []Type{Access, Refresh} {
		raw, tok, err := c.Encode(42, typ, now)
		require.NoError(t, err)

		got, err := c.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.Subject)
		assert.Equal(t, typ, got.Type)
		assert.Equal(t, tok.ID, got.ID)
		assert.True(t, got.IssuedAt.Equal(now.Truncate(time.Second)), "iat %v", got.IssuedAt)
		assert.True(t, got.ExpiresAt.Equal(now.Truncate(time.Second).Add(c.TTL(typ))), "exp %v", got.ExpiresAt)
		assert.True(t, tok.ExpiresAt.Equal(got.ExpiresAt))
	}
}

func TestDecodeDoesNotEnforceExpiry(t *testing.T) {
	t.Parallel()
	c := testCodec()
	raw, _, err := c.Encode(7, Access, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	got, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Expired, CheckExpiry(got, time.Now()))
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	t.Parallel()
	other := NewCodec(Config{SigningKey: "other-secret", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	raw, _, err := other.Encode(1, Access, time.Now())
	require.NoError(t, err)

	_, err = testCodec().Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	t.Parallel()
	c := testCodec()
	raw, _, err := c.Encode(1, Refresh, time.Now())
	require.NoError(t, err)

	forged, _, err := c.Encode(2, Access, time.Now())
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	forgedParts := strings.Split(forged, ".")
	// swap the payload while keeping the original signature
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	_, err = c.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	c := testCodec()
	for _, raw := range []string{"", "abc", "a.b.c", "not.a.jwt.at.all"} {
		_, err := c.Decode(raw)
		assert.ErrorIs(t, err, ErrMalformed, "raw=%q", raw)
	}
}

func TestDecodeRejectsUnknownTokenType(t *testing.T) {
	t.Parallel()
	cl := jwt.MapClaims{"token_type": "id", "user_id": 3, "iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = testCodec().Decode(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	cl := jwt.MapClaims{"token_type": "access", "user_id": 3, "iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, cl).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = testCodec().Decode(raw)
	assert.Error(t, err)
}

func TestCheckExpiry(t *testing.T) {
	t.Parallel()
	exp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := Token{ExpiresAt: exp}

	assert.Equal(t, Valid, CheckExpiry(tok, exp.Add(-time.Nanosecond)))
	assert.Equal(t, Expired, CheckExpiry(tok, exp))
	assert.Equal(t, Expired, CheckExpiry(tok, exp.Add(time.Second)))
}

func TestDueForRenewal(t *testing.T) {
	t.Parallel()
	now := time.Now()
	fresh := Token{ExpiresAt: now.Add(5 * time.Minute)}
	far := Token{ExpiresAt: now.Add(24 * time.Hour)}

	assert.True(t, DueForRenewal(fresh, now, 6*time.Hour))
	assert.False(t, DueForRenewal(far, now, 6*time.Hour))
	assert.False(t, DueForRenewal(fresh, now, time.Minute))
}
