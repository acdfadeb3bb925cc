package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

// Type distinguishes credentials that authorize resource access from the
// ones only used as renewal input.
type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

var (
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrMalformed        = errors.New("token: malformed")
)

// Token is the decoded, immutable view of a signed credential.
type Token struct {
	ID        string
	Subject   int64
	Type      Type
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Status is the outcome of CheckExpiry.
type Status int

const (
	Valid Status = iota
	Expired
)

type claims struct {
	TokenType Type  `json:"token_type"`
	UserID    int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with the process-wide secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewCodec(cfg Config) *Codec {
	return &Codec{
		secret:     []byte(cfg.SigningKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		// expiry is checked by callers, so claim validation is off here
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// TTL returns the lifetime for tokens of type t.
func (c *Codec) TTL(t Type) time.Duration {
	if t == Refresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Encode builds and signs a token for subject. Times are truncated to whole
// seconds, the precision the wire format carries.
func (c *Codec) Encode(subject int64, typ Type, now time.Time) (string, Token, error) {
	if typ != Access && typ != Refresh {
		return "", Token{}, fmt.Errorf("encode: unknown token type %q", typ)
	}
	iat := time.Unix(now.Unix(), 0)
	tok := Token{
		ID:        ksuid.New().String(),
		Subject:   subject,
		Type:      typ,
		IssuedAt:  iat,
		ExpiresAt: iat.Add(c.TTL(typ)),
	}
	cl := claims{
		TokenType: typ,
		UserID:    subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.ID,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", Token{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return raw, tok, nil
}

// Decode verifies the signature and structure of raw. It never rejects a token
// for being expired.
func (c *Codec) Decode(raw string) (Token, error) {
	var cl claims
	_, err := c.parser.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Token{}, ErrInvalidSignature
		}
		return Token{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if cl.TokenType != Access && cl.TokenType != Refresh {
		return Token{}, fmt.Errorf("%w: token_type %q", ErrMalformed, cl.TokenType)
	}
	if cl.UserID == 0 || cl.ExpiresAt == nil || cl.IssuedAt == nil {
		return Token{}, fmt.Errorf("%w: missing claims", ErrMalformed)
	}
	return Token{
		ID:        cl.ID,
		Subject:   cl.UserID,
		Type:      cl.TokenType,
		IssuedAt:  cl.IssuedAt.Time,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// CheckExpiry reports whether tok is still valid at asOf. A token expires at
// the instant ExpiresAt is reached.
func CheckExpiry(tok Token, asOf time.Time) Status {
	if asOf.Before(tok.ExpiresAt) {
		return Valid
	}
	return Expired
}

// DueForRenewal reports whether tok expires before now+lookAhead.
func DueForRenewal(tok Token, now time.Time, lookAhead time.Duration) bool {
	return CheckExpiry(tok, now.Add(lookAhead)) == Expired
}
