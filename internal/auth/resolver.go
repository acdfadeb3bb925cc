package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/token"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type Outcome int

const (
	Anonymous Outcome = iota
	Authenticated
	Rejected
	// Unavailable means the token was sound but the identity store failed.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	default:
		return "anonymous"
	}
}

// Reason explains a rejection. It is logged, never sent to clients.
type Reason string

const (
	ReasonInvalidToken   Reason = "INVALID_TOKEN"
	ReasonWrongTokenType Reason = "WRONG_TOKEN_TYPE"
	ReasonExpired        Reason = "EXPIRED"
	ReasonUnknownSubject Reason = "UNKNOWN_SUBJECT"
)

// Resolution is the result of resolving one Authorization header.
type Resolution struct {
	Outcome  Outcome
	Reason   Reason
	Identity *entity.User
	// Err is the store failure behind an Unavailable outcome.
	Err error
}

// IdentityStore looks up live users by id.
type IdentityStore interface {
	GetActiveByID(ctx context.Context, id int64) (*entity.User, error)
}

// Resolver turns a bearer token into an identity.
type Resolver struct {
	codec  *token.Codec
	store  IdentityStore
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewResolver(codec *token.Codec, store IdentityStore, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{codec: codec, store: store, now: time.Now, logger: logger}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}

// Resolve classifies the Authorization header value. Only an unexpired access
// token naming a live user is Authenticated.
func (r *Resolver) Resolve(ctx context.Context, header string) Resolution {
	raw, ok := BearerToken(header)
	if !ok {
		return Resolution{Outcome: Anonymous}
	}
	tok, err := r.codec.Decode(raw)
	if err != nil {
		return rejected(ReasonInvalidToken)
	}
	if tok.Type != token.Access {
		return rejected(ReasonWrongTokenType)
	}
	if token.CheckExpiry(tok, r.now()) == token.Expired {
		return rejected(ReasonExpired)
	}
	u, err := r.store.GetActiveByID(ctx, tok.Subject)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return rejected(ReasonUnknownSubject)
		}
		r.logger.Warnw("identity lookup failed", "subject", tok.Subject, "err", err)
		return Resolution{Outcome: Unavailable, Err: err}
	}
	return Resolution{Outcome: Authenticated, Identity: u}
}

func rejected(reason Reason) Resolution {
	return Resolution{Outcome: Rejected, Reason: reason}
}
