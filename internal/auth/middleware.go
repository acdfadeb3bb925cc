package auth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

type ctxKey struct{}

func WithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}

// ResolutionFrom returns the stored resolution, Anonymous when there is none.
func ResolutionFrom(ctx context.Context) Resolution {
	res, _ := ctx.Value(ctxKey{}).(Resolution)
	return res
}

// IdentityFrom returns the authenticated user of the request, if any.
func IdentityFrom(ctx context.Context) (*entity.User, bool) {
	res := ResolutionFrom(ctx)
	if res.Outcome != Authenticated || res.Identity == nil {
		return nil, false
	}
	return res.Identity, true
}

// RequireIdentity is IdentityFrom for handlers that cannot serve anonymous
// callers. A failed identity lookup is an internal error, not a bad credential.
func RequireIdentity(ctx context.Context) (*entity.User, error) {
	if res := ResolutionFrom(ctx); res.Outcome == Unavailable {
		return nil, apperror.Internal(fmt.Errorf("resolve identity: %w", res.Err))
	}
	u, ok := IdentityFrom(ctx)
	if !ok {
		return nil, apperror.Unauthenticated()
	}
	return u, nil
}

// Authenticate resolves the bearer token of every request and stores the
// outcome in the context. It never writes a response itself.
func Authenticate(resolver *Resolver, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if res.Outcome == Rejected {
				logger.Debugw("bearer token rejected", "reason", res.Reason, "path", r.URL.Path)
			}
			next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))
		})
	}
}
