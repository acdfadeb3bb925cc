package auth

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/token"
)

const (
	HeaderAccessToken  = "set-auth-token"
	HeaderRefreshToken = "set-auth-refresh-token"
)

// SetTokenHeaders attaches both halves of pair to h.
func SetTokenHeaders(h http.Header, pair token.Pair) {
	h.Set(HeaderAccessToken, pair.Access)
	h.Set(HeaderRefreshToken, pair.Refresh)
}

// Response is a handler response held back until the renewal hook has run.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Renewer reissues token pairs for callers whose presented token is close to
// expiry.
type Renewer struct {
	codec     *token.Codec
	issuer    *token.Issuer
	lookAhead time.Duration
	now       func() time.Time
	logger    *zap.SugaredLogger
}

func NewRenewer(codec *token.Codec, issuer *token.Issuer, lookAhead time.Duration, logger *zap.SugaredLogger) *Renewer {
	return &Renewer{codec: codec, issuer: issuer, lookAhead: lookAhead, now: time.Now, logger: logger}
}

// Apply inspects the inbound bearer token of r and, when it is due for
// renewal, adds a fresh pair to resp's headers. Status and body are never
// touched and failures leave resp as it was.
func (m *Renewer) Apply(r *http.Request, resp *Response) (out *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Errorw("token renewal panicked", "panic", rec)
			out = resp
		}
	}()

	raw, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return resp
	}
	tok, err := m.codec.Decode(raw)
	if err != nil {
		return resp
	}
	if !token.DueForRenewal(tok, m.now(), m.lookAhead) {
		return resp
	}
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		m.logger.Debugw("token renewal skipped: no identity", "path", r.URL.Path)
		return resp
	}
	// login and signup already answer with their own pair
	if resp.Header.Get(HeaderAccessToken) != "" {
		return resp
	}
	pair, err := m.issuer.Issue(identity.ID)
	if err != nil {
		m.logger.Warnw("token renewal failed", "user_id", identity.ID, "err", err)
		return resp
	}
	SetTokenHeaders(resp.Header, pair)
	return resp
}

// Middleware buffers the downstream response, runs Apply over it and then
// writes it out.
func (m *Renewer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := &bufferedWriter{header: make(http.Header)}
		next.ServeHTTP(buf, r)

		resp := m.Apply(r, buf.response())
		dst := w.Header()
		for k, v := range resp.Header {
			dst[k] = v
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	})
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) response() *Response {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{Status: status, Header: b.header, Body: b.body.Bytes()}
}
