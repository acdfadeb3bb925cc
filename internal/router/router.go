package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
	"github.com/ovaphlow/pitchfork/service-social/internal/post"
	"github.com/ovaphlow/pitchfork/service-social/internal/user"
	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

type Config struct {
	Addr        string
	CORSOrigins []string
}

func ConfigFromEnv() Config {
	return Config{
		Addr:        utilities.EnvString("HTTP_ADDR", "0.0.0.0:8431"),
		CORSOrigins: utilities.EnvList("CORS_ORIGINS", nil),
	}
}

// Deps are the collaborators the routes are served by.
type Deps struct {
	Resolver *auth.Resolver
	Renewer  *auth.Renewer
	Users    *user.Handler
	Posts    *post.Handler
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware tags each request with an id (echoed in X-Request-ID)
// and logs it once served.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = utilities.NewKSUID()
			}
			w.Header().Set("X-Request-ID", reqID)

			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", lrw.size,
			}
			if status >= http.StatusInternalServerError {
				logger.Warnw("http request", fields...)
				return
			}
			logger.Debugw("http request", fields...)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer-when-downgrade")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// API responses are JSON only
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the health, auth, user and post endpoints.
//
// Every request passes token resolution first; the renewal hook sits inside
// it so a renewed pair can be attached to whatever the handler produced.
func RegisterRoutes(logger *zap.SugaredLogger, cfg Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{auth.HeaderAccessToken, auth.HeaderRefreshToken, "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Resolver, logger))
		r.Use(deps.Renewer.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", deps.Users.Signup)
			r.Post("/login", deps.Users.Login)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", deps.Users.Me)
			r.Put("/{id}", deps.Users.Update)
			r.Patch("/{id}", deps.Users.Update)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", deps.Posts.List)
			r.Post("/", deps.Posts.Create)
			r.Get("/like", deps.Posts.Like)
			r.Get("/unlike", deps.Posts.Unlike)
			r.Get("/{id}", deps.Posts.Get)
			r.Put("/{id}", deps.Posts.Update)
			r.Patch("/{id}", deps.Posts.Update)
			r.Delete("/{id}", deps.Posts.Delete)
		})
	})

	return r
}
