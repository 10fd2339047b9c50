package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/service"
	"github.com/msomdec/quill/internal/view"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext returns the caller resolved by OptionalAuth, or
// Anonymous.
func IdentityFromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityContextKey).(domain.Identity)
	return id
}

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *domain.User {
	return IdentityFromContext(ctx).User
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// RequestScope pins one store connection to each request and releases it
// when the request finishes, however the handler exits.
func RequestScope(db domain.Scoper, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, release, err := db.Acquire(r.Context())
		if err != nil {
			slog.Error("acquire request connection", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer release()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth resolves the caller from the session cookie on every request.
// Requests without a valid session proceed as Anonymous; only a store
// failure stops the request.
func OptionalAuth(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}

		identity, err := auth.ResolveIdentity(r.Context(), token)
		if err != nil {
			slog.Error("resolve identity", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin guards admin-only handlers. Everyone else gets the same 404
// as a route that does not exist.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.RequireAdmin(IdentityFromContext(r.Context())); err != nil {
			notFound(w, r)
			return
		}
		next(w, r)
	}
}

// SecurityHeaders sets headers that apply to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	csp := "default-src 'self'; " +
		"script-src 'self' 'unsafe-eval' https://cdn.jsdelivr.net; " +
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
		"img-src 'self' https: data:; " +
		"connect-src 'self'; frame-ancestors 'none'"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging. It forwards
// Flush so streaming handlers keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if err := http.NewResponseController(s.ResponseWriter).Flush(); err != nil {
		slog.Debug("flush response", "error", err)
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// LogRequests logs one line per request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				slog.Error("panic serving request", "method", r.Method, "path", r.URL.Path, "panic", fmt.Sprint(p))
				if rec.status == 0 {
					http.Error(rec, "Internal Server Error", http.StatusInternalServerError)
				}
			}
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

// Wrap applies the middleware stack shared by every route.
func Wrap(mux http.Handler, db domain.Scoper, auth *service.AuthService) http.Handler {
	return LogRequests(SecurityHeaders(RequestScope(db, OptionalAuth(auth, mux))))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, view.ErrorPage(baseData(w, r), http.StatusNotFound, "Not Found", "The page you are looking for does not exist."))
}

func serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	render(w, r, http.StatusInternalServerError, view.ErrorPage(baseData(w, r), http.StatusInternalServerError, "Something went wrong", "An unexpected error occurred. Please try again."))
}
