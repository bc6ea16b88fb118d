package server

import (
	"context"
	"net/http"
	"time"

	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
)

// MiddlewareFunc wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware applies middlewares right to left, so the first listed
// middleware is the outermost
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// responseWriterDelegator captures the status code for logging
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (d *responseWriterDelegator) WriteHeader(status int) {
	if !d.wroteHeader {
		d.status = status
		d.wroteHeader = true
	}
	d.ResponseWriter.WriteHeader(status)
}

func (d *responseWriterDelegator) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.status = http.StatusOK
		d.wroteHeader = true
	}
	return d.ResponseWriter.Write(b)
}

// LoggerMiddleware logs each request with its outcome
func LoggerMiddleware(component string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			delegator := &responseWriterDelegator{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(delegator, r)

			log.LogDebugWithFields(component, "Request handled", map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      delegator.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

// SecurityHeadersMiddleware sets browser hardening headers on every response.
// The storefront is same-origin only, so there is no CORS surface.
func SecurityHeadersMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverMiddleware converts handler panics into 500s instead of tearing
// down the connection
func RecoverMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.LogErrorWithFields("server", "Handler panicked", map[string]any{
						"panic": rec,
						"path":  r.URL.Path,
					})
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

const (
	sessionIDKey contextKey = "sessionID"
	sessionKey   contextKey = "session"
)

// SessionMiddleware resolves the browser session cookie and attaches the
// live session to the request context. Requests without a valid cookie
// carry no session and read as Anonymous.
func SessionMiddleware(cookies *cookie.Manager, manager *session.Manager) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sessionID := cookies.GetSession(r); sessionID != "" {
				ctx = context.WithValue(ctx, sessionIDKey, sessionID)
				if sess, ok := manager.Get(sessionID); ok {
					ctx = context.WithValue(ctx, sessionKey, sess)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the request's browser session ID, or ""
func SessionID(r *http.Request) string {
	if id, ok := r.Context().Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// SessionFrom returns the request's live session, or nil
func SessionFrom(r *http.Request) *session.Session {
	if sess, ok := r.Context().Value(sessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}

// SnapshotFrom reads the request's session snapshot, fresh at call time
func SnapshotFrom(r *http.Request) session.Snapshot {
	if sess := SessionFrom(r); sess != nil {
		return sess.Observer.Snapshot()
	}
	return session.Anonymous
}

// requestSnapshotSource adapts a request to the gateway's SnapshotSource,
// re-reading the live session on every call
type requestSnapshotSource struct {
	r *http.Request
}

func (s requestSnapshotSource) Snapshot() session.Snapshot {
	return SnapshotFrom(s.r)
}
