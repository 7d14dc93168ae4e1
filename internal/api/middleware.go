package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Header names used by the middleware.
const (
	HeaderSessionKey     = "X-Session-Key"
	HeaderPlayerIdentity = "X-Player-Identity"
	HeaderAdminKey       = "X-Admin-Key"
)

// Identity resolves the caller's player identity and stores it in the request
// context. An authenticating proxy may pass a raw identity via
// X-Player-Identity; everyone else is a guest keyed by X-Session-Key. A guest
// without a session key gets a fresh one, echoed in the response header so the
// client can reuse it and keep a stable identity.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := r.Header.Get(HeaderPlayerIdentity)
			if identity == "" {
				key := r.Header.Get(HeaderSessionKey)
				if key == "" {
					key = newSessionKey()
					w.Header().Set(HeaderSessionKey, key)
				}
				identity = guestIdentity(key)
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newSessionKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(buf)
}

func guestIdentity(key string) string {
	if len(key) > 8 {
		key = key[:8]
	}
	return "Guest_" + key
}

// GetIdentity returns the player identity from the request context.
func GetIdentity(ctx context.Context) string {
	identity, _ := ctx.Value(identityContextKey).(string)
	return identity
}

// MustGetIdentity returns the player identity or panics.
func MustGetIdentity(ctx context.Context) string {
	identity := GetIdentity(ctx)
	if identity == "" {
		panic("no identity in context, identity middleware not applied?")
	}
	return identity
}

// AdminAuth guards admin routes with a shared key. An empty configured key
// disables the admin surface entirely.
func AdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				WriteError(w, NewUnauthorizedError())
				return
			}
			provided := r.Header.Get(HeaderAdminKey)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
				WriteError(w, NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Logging logs each request with method, path, status and duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recovery converts panics into 500 responses.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					WriteError(w, errPanic)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

var errPanic = &httpError{http.StatusInternalServerError, APIError{CodeStorageFailure, "Internal server error"}}

// Timeout bounds each request's context. Handlers surface the expiry as a
// 504 through the engine's timeout error.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
