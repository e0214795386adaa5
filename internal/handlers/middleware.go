package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/security"
	"admindash/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey      ContextKey = "user"
	SessionIDContextKey ContextKey = "session_id"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	cookies     *security.SessionCookies
	limiter     security.AttemptLimiter
	trustProxy  bool
	log         logging.Logger
}

// NewMiddleware creates a new middleware instance. A nil limiter disables
// per-IP rate limiting.
func NewMiddleware(authService *service.AuthService, cookies *security.SessionCookies, limiter security.AttemptLimiter, log logging.Logger) *Middleware {
	if limiter == nil {
		limiter = security.NoopLimiter{}
	}
	return &Middleware{
		authService: authService,
		cookies:     cookies,
		limiter:     limiter,
		log:         log,
	}
}

// TrustProxy makes RateLimit key on X-Forwarded-For and X-Real-IP. Enable it
// only when a reverse proxy that sets those headers fronts the server.
func (m *Middleware) TrustProxy(trust bool) *Middleware {
	m.trustProxy = trust
	return m
}

// resolve looks up the user behind the session cookie. It returns
// ErrUnauthenticated when there is no usable session.
func (m *Middleware) resolve(w http.ResponseWriter, r *http.Request) (*models.User, string, error) {
	sessionID, ok := m.cookies.Read(r)
	if !ok {
		if _, err := r.Cookie(m.cookies.Name); err == nil {
			// Present but forged, tampered or expired
			m.cookies.Clear(w, r)
		}
		return nil, "", service.ErrUnauthenticated
	}

	user, err := m.authService.Authenticate(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			m.cookies.Clear(w, r)
		}
		return nil, "", err
	}
	return user, sessionID, nil
}

// RequireAuth is middleware that requires a valid session
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := m.resolve(w, r)
		if err != nil {
			respondWithError(w, r, m.log, err)
			return
		}

		// Add user to context
		next(w, r.WithContext(withUser(r.Context(), user, sessionID)))
	}
}

// RequireAdmin is middleware that requires a valid session of an admin
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if err := service.RequireAdmin(GetUserFromContext(r.Context())); err != nil {
			respondWithError(w, r, m.log, err)
			return
		}
		next(w, r)
	})
}

// OptionalAuth attaches the user when a valid session exists and lets
// anonymous requests through.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := m.resolve(w, r)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				m.log.Error(r.Context(), "failed to resolve session", "error", err)
			}
			next(w, r)
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user, sessionID)))
	}
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, err := m.limiter.Allow(r.Context(), "ip:"+security.GetClientIP(r, m.trustProxy))
		if err != nil {
			m.log.Warn(r.Context(), "rate limiter unavailable", "error", err)
		} else if !allowed {
			writeMessage(w, http.StatusTooManyRequests, MsgTooManyRequests)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests
func Logging(log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"ip", security.GetClientIP(r, false),
			"forwarded_for", r.Header.Get("X-Forwarded-For"),
		)
	})
}

func withUser(ctx context.Context, user *models.User, sessionID string) context.Context {
	ctx = context.WithValue(ctx, UserContextKey, user)
	return context.WithValue(ctx, SessionIDContextKey, sessionID)
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionIDFromContext retrieves the session ID from the request context
func GetSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDContextKey).(string)
	return id
}
