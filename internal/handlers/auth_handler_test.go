package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/security"
	"admindash/internal/service"
)

func TestRegisterLoginVerifyFlow(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	status, body := srv.do(t, c, http.MethodPost, "/api/register", map[string]string{
		"name": "Alice", "email": "alice@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	assert.Equal(t, "admin", body["role"])
	assert.NotContains(t, body, "password")

	// A fresh client has no session
	anon := srv.client(t)
	status, body = srv.do(t, anon, http.MethodPost, "/api/login", map[string]string{"email": "alice@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["requiresTwoFactor"])
	assert.Equal(t, service.MsgCodeSent, body["message"])
	assert.Equal(t, "alice@x.com", body["email"])

	status, _ = srv.do(t, anon, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "login alone does not create a session")

	status, raw := srv.doRaw(t, anon, http.MethodPost, "/api/verify-2fa", map[string]string{
		"email": "alice@x.com", "code": srv.notifier.code("alice@x.com"),
	})
	require.Equal(t, http.StatusOK, status)
	for _, secret := range []string{"password", "twoFactorCode", "resetPasswordToken"} {
		assert.NotContains(t, string(raw), secret)
	}
	var user map[string]any
	require.NoError(t, json.Unmarshal(raw, &user))
	assert.Equal(t, "Alice", user["name"])

	status, body = srv.do(t, anon, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice@x.com", body["email"])
}

func TestSessionCookieAttributes(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/register",
		strings.NewReader(`{"name":"Alice","email":"alice@x.com","password":"secret1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.Secure, "plain HTTP outside production")

	sessionID, err := srv.cookies.Parse(cookie.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
}

func TestLoginPendingApproval(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Admin", "admin@x.com", "secret1", models.RoleAdmin, true)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, false)
	c := srv.client(t)

	for _, password := range []string{"secret1", "wrong-password"} {
		status, body := srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "bob@x.com", "password": password})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, true, body["notAuthorized"])
	}
	assert.Empty(t, srv.notifier.code("bob@x.com"))
}

func TestLoginFailures(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)

	status, body := srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "bob@x.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", body["message"])

	status, body = srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "ghost@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", body["message"])

	status, body = srv.do(t, c, http.MethodPost, "/api/verify-2fa", map[string]string{"email": "bob@x.com", "code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired verification code", body["message"])
}

func TestRequestBodyChecks(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	status, body := srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "a@x.com", "password": "p", "admin": "true"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, MsgInvalidRequestBody, body["message"])

	form := url.Values{"email": {"a@x.com"}, "password": {"secret1"}}
	resp, err := c.PostForm(srv.URL+"/api/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	status, body = srv.do(t, c, http.MethodPost, "/api/register", map[string]string{"name": "A", "email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "name must be at least 2 characters", body["message"])
}

func TestResendCode(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)

	status, body := srv.do(t, c, http.MethodPost, "/api/resend-2fa", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, service.MsgResendRequested, body["message"])

	status, _ = srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "bob@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	first := srv.notifier.code("bob@x.com")

	status, _ = srv.do(t, c, http.MethodPost, "/api/resend-2fa", map[string]string{"email": "bob@x.com"})
	require.Equal(t, http.StatusOK, status)
	second := srv.notifier.code("bob@x.com")
	require.NotEmpty(t, second)

	if first != second {
		status, _ = srv.do(t, c, http.MethodPost, "/api/verify-2fa", map[string]string{"email": "bob@x.com", "code": first})
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, _ = srv.do(t, c, http.MethodPost, "/api/verify-2fa", map[string]string{"email": "bob@x.com", "code": second})
	assert.Equal(t, http.StatusOK, status)
}

func TestForgotAndResetPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)
	srv.login(t, c, "bob@x.com", "secret1")

	anon := srv.client(t)
	status, known := srv.do(t, anon, http.MethodPost, "/api/forgot-password", map[string]string{"email": "bob@x.com"})
	require.Equal(t, http.StatusOK, status)
	status, unknown := srv.do(t, anon, http.MethodPost, "/api/forgot-password", map[string]string{"email": "nobody@x.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, known, unknown)
	assert.Equal(t, service.MsgResetRequested, known["message"])

	token := srv.notifier.token("bob@x.com")
	require.NotEmpty(t, token)

	status, body := srv.do(t, anon, http.MethodPost, "/api/reset-password", map[string]string{"token": "bogus", "password": "brandnew"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired token", body["message"])

	status, body = srv.do(t, anon, http.MethodPost, "/api/reset-password", map[string]string{"token": token, "password": "brandnew"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password reset successful", body["message"])

	status, _ = srv.do(t, c, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "existing sessions are revoked")

	status, _ = srv.do(t, anon, http.MethodPost, "/api/reset-password", map[string]string{"token": token, "password": "again123"})
	assert.Equal(t, http.StatusBadRequest, status, "tokens are single use")

	srv.login(t, anon, "bob@x.com", "brandnew")
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)
	srv.login(t, c, "bob@x.com", "secret1")

	status, _ := srv.do(t, c, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, c, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = srv.do(t, c, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, status, "logout is idempotent")

	status, _ = srv.do(t, c, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTamperedCookieIsRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/user", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-token"})
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var cleared bool
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "an invalid cookie is cleared")
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	status, body := srv.do(t, c, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = srv.do(t, c, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, MsgNotFound, body["message"])
}

func TestRateLimitCoversGraphQL(t *testing.T) {
	limiter := security.NewRateLimiter(1, time.Hour)
	t.Cleanup(limiter.Stop)
	srv := newLimitedTestServer(t, limiter)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)
	c := srv.client(t)

	login := map[string]any{
		"query":     `mutation($e: String!, $p: String!) { login(input: {email: $e, password: $p}) { message } }`,
		"variables": map[string]any{"e": "bob@x.com", "p": "wrong-password"},
	}
	var statuses []int
	for i := 0; i < 3; i++ {
		status, _ := srv.doRaw(t, c, http.MethodPost, "/api/graphql", login)
		statuses = append(statuses, status)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, statuses)

	status, body := srv.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": "bob@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, status, "REST and GraphQL share the per-IP budget")
	assert.Equal(t, MsgTooManyRequests, body["message"])
}

func TestRateLimitForwardedFor(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		want  []int
	}{
		{"header ignored by default", false, []int{http.StatusNoContent, http.StatusTooManyRequests}},
		{"header honored behind a proxy", true, []int{http.StatusNoContent, http.StatusNoContent}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := security.NewRateLimiter(1, time.Hour)
			t.Cleanup(limiter.Stop)
			mw := NewMiddleware(nil, nil, limiter, logging.Nop()).TrustProxy(tt.trust)
			h := mw.RateLimit(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			var got []int
			for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
				req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
				req.Header.Set("X-Forwarded-For", ip)
				rec := httptest.NewRecorder()
				h(rec, req)
				got = append(got, rec.Code)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingCookies struct {
	*security.SessionCookies
}

func (failingCookies) Write(http.ResponseWriter, *http.Request, string, time.Time) error {
	return errors.New("cookie signing failed")
}

func TestSessionDeletedWhenCookieWriteFails(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t, "Bob", "bob@x.com", "secret1", models.RoleUser, true)

	status, _ := srv.do(t, srv.client(t), http.MethodPost, "/api/login", map[string]string{"email": "bob@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)

	h := NewAuthHandler(srv.auth, srv.cookies, logging.Nop())
	h.cookies = failingCookies{srv.cookies}

	tests := []struct {
		name   string
		handle http.HandlerFunc
		body   string
	}{
		{"verify", h.VerifyTwoFactor, `{"email":"bob@x.com","code":"` + srv.notifier.code("bob@x.com") + `"}`},
		{"register", h.Register, `{"name":"Alice","email":"alice@x.com","password":"secret1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			tt.handle(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Empty(t, rec.Result().Cookies())

			var n int
			require.NoError(t, srv.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n))
			assert.Zero(t, n, "no session survives a failed cookie write")
		})
	}
}
