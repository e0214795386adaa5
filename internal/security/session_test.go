package security

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCookies(t *testing.T, secure bool) *SessionCookies {
	t.Helper()
	c, err := NewSessionCookies("session_id", "test-secret-test-secret-test-secret", secure)
	require.NoError(t, err)
	return c
}

func TestGenerateSessionIDUnique(t *testing.T) {
	a, b := GenerateSessionID(), GenerateSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestSessionCookies_SignParseRoundTrip(t *testing.T) {
	c := newCookies(t, false)

	value, err := c.Sign("sess-123", time.Now().Add(time.Hour))
	require.NoError(t, err)

	id, err := c.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "sess-123", id)
}

func TestSessionCookies_ParseRejects(t *testing.T) {
	c := newCookies(t, false)
	other, err := NewSessionCookies("session_id", "a-different-secret-a-different-secret", false)
	require.NoError(t, err)

	valid, err := c.Sign("sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	foreign, err := other.Sign("sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	expired, err := c.Sign("sess-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID:        "sess-1",
		Issuer:    cookieIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"signed with another secret": foreign,
		"expired":                    expired,
		"alg none":                   noneAlg,
		"tampered":                   valid[:len(valid)-2] + "xx",
		"raw session id":             "sess-1",
		"empty":                      "",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Parse(value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSessionCookie))
		})
	}
}

func TestSessionCookies_WriteAndRead(t *testing.T) {
	c := newCookies(t, true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-2fa", nil)

	require.NoError(t, c.Write(rec, req, "sess-42", time.Now().Add(24*time.Hour)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "session_id", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotContains(t, cookie.Value, "sess-42", "cookie must not carry the bare session id")

	next := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	next.AddCookie(cookie)
	id, ok := c.Read(next)
	require.True(t, ok)
	assert.Equal(t, "sess-42", id)
}

func TestSessionCookies_Clear(t *testing.T) {
	c := newCookies(t, false)
	rec := httptest.NewRecorder()
	c.Clear(rec, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	header := rec.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(header, "session_id=;"), header)
	assert.Contains(t, header, "Max-Age=0")
}

func TestIsSecureRequest(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, IsSecureRequest(plain))

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, IsSecureRequest(proxied))

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	assert.True(t, IsSecureRequest(direct))
}

func TestNewSessionCookies_EmptySecretGeneratesKey(t *testing.T) {
	a, err := NewSessionCookies("sid", "", false)
	require.NoError(t, err)
	b, err := NewSessionCookies("sid", "", false)
	require.NoError(t, err)

	value, err := a.Sign("s", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = b.Parse(value)
	assert.Error(t, err, "random secrets must differ between instances")
}
