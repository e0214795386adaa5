package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const cookieIssuer = "admindash"

// ErrInvalidSessionCookie is returned when a cookie value fails signature or claim checks
var ErrInvalidSessionCookie = errors.New("invalid session cookie")

// GenerateSessionID creates a new UUID for session identification
func GenerateSessionID() string {
	return uuid.New().String()
}

// IsSecureRequest determines if the request is over HTTPS
// Checks TLS connection, X-Forwarded-Proto header (for reverse proxies), and URL scheme
func IsSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}
	return r.URL != nil && r.URL.Scheme == "https"
}

// SessionCookies writes and reads the session cookie. The cookie carries an
// HS256 token whose jti is the server-side session ID, so a tampered or
// forged value is rejected before any store lookup.
type SessionCookies struct {
	Name   string
	Secure bool
	secret []byte
}

// NewSessionCookies creates the cookie codec. An empty secret is replaced by a
// random one, which invalidates all cookies on restart.
func NewSessionCookies(name, secret string, secure bool) (*SessionCookies, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate cookie secret: %w", err)
		}
	}
	return &SessionCookies{Name: name, Secure: secure, secret: key}, nil
}

// Sign encodes a session ID into a signed cookie value
func (c *SessionCookies) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    cookieIssuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return token, nil
}

// Parse verifies a cookie value and returns the session ID it carries
func (c *SessionCookies) Parse(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionCookie, err)
	}
	if claims.ID == "" {
		return "", ErrInvalidSessionCookie
	}
	return claims.ID, nil
}

// Read returns the session ID from the request cookie, if present and valid
func (c *SessionCookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	sessionID, err := c.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// Write sets the session cookie on the response
func (c *SessionCookies) Write(w http.ResponseWriter, r *http.Request, sessionID string, expiresAt time.Time) error {
	value, err := c.Sign(sessionID, expiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, CreateSessionCookie(c.Name, value, expiresAt, c.Secure || IsSecureRequest(r)))
	return nil
}

// Clear expires the session cookie in the browser
func (c *SessionCookies) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, CreateDeleteCookie(c.Name, c.Secure || IsSecureRequest(r)))
}

// CreateSessionCookie creates a session cookie with proper security flags
func CreateSessionCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateDeleteCookie creates a cookie for deletion with proper security flags
func CreateDeleteCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
