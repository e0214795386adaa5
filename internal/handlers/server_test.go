package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"admindash/internal/database"
	"admindash/internal/graph"
	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/repository"
	"admindash/internal/security"
	"admindash/internal/service"
)

type captureNotifier struct {
	mu     sync.Mutex
	codes  map[string]string
	tokens map[string]string
}

func (c *captureNotifier) SendTwoFactorCode(_ context.Context, to, _ string, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to] = code
	return nil
}

func (c *captureNotifier) SendPasswordResetEmail(_ context.Context, to, _ string, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[to] = token
	return nil
}

func (c *captureNotifier) code(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

func (c *captureNotifier) token(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[email]
}

type testServer struct {
	*httptest.Server
	db       *database.DB
	users    *repository.UserRepository
	notifier *captureNotifier
	cookies  *security.SessionCookies
	auth     *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newLimitedTestServer(t, nil)
}

// newLimitedTestServer mounts every route, GraphQL included, behind the given per-IP limiter
func newLimitedTestServer(t *testing.T, limiter security.AttemptLimiter) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx, logging.Nop()))

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	notifier := &captureNotifier{codes: map[string]string{}, tokens: map[string]string{}}
	log := logging.Nop()

	authService := service.NewAuthService(users, sessions, notifier, log, service.AuthOptions{})
	userService := service.NewUserService(users, sessions, nil, log)
	cookies, err := security.NewSessionCookies(SessionCookieName, "test-secret-test-secret-test-secret", false)
	require.NoError(t, err)

	graphHandler, err := graph.NewHandler(authService, userService, cookies, log)
	require.NoError(t, err)

	startup := NewStartupStatus(StepDatabase, StepReady)
	startup.MarkReady()

	router := NewRouter(RouterConfig{
		Auth:       NewAuthHandler(authService, cookies, log),
		Users:      NewUserHandler(userService, log),
		Middleware: NewMiddleware(authService, cookies, limiter, log),
		GraphQL:    graphHandler,
		Startup:    startup,
		Log:        log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, db: db, users: users, notifier: notifier, cookies: cookies, auth: authService}
}

// client returns an HTTP client with its own cookie jar
func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := s.doRaw(t, c, method, path, body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return status, out
}

func (s *testServer) doRaw(t *testing.T, c *http.Client, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

// seed inserts an account with a real scrypt digest
func (s *testServer) seed(t *testing.T, name, email, password string, role models.Role, authorized bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	expires := time.Now().Add(models.AccountLifetime)
	u, err := s.users.CreateUser(context.Background(), &models.User{
		Name: name, Email: email, PasswordHash: hash,
		Role: role, Authorized: authorized, ExpirationDate: &expires,
	})
	require.NoError(t, err)
	return u
}

// login runs both login steps and leaves the session cookie in the client's jar
func (s *testServer) login(t *testing.T, c *http.Client, email, password string) {
	t.Helper()
	status, body := s.do(t, c, http.MethodPost, "/api/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, "login body: %v", body)

	status, body = s.do(t, c, http.MethodPost, "/api/verify-2fa", map[string]string{"email": email, "code": s.notifier.code(email)})
	require.Equal(t, http.StatusOK, status, "verify body: %v", body)
}
