package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/repository"
	"admindash/internal/security"
	"admindash/internal/session"
)

// fakeUsers is an in-memory UserStore with the same contract as the SQL repository
type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]models.User
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[int64]models.User)}
}

func (f *fakeUsers) copyOf(u models.User) *models.User {
	return &u
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, repository.ErrDuplicateEmail
		}
	}
	f.nextID++
	u.ID = f.nextID
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = models.DefaultLanguage
	}
	if u.Theme == "" {
		u.Theme = models.ThemeDefault
	}
	if u.AccentColor == "" {
		u.AccentColor = models.DefaultAccentColor
	}
	f.byID[u.ID] = *u
	return f.copyOf(*u), nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return f.copyOf(u), nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.Email == email {
			return f.copyOf(u), nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByResetToken(_ context.Context, digest string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if digest == "" {
		return nil, nil
	}
	for _, u := range f.byID {
		if u.ResetPasswordToken == digest {
			return f.copyOf(u), nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) ListUsers(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID), f.err
}

func (f *fakeUsers) UpdateUser(_ context.Context, id int64, p models.UserPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil
	}
	if p.Email != nil {
		for otherID, other := range f.byID {
			if otherID != id && other.Email == *p.Email {
				return repository.ErrDuplicateEmail
			}
		}
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Password != nil {
		u.PasswordHash = *p.Password
		u.ResetPasswordToken = ""
		u.ResetPasswordExpires = nil
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Authorized != nil {
		u.Authorized = *p.Authorized
	}
	if p.ExpirationDate != nil {
		exp := *p.ExpirationDate
		u.ExpirationDate = &exp
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = *p.ProfilePicture
	}
	if p.PreferredLanguage != nil {
		u.PreferredLanguage = *p.PreferredLanguage
	}
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	if p.AccentColor != nil {
		u.AccentColor = *p.AccentColor
	}
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *fakeUsers) SetTwoFactorCode(_ context.Context, id int64, digest string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.TwoFactorCode = digest
	u.TwoFactorCodeExpires = &expires
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) ConsumeTwoFactorCode(_ context.Context, id int64, digest string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.TwoFactorCode != digest {
		return false, nil
	}
	u.TwoFactorCode = ""
	u.TwoFactorCodeExpires = nil
	f.byID[id] = u
	return true, nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, id int64, digest string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.ResetPasswordToken = digest
	u.ResetPasswordExpires = &expires
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, id int64, digest, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.ResetPasswordToken == "" || u.ResetPasswordToken != digest {
		return false, nil
	}
	u.PasswordHash = hash
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
	f.byID[id] = u
	return true, nil
}

func (f *fakeUsers) raw(id int64) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

// plainHasher keeps tests fast; scrypt itself is covered in the security package
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(password, digest string) bool {
	return strings.HasPrefix(digest, "plain:") && digest == "plain:"+password
}

// recordingNotifier keeps every message it was asked to send
type recordingNotifier struct {
	mu     sync.Mutex
	codes  map[string][]string
	resets map[string][]string
	err    error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string][]string), resets: make(map[string][]string)}
}

func (n *recordingNotifier) SendTwoFactorCode(_ context.Context, to, _ string, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.codes[to] = append(n.codes[to], code)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, _ string, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets[to] = append(n.resets[to], token)
	return nil
}

func (n *recordingNotifier) lastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *recordingNotifier) lastReset(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	tokens := n.resets[email]
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// denyAfter is an AttemptLimiter that allows n attempts per key
type denyAfter struct {
	mu     sync.Mutex
	n      int
	counts map[string]int
}

func (d *denyAfter) Allow(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	d.counts[key]++
	return d.counts[key] <= d.n, nil
}

func (d *denyAfter) Reset(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.counts, key)
	return nil
}

var errStoreDown = errors.New("store unavailable")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	users    *fakeUsers
	sessions *session.MemoryStore
	notifier *recordingNotifier
	clock    *clock
	auth     *AuthService
	accounts *UserService
}

func newAuthFixture(t *testing.T, opts AuthOptions) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    newFakeUsers(),
		sessions: session.NewMemoryStore(),
		notifier: newRecordingNotifier(),
		clock:    newClock(),
	}
	if opts.Hasher == nil {
		opts.Hasher = plainHasher{}
	}
	f.auth = NewAuthService(f.users, f.sessions, f.notifier, logging.Nop(), opts)
	f.auth.setClock(f.clock.Now)
	f.accounts = NewUserService(f.users, f.sessions, opts.Hasher, logging.Nop())
	f.accounts.now = f.clock.Now
	return f
}

// seed inserts an account directly into the store
func (f *authFixture) seed(t *testing.T, email, password string, role models.Role, authorized bool) *models.User {
	t.Helper()
	expires := f.clock.Now().Add(models.AccountLifetime)
	u, err := f.users.CreateUser(context.Background(), &models.User{
		Name:           "Test " + strings.Split(email, "@")[0],
		Email:          email,
		PasswordHash:   "plain:" + password,
		Role:           role,
		Authorized:     authorized,
		CreatedAt:      f.clock.Now(),
		ExpirationDate: &expires,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
	return u
}

// loginFully runs password and code verification and returns the session
func (f *authFixture) loginFully(t *testing.T, email, password string) *models.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := f.auth.Login(ctx, email, password); err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	sess, _, err := f.auth.VerifyTwoFactor(ctx, email, f.notifier.lastCode(email))
	if err != nil {
		t.Fatalf("VerifyTwoFactor(%s) error = %v", email, err)
	}
	return sess
}

var (
	_ UserStore               = (*fakeUsers)(nil)
	_ Notifier                = (*recordingNotifier)(nil)
	_ security.AttemptLimiter = (*denyAfter)(nil)
)
