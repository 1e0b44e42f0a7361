package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mashpotato9/placefinder/internal/domain"
	"github.com/mashpotato9/placefinder/internal/repository"
	"github.com/mashpotato9/placefinder/pkg/config"
	jwtpkg "github.com/mashpotato9/placefinder/pkg/jwt"
)

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
	}
}

func TestRegisterHashesPasswordAndStoresUser(t *testing.T) {
	users := newUserStore()
	svc := New(users, newLogger(), testConfig())

	user, err := svc.Register(context.Background(), "  alice ", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}
	if user.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", user.Username)
	}
	stored, ok := users.byName["alice"]
	if !ok {
		t.Fatalf("expected user persisted")
	}
	if string(stored.PasswordHash) == "hunter2" {
		t.Fatalf("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())

	if _, err := svc.Register(context.Background(), "alice", "pw-one"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), "alice", "pw-two")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestRegisterRequiresFields(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())
	cases := []struct{ username, password string }{
		{"", "pw"},
		{"   ", "pw"},
		{"alice", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc.username, tc.password); !errors.Is(err, ErrValidation) {
			t.Fatalf("register(%q, %q): expected ErrValidation, got %v", tc.username, tc.password, err)
		}
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())

	_, err := svc.Register(context.Background(), "alice", strings.Repeat("p", 73))
	if !errors.Is(err, ErrPasswordTooLong) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrPasswordTooLong validation error, got %v", err)
	}
	if errors.Is(err, ErrStorage) {
		t.Fatalf("overlong password must not look like a storage failure")
	}

	if _, err := svc.Register(context.Background(), "bob", strings.Repeat("p", 72)); err != nil {
		t.Fatalf("72 byte password should register: %v", err)
	}
	if _, err := svc.Login(context.Background(), "bob", strings.Repeat("p", 73)); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for overlong login, got %v", err)
	}
}

func TestRegisterWrapsStorageFailure(t *testing.T) {
	users := userRepoMock{
		createFunc: func(context.Context, *domain.User) error {
			return errors.New("connection reset")
		},
	}
	svc := New(users, newLogger(), testConfig())

	_, err := svc.Register(context.Background(), "alice", "pw")
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("storage failure must not look like a duplicate")
	}
}

func TestLoginIssuesTokenAcceptedByAuthenticate(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())
	user, err := svc.Register(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("expected identity %s, got %s", user.ID, identity.UserID)
	}
}

func TestLoginTokenHasNoExpiryByDefault(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())
	if _, err := svc.Register(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := jwtpkg.Parse(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", claims.ExpiresAt)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())
	if _, err := svc.Register(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := svc.Login(context.Background(), "alice", "nope")
	_, unknownUser := svc.Login(context.Background(), "bob", "hunter2")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("expected identical errors, got %q and %q", wrongPassword, unknownUser)
	}
}

func TestLoginUnknownUserStillComparesPassword(t *testing.T) {
	svc := New(newUserStore(), newLogger(), testConfig())

	var calls int
	original := comparePassword
	comparePassword = func(hash []byte, plain string) error {
		calls++
		return original(hash, plain)
	}
	t.Cleanup(func() { comparePassword = original })

	if _, err := svc.Login(context.Background(), "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one bcrypt comparison for unknown user, got %d", calls)
	}
}

func TestLoginStorageFailure(t *testing.T) {
	users := userRepoMock{
		getByUsernameFunc: func(context.Context, string) (*domain.User, error) {
			return nil, errors.New("db down")
		},
	}
	svc := New(users, newLogger(), testConfig())
	if _, err := svc.Login(context.Background(), "alice", "pw"); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := New(userRepoMock{}, newLogger(), testConfig())

	if _, err := svc.Authenticate("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := svc.Authenticate("garbage.token.value"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	foreign, err := jwtpkg.GenerateToken("user-1", "other-secret", 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.Authenticate(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired, err := jwtpkg.GenerateToken("user-1", "test-secret", time.Nanosecond)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := svc.Authenticate(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestAuthenticateDoesNotTouchStore(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(context.Context, string) (*domain.User, error) {
			t.Fatalf("store must not be queried")
			return nil, nil
		},
	}
	svc := New(users, newLogger(), testConfig())
	token, err := jwtpkg.GenerateToken("user-9", "test-secret", 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	identity, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != "user-9" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestCurrentUser(t *testing.T) {
	users := newUserStore()
	svc := New(users, newLogger(), testConfig())
	created, err := svc.Register(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.CurrentUser(context.Background(), domain.Identity{UserID: created.ID})
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.CurrentUser(context.Background(), domain.Identity{UserID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// userStore is an in-memory UserRepository enforcing username uniqueness.
type userStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	byName map[string]*domain.User
}

func newUserStore() *userStore {
	return &userStore{byID: map[string]*domain.User{}, byName: map[string]*domain.User{}}
}

func (s *userStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[user.Username]; ok {
		return fmt.Errorf("%w: username", repository.ErrConflict)
	}
	copied := *user
	s.byID[user.ID] = &copied
	s.byName[user.Username] = &copied
	return nil
}

func (s *userStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byName[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

type userRepoMock struct {
	createFunc        func(context.Context, *domain.User) error
	getByUsernameFunc func(context.Context, string) (*domain.User, error)
	getByIDFunc       func(context.Context, string) (*domain.User, error)
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m userRepoMock) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(ctx, username)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}
