package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mashpotato9/placefinder/internal/domain"
	"github.com/mashpotato9/placefinder/internal/repository"
	"github.com/mashpotato9/placefinder/pkg/config"
	"github.com/mashpotato9/placefinder/pkg/crypto"
	jwtpkg "github.com/mashpotato9/placefinder/pkg/jwt"
)

var (
	ErrValidation         = errors.New("auth: invalid registration input")
	ErrMissingFields      = fmt.Errorf("%w: username and password are required", ErrValidation)
	ErrDuplicateUsername  = errors.New("auth: username already exists")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMissingToken       = errors.New("auth: token required")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrNotFound           = errors.New("auth: user not found")
	ErrStorage            = errors.New("auth: storage failure")

	// ErrPasswordTooLong is a validation failure: bcrypt refuses passwords
	// longer than 72 bytes.
	ErrPasswordTooLong = fmt.Errorf("%w: password exceeds %d bytes", ErrValidation, crypto.MaxPasswordBytes)
)

const dummyPassword = "placefinder-missing-user"

// comparePassword is swapped in tests to observe bcrypt work.
var comparePassword = crypto.ComparePassword

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
	// dummyHash is compared against on unknown usernames so both login
	// failures cost one bcrypt comparison.
	dummyHash []byte
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	dummy, err := crypto.HashPassword(dummyPassword, cfg.BcryptCost)
	if err != nil {
		logger.Error("failed to prepare dummy password hash", "error", err)
	}
	return Service{users: users, logger: logger, cfg: cfg, dummyHash: dummy}
}

// Register creates a user with a bcrypt-hashed password.
func (s Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len(password) > crypto.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and returns a signed session token. Unknown
// usernames and wrong passwords fail identically.
func (s Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || len(password) > crypto.MaxPasswordBytes {
		return "", ErrInvalidCredentials
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = comparePassword(s.dummyHash, password)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := comparePassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := jwtpkg.GenerateToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Authenticate validates a bearer token and returns the identity it carries.
// It never touches the store.
func (s Service) Authenticate(token string) (domain.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Identity{}, ErrMissingToken
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return domain.Identity{UserID: claims.UserID}, nil
}

// CurrentUser loads the account behind an authenticated identity.
func (s Service) CurrentUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if identity.UserID == "" {
		return nil, ErrNotFound
	}
	user, err := s.users.GetUserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return user, nil
}
