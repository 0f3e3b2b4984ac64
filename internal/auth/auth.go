// Package auth implements the local authentication provider: user records
// in the key-value store, bcrypt password hashing, and HS256 access tokens.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/patooworld/omni/internal/storage"
)

// Sentinel errors. Authentication failures never mutate session state; the
// caller decides how to surface them.
var (
	// ErrUserExists indicates a sign-up for an already registered email.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates a sign-in with a wrong email or
	// password. Deliberately does not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthFailed indicates an invalid, expired, or malformed token.
	ErrAuthFailed = errors.New("authentication failed")
)

const (
	userKeyPrefix = "user_"

	minPasswordLength = 8
)

// User is the stable identity record for an account.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// PasswordHash is the bcrypt hash. Never serialized to API responses;
	// the api layer maps User to its own response shape.
	PasswordHash string `json:"passwordHash"`
}

// Config contains the required parameters for the auth service.
type Config struct {
	Store  storage.KeyValueStore
	Logger *slog.Logger

	// JWTSecret signs access tokens. Required.
	JWTSecret string

	// TokenTTL is the access token lifetime. Defaults to 24h.
	TokenTTL time.Duration
}

// Service implements sign-up, sign-in, and token verification.
type Service struct {
	store    storage.KeyValueStore
	logger   *slog.Logger
	secret   []byte
	tokenTTL time.Duration
}

// New creates the auth service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("key-value store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:    cfg.Store,
		logger:   cfg.Logger,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: ttl,
	}, nil
}

// claims is the token payload: user id as subject plus display fields so
// the api layer can render an identity without a store read.
type claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// UserKey returns the durable key for the given email's account record.
// The normalized email is base64url-encoded: valid addresses may carry
// characters the storage key charset rejects (plus-addressing, quoted
// local parts), and the encoded form is key-safe for all of them.
func UserKey(email string) string {
	return userKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(normalizeEmail(email)))
}

// SignUp registers a new account and returns the user with a signed access
// token.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (User, string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, "", fmt.Errorf("%w: invalid email address", ErrInvalidCredentials)
	}
	if len(password) < minPasswordLength {
		return User{}, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLength)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	if _, err := s.store.Get(ctx, UserKey(email)); err == nil {
		return User{}, "", ErrUserExists
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return User{}, "", fmt.Errorf("checking account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		CreatedAt:    time.Now().UTC(),
		PasswordHash: string(hash),
	}
	if err := s.saveUser(ctx, user); err != nil {
		return User{}, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return User{}, "", err
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, token, nil
}

// SignIn authenticates an existing account and returns the user with a
// signed access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, string, error) {
	user, err := s.loadUser(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return User{}, "", err
	}

	s.logger.Info("user signed in", "user_id", user.ID)
	return user, token, nil
}

// VerifyToken validates an access token and returns the identity it carries.
func (s *Service) VerifyToken(tokenStr string) (User, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		})
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return User{}, ErrAuthFailed
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return User{}, fmt.Errorf("%w: malformed subject", ErrAuthFailed)
	}
	return User{ID: id, Email: c.Email, DisplayName: c.DisplayName}, nil
}

func (s *Service) issueToken(user User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *Service) saveUser(ctx context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user record: %w", err)
	}
	if err := s.store.Set(ctx, UserKey(user.Email), data); err != nil {
		return fmt.Errorf("storing user record: %w", err)
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, email string) (User, error) {
	data, err := s.store.Get(ctx, UserKey(email))
	if err != nil {
		return User{}, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("decoding user record: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
