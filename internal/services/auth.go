package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

const (
	bcryptCost       = 12
	sessionDuration  = 30 * 24 * time.Hour // 30 days, sliding
	sessionKeyPrefix = "session:"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.KindAuthorization, "invalid credentials")
	ErrSessionNotFound    = apperr.New(apperr.KindAuthorization, "session not found")
)

type AuthService struct {
	users *UserService
	cache CacheStore
	cost  int
}

func NewAuthService(db DB, cache CacheStore) *AuthService {
	return &AuthService{
		users: NewUserService(db),
		cache: cache,
		cost:  bcryptCost,
	}
}

// SetCost overrides the bcrypt cost. Values below bcrypt.MinCost fall back
// to bcrypt.DefaultCost.
func (s *AuthService) SetCost(cost int) {
	s.cost = cost
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *AuthService) GenerateSessionToken() (token string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	token = hex.EncodeToString(bytes)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	hashBytes := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hashBytes[:])
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, tokenHash, err := s.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, sessionKeyPrefix+tokenHash, userID.String(), sessionDuration); err != nil {
		return "", apperr.Transient("storing session", err)
	}
	return token, nil
}

// ValidateSession resolves a session token to its user and extends the
// session.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	key := sessionKeyPrefix + hashToken(token)

	userIDStr, err := s.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, apperr.Transient("reading session", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.cache.Del(ctx, key)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	_ = s.cache.Expire(ctx, key, sessionDuration)
	return user, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	if err := s.cache.Del(ctx, sessionKeyPrefix+hashToken(token)); err != nil {
		return apperr.Transient("deleting session", err)
	}
	return nil
}
