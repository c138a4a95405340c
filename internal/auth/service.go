package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

// Store persists user accounts
type Store interface {
	PutUser(ctx context.Context, user models.UserAccount) error
	FindUserByEmail(ctx context.Context, email string) (*models.UserAccount, error)
}

// Session is the result of a successful login
type Session struct {
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Service handles signup and login
type Service struct {
	store  Store
	tokens *TokenManager
	logger *zap.Logger
}

// NewService creates an auth service
func NewService(store Store, tokens *TokenManager, logger *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Signup creates an account under a generated username. Without consent nothing is written.
func (s *Service) Signup(ctx context.Context, email, password string, consent bool) (string, error) {
	if !consent {
		return "", models.ErrConsentRequired
	}
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	user := models.UserAccount{
		Username:     uuid.NewString(),
		Email:        email,
		PasswordHash: hashed,
		Consent:      consent,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up", zap.String("username", user.Username))
	return user.Username, nil
}

// Login checks the password of the first account with the email and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Generate(user.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Username: user.Username, Token: token, ExpiresAt: expiresAt}, nil
}
