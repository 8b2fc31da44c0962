package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/metrics"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const sessionTokenBytes = 32

// AuthService handles the admin account and login sessions
type AuthService struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	cfg      *config.AuthConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	cfg *config.AuthConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) sessionTTL() time.Duration {
	if ttl := s.cfg.SessionTTLDuration(); ttl > 0 {
		return ttl
	}
	return 24 * time.Hour
}

// EnsureAdminUser creates the configured admin account if it does not exist.
// An existing account keeps its password.
func (s *AuthService) EnsureAdminUser(ctx context.Context) error {
	if s.cfg.AdminUsername == "" || s.cfg.AdminPassword == "" {
		return errors.New("admin username and password must be configured")
	}

	_, err := s.users.Get(ctx, s.cfg.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), cost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate user id: %w", err)
	}

	user := &domain.User{
		ID:           id.String(),
		Username:     s.cfg.AdminUsername,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save admin user: %w", err)
	}

	s.logger.Info("admin user created", zap.String("username", user.Username))
	return nil
}

// Authenticate checks a username and password
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.Get(ctx, username)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateSession issues a random session id valid for the configured TTL
func (s *AuthService) CreateSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	token := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now().UTC()
	ttl := s.sessionTTL()
	session := &domain.Session{
		ID:        hex.EncodeToString(token),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session, ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Login authenticates and opens a session in one step
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			s.logger.Warn("login rejected", zap.String("username", username))
		} else {
			metrics.LoginAttempts.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	session, err := s.CreateSession(ctx, user)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", zap.String("username", user.Username))
	return session, nil
}

// ValidateSession returns the session and its user. Expired sessions and
// sessions whose user no longer exists are deleted.
func (s *AuthService) ValidateSession(ctx context.Context, id string) (*domain.Session, *domain.User, error) {
	if id == "" {
		return nil, nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(s.now()) {
		s.deleteQuietly(ctx, id)
		return nil, nil, ErrSessionExpired
	}

	user, err := s.users.Get(ctx, session.Username)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && user.ID != session.UserID) {
		s.deleteQuietly(ctx, id)
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return session, user, nil
}

// DeleteSession removes a session; unknown ids are ignored
func (s *AuthService) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions deletes every expired session and returns how many were removed
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := s.now()
	removed := 0
	for _, session := range sessions {
		if !session.Expired(now) {
			continue
		}
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return removed, fmt.Errorf("failed to delete session: %w", err)
		}
		removed++
	}

	metrics.SessionsCleaned.Add(float64(removed))
	return removed, nil
}

func (s *AuthService) deleteQuietly(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to delete invalid session", zap.Error(err))
	}
}
