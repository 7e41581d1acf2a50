package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CredentialStore persists the admin code hash.
type CredentialStore interface {
	LoadHash(ctx context.Context) (string, error)
	SaveHash(ctx context.Context, hash string) error
}

// AuthService owns the admin code and the live admin sessions.
// Sessions are kept in memory, so a restart logs every admin out.
type AuthService struct {
	log    *zap.Logger
	store  CredentialStore
	tokens *auth.TokenManager
	ttl    time.Duration
	clock  func() time.Time

	mu       sync.RWMutex
	hash     string
	sessions map[string]time.Time
}

func NewAuthService(ctx context.Context, store CredentialStore, tokens *auth.TokenManager,
	defaultCode string, ttl time.Duration, log *zap.Logger) (*AuthService, error) {
	s := &AuthService{
		log:      log.Named("auth"),
		store:    store,
		tokens:   tokens,
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]time.Time),
	}
	hash, err := store.LoadHash(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load admin code")
	}
	if hash == "" {
		if hash, err = auth.HashCode(defaultCode); err != nil {
			return nil, errors.Wrap(err, "hash default admin code")
		}
		if err := store.SaveHash(ctx, hash); err != nil {
			return nil, errors.Wrap(err, "store default admin code")
		}
		s.log.Info("admin code initialised from default")
	}
	s.hash = hash
	return s, nil
}

func (s *AuthService) Login(_ context.Context, code string) (string, error) {
	s.mu.RLock()
	hash := s.hash
	s.mu.RUnlock()
	if !auth.VerifyCode(hash, code) {
		return "", errs.ErrWrongCode
	}

	sessionID := uuid.NewString()
	token, err := s.tokens.Issue(sessionID, s.ttl)
	if err != nil {
		return "", errors.Wrap(err, "issue token")
	}
	var expires time.Time
	if s.ttl > 0 {
		expires = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[sessionID] = expires
	s.mu.Unlock()
	s.log.Debug("admin session opened", zap.String("session", sessionID))
	return token, nil
}

func (s *AuthService) Logout(_ context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return errs.ErrUnauthorized
	}
	s.mu.Lock()
	delete(s.sessions, claims.SessionID)
	s.mu.Unlock()
	s.log.Debug("admin session closed", zap.String("session", claims.SessionID))
	return nil
}

// Authenticate returns the session id behind a live admin token.
func (s *AuthService) Authenticate(_ context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", errs.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.sessions[claims.SessionID]
	if !ok {
		return "", errs.ErrUnauthorized
	}
	if !expires.IsZero() && !s.clock().Before(expires) {
		delete(s.sessions, claims.SessionID)
		return "", errs.ErrUnauthorized
	}
	return claims.SessionID, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, currentCode, newCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !auth.VerifyCode(s.hash, currentCode) {
		return errs.ErrWrongCurrentPassword
	}
	if strings.TrimSpace(newCode) == "" {
		return errors.Wrap(errs.ErrValidation, "new code is empty")
	}
	next, err := auth.HashCode(newCode)
	if err != nil {
		return errors.Wrap(errs.ErrValidation, err.Error())
	}
	if err := s.store.SaveHash(ctx, next); err != nil {
		return err
	}
	s.hash = next
	s.log.Info("admin code changed")
	return nil
}
