package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/repository"
)

// Manager hands out per-client Stores backed by one durable repository.
type Manager struct {
	repo   repository.SessionRepository
	logger *zap.Logger
}

func NewManager(repo repository.SessionRepository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{repo: repo, logger: logger}
}

// Open returns an uninitialized Store for the client. Call Restore before reading it.
func (m *Manager) Open(clientID string) *Store {
	return &Store{
		repo:     m.repo,
		clientID: clientID,
		logger:   m.logger.With(zap.String("client_id", clientID)),
	}
}

// Store is the single source of truth for who is signed in on one client.
type Store struct {
	repo     repository.SessionRepository
	clientID string
	logger   *zap.Logger

	mu          sync.RWMutex
	current     domain.Session
	initialized bool
}

// Restore hydrates the Store from its durable record once. Only a complete record is
// accepted; a partial one is purged. The Store is initialized afterwards in every case.
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	defer func() { s.initialized = true }()

	record, err := s.repo.Load(ctx, s.clientID)
	if err != nil {
		s.logger.Warn("session restore failed", zap.Error(err))
		return
	}
	if record.Empty() {
		return
	}

	restored, err := record.Session()
	if err != nil {
		s.logger.Warn("discarding corrupt session record", zap.Error(err))
		if clearErr := s.repo.Clear(ctx, s.clientID); clearErr != nil {
			s.logger.Error("failed to purge corrupt session record", zap.Error(clearErr))
		}
		return
	}
	s.current = restored
}

// Login overwrites the session with an identity already accepted by the backend.
// Token, role and user id are required; group id may be empty.
func (s *Store) Login(ctx context.Context, identity domain.Identity) error {
	identity.Token = strings.TrimSpace(identity.Token)
	identity.UserID = strings.TrimSpace(identity.UserID)
	if identity.Token == "" || identity.UserID == "" || !identity.Role.IsValid() {
		return domain.ErrInvalidLogin
	}

	next := identity.Session()
	if err := s.repo.Replace(ctx, s.clientID, domain.NewRecord(next)); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "persist session", err)
	}

	s.mu.Lock()
	s.current = next
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// Logout clears the session. Logging out twice is the same as logging out once.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.repo.Clear(ctx, s.clientID); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "clear session", err)
	}
	s.mu.Lock()
	s.current = domain.Session{}
	s.mu.Unlock()
	return nil
}

// SetTwoFactor updates the role-scoped two-factor flag of the signed-in principal.
func (s *Store) SetTwoFactor(ctx context.Context, enabled bool) error {
	if !s.IsAuthenticated() {
		return domain.ErrNoSession
	}
	if err := s.repo.SetFlag(ctx, s.clientID, domain.KeyTwoFactor, strconv.FormatBool(enabled)); err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return err
		}
		return domain.WrapError(domain.ErrCodeInternal, "persist two-factor flag", err)
	}
	s.mu.Lock()
	s.current.TwoFactor = enabled
	s.mu.Unlock()
	return nil
}

// RememberRedirect records where an unauthenticated visit was headed.
func (s *Store) RememberRedirect(ctx context.Context, target string) error {
	if !IsLocalPath(target) {
		return nil
	}
	return s.repo.SetRedirect(ctx, s.clientID, target)
}

// TakeRedirect consumes the pending redirect target. It returns "" when none is pending.
func (s *Store) TakeRedirect(ctx context.Context) string {
	target, err := s.repo.TakeRedirect(ctx, s.clientID)
	if err != nil {
		s.logger.Warn("pending redirect lookup failed", zap.Error(err))
		return ""
	}
	if !IsLocalPath(target) {
		return ""
	}
	return target
}

func (s *Store) ClientID() string {
	return s.clientID
}

func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// IsAuthenticated is false until Restore or Login has run.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized && s.current.IsAuthenticated()
}

func (s *Store) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Role
}

// Session returns a snapshot of the current session.
func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsLocalPath reports whether target is safe to redirect to after login.
func IsLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.ContainsAny(target, "\\\r\n")
}
