package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/usecase"
	"github.com/fastygo/portal/usecase/session"
)

// Exchanger performs the credential exchange with the billing backend.
type Exchanger interface {
	Exchange(ctx context.Context, creds domain.Credentials) (domain.Identity, error)
}

// LoginObserver is told about login outcomes, typically metrics.
type LoginObserver interface {
	Login(outcome string)
	ForcedLogout()
}

type nopObserver struct{}

func (nopObserver) Login(string)  {}
func (nopObserver) ForcedLogout() {}

type UseCase struct {
	exchanger Exchanger
	sessions  *session.Manager
	audit     usecase.AuditSink
	observer  LoginObserver
	logger    *zap.Logger
}

func New(exchanger Exchanger, sessions *session.Manager, audit usecase.AuditSink, observer LoginObserver, logger *zap.Logger) *UseCase {
	if audit == nil {
		audit = usecase.NopAudit{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		exchanger: exchanger,
		sessions:  sessions,
		audit:     audit,
		observer:  observer,
		logger:    logger,
	}
}

// Login exchanges credentials, stores the session and returns where to send the
// user: the pending redirect target if one was recorded, else the role dashboard.
func (uc *UseCase) Login(ctx context.Context, store *session.Store, creds domain.Credentials) (string, error) {
	identity, err := uc.exchanger.Exchange(ctx, creds)
	if err != nil {
		uc.observer.Login("rejected")
		return "", err
	}
	if err := store.Login(ctx, identity); err != nil {
		uc.observer.Login("invalid")
		uc.logger.Warn("backend identity refused by session store", zap.Error(err))
		return "", err
	}
	uc.observer.Login("success")

	destination := store.TakeRedirect(ctx)
	if destination == "" {
		destination = identity.Role.Dashboard()
	}
	uc.record(ctx, domain.AuditEvent{
		ClientID: store.ClientID(),
		UserID:   identity.UserID,
		Role:     identity.Role,
		Kind:     domain.AuditLogin,
		Path:     destination,
	})
	return destination, nil
}

// Logout clears the session of the store's client.
func (uc *UseCase) Logout(ctx context.Context, store *session.Store) error {
	previous := store.Session()
	if err := store.Logout(ctx); err != nil {
		return err
	}
	if previous.IsAuthenticated() {
		uc.record(ctx, domain.AuditEvent{
			ClientID: store.ClientID(),
			UserID:   previous.UserID,
			Role:     previous.Role,
			Kind:     domain.AuditLogout,
		})
	}
	return nil
}

// ForceLogout clears a client's session after it lingered on a not-found screen.
// token is the session that was showing the screen; a session signed in since then
// is left alone.
func (uc *UseCase) ForceLogout(ctx context.Context, clientID, token, path string) error {
	store := uc.sessions.Open(clientID)
	store.Restore(ctx)
	previous := store.Session()
	if !previous.IsAuthenticated() || previous.Token != token {
		uc.logger.Info("forced logout skipped, session changed since not-found",
			zap.String("client_id", clientID), zap.String("path", path))
		return nil
	}
	if err := store.Logout(ctx); err != nil {
		uc.logger.Error("forced logout failed", zap.String("client_id", clientID), zap.Error(err))
		return err
	}
	uc.observer.ForcedLogout()
	uc.record(ctx, domain.AuditEvent{
		ClientID: clientID,
		UserID:   previous.UserID,
		Role:     previous.Role,
		Kind:     domain.AuditForcedLogout,
		Path:     path,
	})
	return nil
}

func (uc *UseCase) record(ctx context.Context, event domain.AuditEvent) {
	if err := uc.audit.Record(ctx, event); err != nil {
		uc.logger.Warn("failed to record session event", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}
