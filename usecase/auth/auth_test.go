package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/usecase/session"
)

type fakeExchanger struct {
	identity domain.Identity
	err      error
}

func (f fakeExchanger) Exchange(context.Context, domain.Credentials) (domain.Identity, error) {
	return f.identity, f.err
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingAudit) Record(_ context.Context, ev domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingAudit) kinds() []domain.AuditKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type mapRepo struct {
	mu        sync.Mutex
	records   map[string]domain.Record
	redirects map[string]string
}

func newMapRepo() *mapRepo {
	return &mapRepo{records: map[string]domain.Record{}, redirects: map[string]string{}}
}

func (r *mapRepo) Load(_ context.Context, id string) (domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.Record{}
	for k, v := range r.records[id] {
		out[k] = v
	}
	return out, nil
}

func (r *mapRepo) Replace(_ context.Context, id string, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = rec
	return nil
}

func (r *mapRepo) Clear(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *mapRepo) SetFlag(_ context.Context, id, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec[key] = value
		return nil
	}
	return domain.ErrNoSession
}

func (r *mapRepo) SetRedirect(_ context.Context, id, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[id] = target
	return nil
}

func (r *mapRepo) TakeRedirect(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.redirects[id]
	delete(r.redirects, id)
	return t, nil
}

func clientIdentity() domain.Identity {
	return domain.Identity{Token: "tok", Role: domain.RoleClient, UserID: "u-1"}
}

func TestLoginFallsBackToDashboard(t *testing.T) {
	repo := newMapRepo()
	audit := &recordingAudit{}
	sessions := session.NewManager(repo, nil)
	uc := New(fakeExchanger{identity: clientIdentity()}, sessions, audit, nil, nil)

	store := sessions.Open("c1")
	store.Restore(context.Background())
	dest, err := uc.Login(context.Background(), store, domain.Credentials{Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "/client/dashboard", dest)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, []domain.AuditKind{domain.AuditLogin}, audit.kinds())
}

func TestLoginConsumesPendingRedirect(t *testing.T) {
	repo := newMapRepo()
	sessions := session.NewManager(repo, nil)
	uc := New(fakeExchanger{identity: clientIdentity()}, sessions, nil, nil, nil)

	store := sessions.Open("c1")
	store.Restore(context.Background())
	require.NoError(t, store.RememberRedirect(context.Background(), "/client/contract-list?x=1"))

	dest, err := uc.Login(context.Background(), store, domain.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "/client/contract-list?x=1", dest)

	dest, err = uc.Login(context.Background(), store, domain.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "/client/dashboard", dest)
}

func TestLoginRejectedByBackend(t *testing.T) {
	sessions := session.NewManager(newMapRepo(), nil)
	rejection := domain.NewError(domain.ErrCodeUnauthorized, "Invalid email or password")
	uc := New(fakeExchanger{err: rejection}, sessions, nil, nil, nil)

	store := sessions.Open("c1")
	store.Restore(context.Background())
	_, err := uc.Login(context.Background(), store, domain.Credentials{})
	assert.Equal(t, "Invalid email or password", domain.MessageOf(err))
	assert.False(t, store.IsAuthenticated())
}

func TestLoginRejectsIncompleteBackendIdentity(t *testing.T) {
	sessions := session.NewManager(newMapRepo(), nil)
	uc := New(fakeExchanger{identity: domain.Identity{Role: domain.RoleAgent, UserID: "1"}}, sessions, nil, nil, nil)

	store := sessions.Open("c1")
	store.Restore(context.Background())
	_, err := uc.Login(context.Background(), store, domain.Credentials{})
	assert.ErrorIs(t, err, domain.ErrInvalidLogin)
	assert.False(t, store.IsAuthenticated())
}

func TestLogoutAndForceLogout(t *testing.T) {
	repo := newMapRepo()
	audit := &recordingAudit{}
	sessions := session.NewManager(repo, nil)
	uc := New(fakeExchanger{identity: clientIdentity()}, sessions, audit, nil, nil)
	ctx := context.Background()

	store := sessions.Open("c1")
	store.Restore(ctx)
	_, err := uc.Login(ctx, store, domain.Credentials{})
	require.NoError(t, err)

	require.NoError(t, uc.ForceLogout(ctx, "c1", "tok", "/client/nope"))
	assert.Empty(t, repo.records)

	require.NoError(t, uc.Logout(ctx, sessions.Open("c1")))
	assert.Equal(t, []domain.AuditKind{domain.AuditLogin, domain.AuditForcedLogout}, audit.kinds())
	assert.Equal(t, "u-1", audit.events[1].UserID)
}

func TestForceLogoutSparesNewerSession(t *testing.T) {
	repo := newMapRepo()
	audit := &recordingAudit{}
	sessions := session.NewManager(repo, nil)
	uc := New(fakeExchanger{identity: domain.Identity{Token: "fresh", Role: domain.RoleAgent, UserID: "u-2"}}, sessions, audit, nil, nil)
	ctx := context.Background()

	store := sessions.Open("c1")
	store.Restore(ctx)
	_, err := uc.Login(ctx, store, domain.Credentials{})
	require.NoError(t, err)

	require.NoError(t, uc.ForceLogout(ctx, "c1", "stale", "/agent/nope"))
	assert.True(t, repo.records["c1"].Complete())

	require.NoError(t, uc.ForceLogout(ctx, "c2", "stale", "/agent/nope"))
	assert.Equal(t, []domain.AuditKind{domain.AuditLogin}, audit.kinds())
}
