package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/repository"
)

func TestAuditRepositoryInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepository(db)
	event := &domain.AuditEvent{
		ClientID: "c1",
		UserID:   "42",
		Role:     domain.RoleAgent,
		Kind:     domain.AuditLogin,
	}

	mock.ExpectExec("INSERT INTO session_events").
		WithArgs(sqlmock.AnyArg(), "c1", sqlmock.AnyArg(), sqlmock.AnyArg(), "login", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryInsertRejectsIncompleteEvent(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAuditRepository(db)
	err = repo.Insert(context.Background(), &domain.AuditEvent{Kind: domain.AuditLogout})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestAuditRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "client_id", "user_id", "role", "kind", "path", "created_at"}).
		AddRow("e1", "c1", "42", "client", "forced_logout", "/client/nope", now).
		AddRow("e2", "c1", nil, nil, "login_redirect", "/client/contract-list?x=1", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, client_id, user_id, role, kind, path, created_at FROM session_events").
		WithArgs("c1", "", 10).
		WillReturnRows(rows)

	repo := NewAuditRepository(db)
	events, err := repo.List(context.Background(), repository.AuditFilter{ClientID: "c1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AuditForcedLogout, events[0].Kind)
	assert.Equal(t, domain.RoleClient, events[0].Role)
	assert.Empty(t, events[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
