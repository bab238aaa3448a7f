package repository

import (
	"context"

	"github.com/fastygo/portal/domain"
)

type AuditFilter struct {
	ClientID string
	UserID   string
	Limit    int
}

type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error)
}
