package usecase

import (
	"context"

	"github.com/fastygo/portal/domain"
)

// AuditSink records session transitions. Implementations must not block the request
// path on primary storage outages.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// NopAudit discards every event.
type NopAudit struct{}

func (NopAudit) Record(context.Context, domain.AuditEvent) error { return nil }
