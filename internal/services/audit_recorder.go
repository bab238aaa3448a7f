package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/usecase"
)

// AuditRecorder adapts the processor to the use-case AuditSink port and logs every
// event it is handed.
type AuditRecorder struct {
	processor *AuditProcessor
	logger    *zap.Logger
}

func NewAuditRecorder(processor *AuditProcessor, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{processor: processor, logger: logger}
}

func (r *AuditRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.ClientID == "" || event.Kind == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.logger.Info("session event",
		zap.String("kind", string(event.Kind)),
		zap.String("client_id", event.ClientID),
		zap.String("user_id", event.UserID),
		zap.String("role", string(event.Role)),
		zap.String("path", event.Path))

	if r.processor == nil {
		return nil
	}
	return r.processor.Submit(ctx, event)
}

var _ usecase.AuditSink = (*AuditRecorder)(nil)
