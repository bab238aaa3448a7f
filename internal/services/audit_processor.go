package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/internal/infrastructure/buffer"
	"github.com/fastygo/portal/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// AuditProcessor writes session events to Postgres and parks them in the local buffer
// while Postgres is unreachable. A cron job replays the buffer.
type AuditProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	events  repository.AuditRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewAuditProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	events repository.AuditRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *AuditProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ap := &AuditProcessor{
		store:   store,
		monitor: monitor,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ap.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := ap.Drain(ctx); err != nil {
			ap.logger.Error("audit buffer drain failed", zap.Error(err))
		}
	})
	_, _ = ap.cron.AddFunc("@hourly", func() {
		dropped, err := ap.store.Expire(time.Now().Add(-ap.cfg.Retention))
		if err != nil {
			ap.logger.Error("audit buffer expiry failed", zap.Error(err))
			return
		}
		if dropped > 0 {
			ap.logger.Warn("expired buffered session events", zap.Int("count", dropped))
		}
	})

	return ap
}

// Start launches the cron scheduler.
func (ap *AuditProcessor) Start() {
	if ap == nil || ap.cron == nil {
		return
	}
	ap.cron.Start()
	ap.logger.Info("audit processor started")
}

// Stop waits for a running drain to finish or ctx to expire.
func (ap *AuditProcessor) Stop(ctx context.Context) {
	if ap == nil || ap.cron == nil {
		return
	}
	stopCtx := ap.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ap.logger.Info("audit processor stopped")
}

// Drain replays one batch of buffered events.
func (ap *AuditProcessor) Drain(ctx context.Context) error {
	if ap == nil || ap.store == nil {
		return nil
	}
	if ap.monitor != nil && !ap.monitor.IsOnline() {
		ap.logger.Debug("skipping audit drain (offline)")
		return nil
	}

	items, err := ap.store.Peek(ap.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ap.apply(ctx, item); err != nil {
			ap.logger.Error("failed to replay session event",
				zap.String("item_id", item.ID),
				zap.String("client_id", item.ClientID),
				zap.Error(err))

			item.Retries++
			if item.Retries >= ap.cfg.MaxRetries {
				ap.logger.Warn("dropping session event (max retries reached)", zap.String("item_id", item.ID))
				_ = ap.store.Remove(item)
				continue
			}
			if err := ap.store.Requeue(item); err != nil {
				ap.logger.Error("failed to requeue session event", zap.Error(err))
			}
			continue
		}

		if err := ap.store.Remove(item); err != nil {
			ap.logger.Warn("failed to purge replayed session event", zap.Error(err))
		}
	}
	return nil
}

// Submit writes the event now, or buffers it when Postgres is offline or the write fails.
func (ap *AuditProcessor) Submit(ctx context.Context, event domain.AuditEvent) error {
	if ap == nil || ap.store == nil {
		return fmt.Errorf("audit processor not configured")
	}
	event.Touch()
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:        event.ID,
		ClientID:  event.ClientID,
		Entity:    buffer.EntitySessionEvent,
		Operation: buffer.OperationCreate,
		Data:      payload,
		Priority:  priorityOf(event.Kind),
		Timestamp: event.CreatedAt,
	}

	if ap.monitor == nil || ap.monitor.IsOnline() {
		err := ap.apply(ctx, item)
		if err == nil {
			return nil
		}
		ap.logger.Warn("immediate audit write failed, buffering", zap.Error(err))
	}
	return ap.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (ap *AuditProcessor) Size() int {
	if ap == nil || ap.store == nil {
		return 0
	}
	size, err := ap.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (ap *AuditProcessor) apply(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch item.Entity {
	case buffer.EntitySessionEvent:
		var event domain.AuditEvent
		if err := json.Unmarshal(item.Data, &event); err != nil {
			return err
		}
		return ap.events.Insert(ctx, &event)
	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}

// Forced logouts and logins replay first.
func priorityOf(kind domain.AuditKind) int {
	switch kind {
	case domain.AuditForcedLogout, domain.AuditLogin, domain.AuditLogout:
		return 1
	default:
		return 3
	}
}
