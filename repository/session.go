package repository

import (
	"context"

	"github.com/fastygo/portal/domain"
)

// SessionRepository persists the durable session record of each browser client.
// Replace and Clear must apply all identity keys as one unit.
type SessionRepository interface {
	Load(ctx context.Context, clientID string) (domain.Record, error)
	Replace(ctx context.Context, clientID string, record domain.Record) error
	Clear(ctx context.Context, clientID string) error
	SetFlag(ctx context.Context, clientID, key, value string) error
	SetRedirect(ctx context.Context, clientID, target string) error
	// TakeRedirect returns the pending redirect target and deletes it. An empty
	// string means none was pending.
	TakeRedirect(ctx context.Context, clientID string) (string, error)
}
