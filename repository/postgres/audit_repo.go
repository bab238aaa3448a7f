package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/repository"
)

const defaultListLimit = 100

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository instantiates a Postgres-backed session event log.
func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil || event.ClientID == "" || event.Kind == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO session_events (id, client_id, user_id, role, kind, path, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.ClientID,
		nullString(event.UserID),
		nullString(string(event.Role)),
		string(event.Kind),
		nullString(event.Path),
		nullTime(event.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	const query = `
		SELECT id, client_id, user_id, role, kind, path, created_at
		FROM session_events
		WHERE ($1 = '' OR client_id = $1) AND ($2 = '' OR user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, filter.ClientID, filter.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			ev                 domain.AuditEvent
			userID, role, path sql.NullString
			kind               string
		)
		if err := rows.Scan(&ev.ID, &ev.ClientID, &userID, &role, &kind, &path, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ev.UserID = userID.String
		ev.Role = domain.Role(role.String)
		ev.Kind = domain.AuditKind(kind)
		ev.Path = path.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return events, nil
}
