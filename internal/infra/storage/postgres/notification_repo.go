package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// NotificationRepo implements storage.NotificationRepository on PostgreSQL.
type NotificationRepo struct {
	db *sqlx.DB
}

func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db.DB}
}

// Save stores a delivered notification. ON CONFLICT DO NOTHING makes a
// redelivered event a no-op instead of a duplicate row.
func (r *NotificationRepo) Save(ctx context.Context, event *domain.NotificationEvent) error {
	var related uuid.NullUUID
	if event.RelatedUserID != nil {
		related = uuid.NullUUID{UUID: *event.RelatedUserID, Valid: true}
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, body, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.Type, event.Title, event.Body, related, event.CreatedAt,
	)
	return err
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, type, title, body, related_user_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.NotificationEvent
	for rows.Next() {
		var (
			ev      domain.NotificationEvent
			related uuid.NullUUID
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Type, &ev.Title, &ev.Body, &related, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if related.Valid {
			ev.RelatedUserID = &related.UUID
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
