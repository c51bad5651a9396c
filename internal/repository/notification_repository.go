package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationFilter captures listing parameters for a single recipient.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository persists in-app notification records.
//
// MarkRead and MarkAllRead only touch rows where read=FALSE, which makes them
// idempotent and keeps read_at as the timestamp of the first read.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, type, ticket_id, message)
        VALUES ($1,$2,$3,$4)
        RETURNING id, read, created_at`
	return r.pool.QueryRow(ctx, query,
		notification.UserID,
		notification.Type,
		notification.TicketID,
		notification.Message,
	).Scan(&notification.ID, &notification.Read, &notification.CreatedAt)
}

func (r *notificationRepository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Notification, error) {
	const query = `
        SELECT id, user_id, type, ticket_id, message, read, created_at, read_at
        FROM notifications WHERE id=$1 AND user_id=$2`
	var notification domain.Notification
	if err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Type,
		&notification.TicketID,
		&notification.Message,
		&notification.Read,
		&notification.CreatedAt,
		&notification.ReadAt,
	); err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, type, ticket_id, message, read, created_at, read_at
        FROM notifications WHERE user_id=$1`
	if filter.UnreadOnly {
		query += ` AND read=FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND read=FALSE`
	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (int64, error) {
	const query = `
        UPDATE notifications SET read=TRUE, read_at=NOW()
        WHERE id=$1 AND user_id=$2 AND read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `
        UPDATE notifications SET read=TRUE, read_at=NOW()
        WHERE user_id=$1 AND read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.TicketID,
			&notification.Message,
			&notification.Read,
			&notification.CreatedAt,
			&notification.ReadAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}
