package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventhub/internal/domain"
)

type notificationRepository struct {
	DB *sql.DB
}

func NewNotificationRepository(db *sql.DB) domain.NotificationRepository {
	return &notificationRepository{DB: db}
}

const notificationColumns = `id, recipient_id, message, type, related_event_id, is_read, rejection_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var typ string
	var related, reason sql.NullString
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Message, &typ, &related, &n.IsRead, &reason, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	n.RelatedEventID = related.String
	n.RejectionReason = reason.String
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, message, type, related_event_id, rejection_reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`
	return r.DB.QueryRowContext(ctx, query,
		n.RecipientID, n.Message, string(n.Type), nullString(n.RelatedEventID), nullString(n.RejectionReason),
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, page domain.PaginationParams) ([]*domain.Notification, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND (NOT $2 OR is_read = FALSE)`
	if err := r.DB.QueryRowContext(ctx, countQuery, recipientID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.DB.QueryContext(ctx, query, recipientID, unreadOnly, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`
	err := r.DB.QueryRowContext(ctx, query, recipientID).Scan(&n)
	return n, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING ` + notificationColumns
	n, err := scanNotification(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`
	result, err := r.DB.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM notifications WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, domain.ErrNotFound)
}
