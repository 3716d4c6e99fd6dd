package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

const notificationColumns = `id, user_id, message, is_read, created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt)
	return n, err
}

// CreateNotification реализует domain.NotificationRepo.
func (p *Postgres) CreateNotification(ctx context.Context, userID int64, message string) (domain.Notification, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	n, err := scanNotification(p.pool.QueryRow(ctx, `
INSERT INTO notifications (user_id, message)
VALUES ($1, $2)
RETURNING `+notificationColumns, userID, message))
	metrics.ObserveNetworkRequest("postgres", "notifications_insert", "notifications", start, err)
	if err != nil {
		return domain.Notification{}, storageErr("создание уведомления", err)
	}
	return n, nil
}

// GetNotification реализует domain.NotificationRepo.
func (p *Postgres) GetNotification(ctx context.Context, id int64) (domain.Notification, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	n, err := scanNotification(p.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "notifications_get", "notifications", start, err)
	if err != nil {
		return domain.Notification{}, storageErr("получение уведомления", err)
	}
	return n, nil
}

// ListNotifications реализует domain.NotificationRepo.
func (p *Postgres) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+notificationColumns+`
FROM notifications
WHERE user_id = $1 AND ($2 = FALSE OR NOT is_read)
ORDER BY created_at DESC, id DESC
`, userID, unreadOnly)
	metrics.ObserveNetworkRequest("postgres", "notifications_list", "notifications", start, err)
	if err != nil {
		return nil, storageErr("список уведомлений", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, storageErr("чтение уведомления", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("список уведомлений", err)
	}
	return out, nil
}

// MarkNotificationRead реализует domain.NotificationRepo.
func (p *Postgres) MarkNotificationRead(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "notifications_mark_read", "notifications", start, err)
	if err != nil {
		return storageErr("отметка прочтения", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead реализует domain.NotificationRepo.
func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	metrics.ObserveNetworkRequest("postgres", "notifications_mark_all_read", "notifications", start, err)
	return storageErr("отметка прочтения", err)
}

// GetPreference реализует domain.PreferenceRepo. Отсутствие строки означает настройки по умолчанию.
func (p *Postgres) GetPreference(ctx context.Context, userID int64) (domain.NotificationPreference, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	pref := domain.NotificationPreference{UserID: userID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT email_notifications, push_notifications
FROM notification_preferences WHERE user_id = $1
`, userID).Scan(&pref.EmailNotifications, &pref.PushNotifications)
	metrics.ObserveNetworkRequest("postgres", "preferences_get", "notification_preferences", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPreference(userID), nil
	}
	if err != nil {
		return domain.NotificationPreference{}, storageErr("получение настроек", err)
	}
	return pref, nil
}

// SavePreference реализует domain.PreferenceRepo.
func (p *Postgres) SavePreference(ctx context.Context, pref domain.NotificationPreference) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO notification_preferences (user_id, email_notifications, push_notifications)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
    email_notifications = EXCLUDED.email_notifications,
    push_notifications = EXCLUDED.push_notifications
`, pref.UserID, pref.EmailNotifications, pref.PushNotifications)
	metrics.ObserveNetworkRequest("postgres", "preferences_upsert", "notification_preferences", start, err)
	return storageErr("сохранение настроек", err)
}
