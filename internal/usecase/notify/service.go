// Package notify сохраняет уведомления и доставляет их в живые соединения.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// lockStripes — число полос блокировок по пользователям.
const lockStripes = 64

// Service — диспетчер уведомлений.
//
// Запись в БД и рассылка для одного пользователя идут под одной полосой
// блокировки, поэтому клиенты получают уведомления в порядке сохранения.
type Service struct {
	notifications domain.NotificationRepo
	prefs         domain.PreferenceRepo
	hub           domain.Broadcaster
	log           zerolog.Logger

	users domain.UserRepo
	mail  domain.MailQueue

	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

var _ domain.Notifier = (*Service)(nil)

// Option настраивает сервис.
type Option func(*Service)

// WithMail включает постановку писем в очередь для пользователей с email-уведомлениями.
func WithMail(queue domain.MailQueue, users domain.UserRepo) Option {
	return func(s *Service) {
		s.mail = queue
		s.users = users
	}
}

// NewService создаёт диспетчер.
func NewService(notifications domain.NotificationRepo, prefs domain.PreferenceRepo, hub domain.Broadcaster, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		notifications: notifications,
		prefs:         prefs,
		hub:           hub,
		log:           logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lockFor(userID int64) *sync.Mutex {
	return &s.locks[uint64(userID)%lockStripes]
}

// Notify сохраняет уведомление и пытается доставить его сразу.
// Ошибка возвращается только если запись не сохранилась; доставка best effort.
func (s *Service) Notify(ctx context.Context, userID int64, message string) (domain.Notification, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	n, err := s.notifications.CreateNotification(ctx, userID, message)
	if err != nil {
		mu.Unlock()
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return domain.Notification{}, fmt.Errorf("сохранение уведомления: %w", err)
	}
	metrics.NotificationsCreated.Inc()

	// доставка не должна обрываться вместе с запросом, который её вызвал
	deliverCtx := context.WithoutCancel(ctx)
	pref := s.preference(deliverCtx, userID)
	if pref.PushNotifications {
		s.push(deliverCtx, n)
	}
	mu.Unlock()

	if pref.EmailNotifications {
		s.enqueueMail(deliverCtx, n)
	}
	return n, nil
}

// preference возвращает настройки; при ошибке чтения считаем каналы включёнными.
func (s *Service) preference(ctx context.Context, userID int64) domain.NotificationPreference {
	if s.prefs == nil {
		return domain.DefaultPreference(userID)
	}
	pref, err := s.prefs.GetPreference(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("notify: настройки недоступны, используем по умолчанию")
		return domain.DefaultPreference(userID)
	}
	return pref
}

func (s *Service) push(ctx context.Context, n domain.Notification) {
	payload, err := json.Marshal(n.Payload())
	if err != nil {
		s.log.Error().Err(err).Int64("notification_id", n.ID).Msg("notify: не удалось сериализовать уведомление")
		return
	}
	delivered := s.hub.Broadcast(ctx, n.UserID, payload)
	s.log.Debug().
		Int64("user_id", n.UserID).
		Int64("notification_id", n.ID).
		Int("connections", delivered).
		Msg("notify: уведомление разослано")
}

func (s *Service) enqueueMail(ctx context.Context, n domain.Notification) {
	if s.mail == nil || s.users == nil {
		return
	}
	user, err := s.users.GetUserByID(ctx, n.UserID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", n.UserID).Msg("notify: получатель письма не найден")
		return
	}
	if user.Email == "" {
		return
	}
	job := domain.MailJob{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Email:          user.Email,
		Subject:        "New notification",
		Body:           n.Message,
		NotificationID: n.ID,
		RequestedAt:    s.now().UTC(),
	}
	if err := s.mail.Enqueue(ctx, job); err != nil {
		metrics.MailJobs.WithLabelValues("enqueue_failed").Inc()
		s.log.Warn().Err(err).Str("job_id", job.ID).Int64("user_id", user.ID).Msg("notify: письмо не поставлено в очередь")
		return
	}
	metrics.MailJobs.WithLabelValues("enqueued").Inc()
}

// MarkRead отмечает уведомление прочитанным. Для чужого уведомления возвращает domain.ErrForbidden.
func (s *Service) MarkRead(ctx context.Context, notificationID, requesterID int64) error {
	n, err := s.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("получение уведомления: %w", err)
	}
	if n.UserID != requesterID {
		return domain.ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	if err := s.notifications.MarkNotificationRead(ctx, notificationID); err != nil {
		return fmt.Errorf("отметка прочтения: %w", err)
	}
	return nil
}

// MarkAllRead отмечает прочитанными все уведомления пользователя.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) error {
	if err := s.notifications.MarkAllNotificationsRead(ctx, userID); err != nil {
		return fmt.Errorf("отметка прочтения: %w", err)
	}
	return nil
}

// List возвращает уведомления пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.list(ctx, userID, false)
}

// ListUnread возвращает только непрочитанные.
func (s *Service) ListUnread(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.list(ctx, userID, true)
}

func (s *Service) list(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	items, err := s.notifications.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("список уведомлений: %w", err)
	}
	return items, nil
}

// Preferences возвращает настройки доставки.
func (s *Service) Preferences(ctx context.Context, userID int64) (domain.NotificationPreference, error) {
	pref, err := s.prefs.GetPreference(ctx, userID)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("получение настроек: %w", err)
	}
	return pref, nil
}

// UpdatePreferences применяет частичное обновление настроек.
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, patch domain.PreferencePatch) (domain.NotificationPreference, error) {
	pref, err := s.Preferences(ctx, userID)
	if err != nil {
		return domain.NotificationPreference{}, err
	}
	pref.UserID = userID
	if patch.EmailNotifications != nil {
		pref.EmailNotifications = *patch.EmailNotifications
	}
	if patch.PushNotifications != nil {
		pref.PushNotifications = *patch.PushNotifications
	}
	if err := s.prefs.SavePreference(ctx, pref); err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("сохранение настроек: %w", err)
	}
	return pref, nil
}
