package domain

import (
	"context"
	"time"
)

// UserRepo управляет учётными записями.
type UserRepo interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
}

// PostRepo управляет постами, лайками и просмотрами.
type PostRepo interface {
	CreatePost(ctx context.Context, authorID int64, in PostInput) (Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	ListPosts(ctx context.Context) ([]Post, error)
	UpdatePost(ctx context.Context, id int64, in PostInput) (Post, error)
	DeletePost(ctx context.Context, id int64) error
	AddLike(ctx context.Context, userID, postID int64) error
	RemoveLike(ctx context.Context, userID, postID int64) error
	AddView(ctx context.Context, userID, postID int64) error
}

// CommentRepo управляет комментариями.
type CommentRepo interface {
	CreateComment(ctx context.Context, c Comment) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	ListPostComments(ctx context.Context, postID int64) ([]Comment, error)
	UpdateComment(ctx context.Context, id int64, content string) (Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// NotificationRepo — долговременное хранилище уведомлений.
type NotificationRepo interface {
	CreateNotification(ctx context.Context, userID int64, message string) (Notification, error)
	GetNotification(ctx context.Context, id int64) (Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
}

// PreferenceRepo хранит настройки доставки уведомлений.
type PreferenceRepo interface {
	GetPreference(ctx context.Context, userID int64) (NotificationPreference, error)
	SavePreference(ctx context.Context, pref NotificationPreference) error
}

// AnalyticsRepo считает сводные показатели.
type AnalyticsRepo interface {
	CountAnalytics(ctx context.Context) (Analytics, error)
}

// Cache — общее key/value хранилище с TTL.
// Get возвращает ErrCacheMiss, если ключа нет.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// ConnHandle — одно живое соединение пользователя, доступное для отправки.
// Send не должен блокироваться на медленном клиенте.
type ConnHandle interface {
	Send(payload []byte) error
}

// Broadcaster хранит группы соединений по пользователю и рассылает по ним.
type Broadcaster interface {
	Join(userID int64, h ConnHandle)
	Leave(userID int64, h ConnHandle)
	// Broadcast возвращает число соединений, принявших сообщение в очередь.
	Broadcast(ctx context.Context, userID int64, payload []byte) int
}

// Notifier создаёт уведомление и доставляет его пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) (Notification, error)
}

// IdentityResolver определяет пользователя по токену доступа.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Identity — результат проверки токена.
type Identity struct {
	UserID  int64
	IsStaff bool
}
