package domain

import "time"

// User описывает учётную запись блога.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
}

// Registration — данные регистрации.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Credentials — данные входа.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Post представляет запись блога вместе с агрегатом лайков.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"author_id"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostInput содержит изменяемые поля поста.
type PostInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

// Comment хранится плоско: ответы ссылаются на родителя через ParentID.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post"`
	AuthorID  int64     `json:"author_id"`
	ParentID  *int64    `json:"parent"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentInput — данные нового комментария или ответа.
type CommentInput struct {
	PostID   int64  `json:"post" validate:"required,gt=0"`
	ParentID *int64 `json:"parent" validate:"omitempty,gt=0"`
	Content  string `json:"content" validate:"required"`
}

// CommentUpdate — изменяемые поля комментария.
type CommentUpdate struct {
	Content string `json:"content" validate:"required"`
}

// CommentNode — комментарий с восстановленным деревом ответов.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}

// Like фиксирует отметку пользователя на посте.
type Like struct {
	UserID    int64
	PostID    int64
	CreatedAt time.Time
}

// PostView фиксирует просмотр поста авторизованным пользователем.
type PostView struct {
	UserID    int64
	PostID    int64
	CreatedAt time.Time
}

// Notification — долговременная запись уведомления пользователя.
type Notification struct {
	ID        int64
	UserID    int64
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// NotificationPayload — формат уведомления для клиента (push и REST).
type NotificationPayload struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Payload переводит запись в клиентский формат.
func (n Notification) Payload() NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// NotificationPreference хранит каналы доставки, выбранные пользователем.
type NotificationPreference struct {
	UserID             int64 `json:"-"`
	EmailNotifications bool  `json:"email_notifications"`
	PushNotifications  bool  `json:"push_notifications"`
}

// DefaultPreference возвращает настройки для пользователя без сохранённой записи.
func DefaultPreference(userID int64) NotificationPreference {
	return NotificationPreference{UserID: userID, EmailNotifications: true, PushNotifications: true}
}

// PreferencePatch описывает частичное обновление настроек.
type PreferencePatch struct {
	EmailNotifications *bool `json:"email_notifications"`
	PushNotifications  *bool `json:"push_notifications"`
}

// Analytics содержит сводные счётчики для администраторов.
type Analytics struct {
	ActiveUsers   int64 `json:"active_users"`
	TotalPosts    int64 `json:"total_posts"`
	TotalComments int64 `json:"total_comments"`
	TotalLikes    int64 `json:"total_likes"`
	TotalViews    int64 `json:"total_views"`
}
