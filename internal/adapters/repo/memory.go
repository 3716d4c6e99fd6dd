package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"blog-backend/internal/domain"
)

// Memory — хранилище в памяти процесса для локального запуска без Postgres и для тестов.
type Memory struct {
	mu sync.Mutex

	seq           int64
	users         map[int64]domain.User
	posts         map[int64]domain.Post
	comments      map[int64]domain.Comment
	likes         map[[2]int64]time.Time
	views         []domain.PostView
	notifications map[int64]domain.Notification
	prefs         map[int64]domain.NotificationPreference
	events        []domain.BusinessMetric
}

var (
	_ domain.UserRepo           = (*Memory)(nil)
	_ domain.PostRepo           = (*Memory)(nil)
	_ domain.CommentRepo        = (*Memory)(nil)
	_ domain.NotificationRepo   = (*Memory)(nil)
	_ domain.PreferenceRepo     = (*Memory)(nil)
	_ domain.AnalyticsRepo      = (*Memory)(nil)
	_ domain.BusinessMetricRepo = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[int64]domain.User),
		posts:         make(map[int64]domain.Post),
		comments:      make(map[int64]domain.Comment),
		likes:         make(map[[2]int64]time.Time),
		notifications: make(map[int64]domain.Notification),
		prefs:         make(map[int64]domain.NotificationPreference),
	}
}

// next выдаёт id и время создания; время строго растёт, чтобы сортировка была стабильной.
func (m *Memory) next() (int64, time.Time) {
	m.seq++
	return m.seq, time.Now().UTC().Add(time.Duration(m.seq) * time.Microsecond)
}

func (m *Memory) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.User{}, domain.ErrUserExists
		}
	}
	user.ID, user.CreatedAt = m.next()
	user.IsActive = true
	m.users[user.ID] = user
	m.record(domain.BusinessMetric{Event: domain.BusinessMetricEventUserRegistered, UserID: &user.ID})
	return user, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *Memory) withLikes(p domain.Post) domain.Post {
	p.LikeCount = 0
	for k := range m.likes {
		if k[1] == p.ID {
			p.LikeCount++
		}
	}
	return p
}

func (m *Memory) CreatePost(_ context.Context, authorID int64, in domain.PostInput) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, now := m.next()
	p := domain.Post{ID: id, Title: in.Title, Content: in.Content, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	m.posts[id] = p
	m.record(domain.BusinessMetric{Event: domain.BusinessMetricEventPostPublished, UserID: &authorID, PostID: &id})
	return p, nil
}

func (m *Memory) GetPost(_ context.Context, id int64) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return m.withLikes(p), nil
}

func (m *Memory) ListPosts(context.Context) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, m.withLikes(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdatePost(_ context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	p.Title, p.Content, p.UpdatedAt = in.Title, in.Content, time.Now().UTC()
	m.posts[id] = p
	return m.withLikes(p), nil
}

func (m *Memory) DeletePost(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.posts, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	for k := range m.likes {
		if k[1] == id {
			delete(m.likes, k)
		}
	}
	return nil
}

func (m *Memory) AddLike(_ context.Context, userID, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return domain.ErrNotFound
	}
	k := [2]int64{userID, postID}
	if _, ok := m.likes[k]; ok {
		return domain.ErrAlreadyLiked
	}
	m.likes[k] = time.Now().UTC()
	m.record(domain.BusinessMetric{Event: domain.BusinessMetricEventPostLiked, UserID: &userID, PostID: &postID})
	return nil
}

func (m *Memory) RemoveLike(_ context.Context, userID, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]int64{userID, postID}
	if _, ok := m.likes[k]; !ok {
		return domain.ErrNotLiked
	}
	delete(m.likes, k)
	return nil
}

func (m *Memory) AddView(_ context.Context, userID, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return domain.ErrNotFound
	}
	m.views = append(m.views, domain.PostView{UserID: userID, PostID: postID, CreatedAt: time.Now().UTC()})
	return nil
}

func (m *Memory) CreateComment(_ context.Context, c domain.Comment) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[c.PostID]; !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	c.ID, c.CreatedAt = m.next()
	c.UpdatedAt = c.CreatedAt
	m.comments[c.ID] = c
	m.record(domain.BusinessMetric{Event: domain.BusinessMetricEventCommentCreated, UserID: &c.AuthorID, PostID: &c.PostID})
	return c, nil
}

func (m *Memory) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListPostComments(_ context.Context, postID int64) ([]domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateComment(_ context.Context, id int64, content string) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	c.Content, c.UpdatedAt = content, time.Now().UTC()
	m.comments[id] = c
	return c, nil
}

// DeleteComment удаляет комментарий и всю ветку ответов.
func (m *Memory) DeleteComment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return domain.ErrNotFound
	}
	pending := []int64{id}
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]
		delete(m.comments, cur)
		for cid, c := range m.comments {
			if c.ParentID != nil && *c.ParentID == cur {
				pending = append(pending, cid)
			}
		}
	}
	return nil
}

func (m *Memory) CreateNotification(_ context.Context, userID int64, message string) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, now := m.next()
	n := domain.Notification{ID: id, UserID: userID, Message: message, CreatedAt: now}
	m.notifications[id] = n
	return n, nil
}

func (m *Memory) GetNotification(_ context.Context, id int64) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (m *Memory) ListNotifications(_ context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.IsRead = true
	m.notifications[id] = n
	return nil
}

func (m *Memory) MarkAllNotificationsRead(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
		}
	}
	return nil
}

func (m *Memory) GetPreference(_ context.Context, userID int64) (domain.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return domain.DefaultPreference(userID), nil
}

func (m *Memory) SavePreference(_ context.Context, pref domain.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = pref
	return nil
}

func (m *Memory) CountAnalytics(context.Context) (domain.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var a domain.Analytics
	for _, u := range m.users {
		if u.IsActive {
			a.ActiveUsers++
		}
	}
	a.TotalPosts = int64(len(m.posts))
	a.TotalComments = int64(len(m.comments))
	a.TotalLikes = int64(len(m.likes))
	a.TotalViews = int64(len(m.views))
	return a, nil
}

// SetStaff выдаёт или снимает права персонала. Postgres-аналога нет: права выдаются в БД напрямую.
func (m *Memory) SetStaff(userID int64, staff bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.IsStaff = staff
		m.users[userID] = u
	}
}

// record вызывается под m.mu.
func (m *Memory) record(metric domain.BusinessMetric) {
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}
	m.events = append(m.events, metric)
}

func (m *Memory) RecordBusinessMetric(_ context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(metric)
	return nil
}

// BusinessMetrics возвращает копию журнала событий.
func (m *Memory) BusinessMetrics() []domain.BusinessMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BusinessMetric(nil), m.events...)
}
