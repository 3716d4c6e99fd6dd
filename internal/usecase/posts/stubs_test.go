package posts

import (
	"context"
	"sort"
	"sync"
	"time"

	"blog-backend/internal/domain"
)

type likeKey struct{ user, post int64 }

type memPosts struct {
	mu        sync.Mutex
	nextID    int64
	posts     map[int64]domain.Post
	likes     map[likeKey]bool
	views     int
	getCalls  int
	listCalls int
	getHook   func()
}

func newMemPosts() *memPosts {
	return &memPosts{posts: make(map[int64]domain.Post), likes: make(map[likeKey]bool)}
}

func (m *memPosts) withLikes(p domain.Post) domain.Post {
	p.LikeCount = 0
	for k := range m.likes {
		if k.post == p.ID {
			p.LikeCount++
		}
	}
	return p
}

func (m *memPosts) CreatePost(_ context.Context, authorID int64, in domain.PostInput) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	p := domain.Post{ID: m.nextID, Title: in.Title, Content: in.Content, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	m.posts[p.ID] = p
	return p, nil
}

func (m *memPosts) GetPost(_ context.Context, id int64) (domain.Post, error) {
	m.mu.Lock()
	m.getCalls++
	p, ok := m.posts[id]
	if ok {
		p = m.withLikes(p)
	}
	hook := m.getHook
	m.getHook = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) ListPosts(context.Context) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, m.withLikes(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memPosts) UpdatePost(_ context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	p.Title, p.Content, p.UpdatedAt = in.Title, in.Content, time.Now()
	m.posts[id] = p
	return m.withLikes(p), nil
}

func (m *memPosts) DeletePost(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memPosts) AddLike(_ context.Context, userID, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := likeKey{userID, postID}
	if m.likes[k] {
		return domain.ErrAlreadyLiked
	}
	m.likes[k] = true
	return nil
}

func (m *memPosts) RemoveLike(_ context.Context, userID, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := likeKey{userID, postID}
	if !m.likes[k] {
		return domain.ErrNotLiked
	}
	delete(m.likes, k)
	return nil
}

func (m *memPosts) AddView(context.Context, int64, int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views++
	return nil
}

func (m *memPosts) calls() (get, list int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls, m.listCalls
}

type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	delErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Once(context.Context, string, time.Duration, func() error) error {
	return nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type notification struct {
	userID  int64
	message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, message string) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID, message})
	return domain.Notification{ID: int64(len(f.sent)), UserID: userID, Message: message}, nil
}
