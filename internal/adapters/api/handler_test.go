package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"blog-backend/internal/adapters/repo"
	"blog-backend/internal/adapters/ws"
	"blog-backend/internal/domain"
	"blog-backend/internal/infra/auth"
	"blog-backend/internal/infra/cache"
	httpinfra "blog-backend/internal/infra/http"
	"blog-backend/internal/usecase/accounts"
	"blog-backend/internal/usecase/analytics"
	"blog-backend/internal/usecase/comments"
	"blog-backend/internal/usecase/notify"
	"blog-backend/internal/usecase/posts"
)

type testEnv struct {
	srv *httptest.Server
	mem *repo.Memory
	hub *ws.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := zerolog.Nop()
	mem := repo.NewMemory()
	hub := ws.NewHub(logger)
	store := cache.NewRedis(client)
	tokens := auth.NewTokenManager("test-secret", time.Hour, auth.WithRevocations(store))
	notifier := notify.NewService(mem, mem, hub, logger)
	postCache := posts.NewCache(mem, store, 0, logger)

	deps := Deps{
		Accounts:      accounts.NewService(mem, tokens),
		Posts:         posts.NewService(mem, postCache, notifier, logger),
		Comments:      comments.NewService(mem, mem, notifier, logger),
		Notifications: notifier,
		Analytics:     analytics.NewService(mem),
		Resolver:      tokens,
		Live:          ws.NewHandler(hub, tokens, ws.Config{}, logger),
	}
	server := httpinfra.NewServer(logger)
	NewHandler(deps, logger).Mount(server.Router)
	ts := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		_ = client.Close()
	})
	return &testEnv{srv: ts, mem: mem, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type account struct {
	id    int64
	token string
}

func (e *testEnv) signup(t *testing.T, name string) account {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var user userResponse
	require.NoError(t, json.Unmarshal(body, &user))

	return account{id: user.ID, token: e.login(t, name)}
}

func (e *testEnv) login(t *testing.T, name string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": name, "password": "password123",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	return out["access"]
}

func (e *testEnv) createPost(t *testing.T, who account, title string) domain.Post {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/posts", who.token, domain.PostInput{Title: title, Content: "content"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var post domain.Post
	require.NoError(t, json.Unmarshal(body, &post))
	return post
}

func (e *testEnv) getPost(t *testing.T, id int64) domain.Post {
	t.Helper()
	status, body := e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), "", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var post domain.Post
	require.NoError(t, json.Unmarshal(body, &post))
	return post
}

func (e *testEnv) notifications(t *testing.T, who account, path string) []domain.NotificationPayload {
	t.Helper()
	status, body := e.do(t, http.MethodGet, path, who.token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var out []domain.NotificationPayload
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/notifications/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPostReadAfterWrite(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")

	post := e.createPost(t, alice, "A")
	require.Equal(t, "A", e.getPost(t, post.ID).Title)

	status, _ := e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", post.ID), alice.token, domain.PostInput{Title: "B", Content: "content"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "B", e.getPost(t, post.ID).Title)

	status, _ = e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", post.ID), bob.token, domain.PostInput{Title: "C", Content: "content"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, http.MethodPost, "/api/v1/posts", "", domain.PostInput{Title: "anon", Content: "x"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", post.ID), alice.token, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestPostListPagination(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	for i := 0; i < 12; i++ {
		e.createPost(t, alice, fmt.Sprintf("post %d", i))
	}

	status, body := e.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	var first Page[domain.Post]
	require.NoError(t, json.Unmarshal(body, &first))
	require.Equal(t, 12, first.Count)
	require.Len(t, first.Results, 10)
	require.Equal(t, "post 11", first.Results[0].Title)
	require.NotNil(t, first.Next)
	require.Nil(t, first.Previous)

	status, body = e.do(t, http.MethodGet, "/api/v1/posts?page=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	var second Page[domain.Post]
	require.NoError(t, json.Unmarshal(body, &second))
	require.Len(t, second.Results, 2)
	require.Nil(t, second.Next)
	require.NotNil(t, second.Previous)

	for _, page := range []string{"3", "0", "abc", "1844674407370955162", "9223372036854775807"} {
		status, _ = e.do(t, http.MethodGet, "/api/v1/posts?page="+page, "", nil)
		require.Equal(t, http.StatusNotFound, status, "page=%s", page)
	}
}

func TestPaginateRejectsOverflowingPage(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/posts?page=1844674407370955162", nil)
	_, err := paginate(r, items)
	require.ErrorIs(t, err, domain.ErrNotFound)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/posts?page=3", nil)
	page, err := paginate(r, items)
	require.NoError(t, err)
	require.Equal(t, []int{20, 21, 22, 23, 24}, page.Results)
	require.Nil(t, page.Next)
}

func TestLikeFlow(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")
	post := e.createPost(t, alice, "likeable")
	require.Equal(t, 0, e.getPost(t, post.ID).LikeCount)

	likePath := fmt.Sprintf("/api/v1/posts/%d/like", post.ID)
	status, _ := e.do(t, http.MethodPost, likePath, bob.token, nil)
	require.Equal(t, http.StatusCreated, status)
	status, _ = e.do(t, http.MethodPost, likePath, bob.token, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, 1, e.getPost(t, post.ID).LikeCount)

	status, _ = e.do(t, http.MethodDelete, likePath, bob.token, nil)
	require.Equal(t, http.StatusNoContent, status)
	require.Equal(t, 0, e.getPost(t, post.ID).LikeCount)

	got := e.notifications(t, alice, "/api/v1/notifications")
	require.Len(t, got, 1)
	require.Contains(t, got[0].Message, "likeable")
}

func TestCommentTreeAndNotifications(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")
	carol := e.signup(t, "carol")
	post := e.createPost(t, alice, "thread")

	status, body := e.do(t, http.MethodPost, "/api/v1/comments", bob.token, map[string]any{"post": post.ID, "content": "first"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var root domain.Comment
	require.NoError(t, json.Unmarshal(body, &root))

	status, body = e.do(t, http.MethodPost, "/api/v1/comments", carol.token, map[string]any{"post": post.ID, "content": "reply", "parent": root.ID})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/comments", post.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var tree []domain.CommentNode
	require.NoError(t, json.Unmarshal(body, &tree))
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	require.Equal(t, "reply", tree[0].Replies[0].Content)

	require.Len(t, e.notifications(t, alice, "/api/v1/notifications"), 2)
	require.Len(t, e.notifications(t, bob, "/api/v1/notifications"), 1)
	require.Empty(t, e.notifications(t, carol, "/api/v1/notifications"))

	status, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", root.ID), carol.token, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestLiveNotificationsAndMarkRead(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")
	post := e.createPost(t, alice, "live")

	first := e.dial(t, alice.token)
	second := e.dial(t, alice.token)
	require.Eventually(t, func() bool { return e.hub.Connections(alice.id) == 2 }, 2*time.Second, 10*time.Millisecond)

	status, _ := e.do(t, http.MethodPost, "/api/v1/comments", bob.token, map[string]any{"post": post.ID, "content": "hello"})
	require.Equal(t, http.StatusCreated, status)

	var pushed []domain.NotificationPayload
	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var p domain.NotificationPayload
		require.NoError(t, conn.ReadJSON(&p))
		require.False(t, p.IsRead)
		pushed = append(pushed, p)
	}
	require.Equal(t, pushed[0], pushed[1])

	stored := e.notifications(t, alice, "/api/v1/notifications/unread")
	require.Len(t, stored, 1)
	require.Equal(t, pushed[0].ID, stored[0].ID)

	readPath := fmt.Sprintf("/api/v1/notifications/%d/read", stored[0].ID)
	status, _ = e.do(t, http.MethodPatch, readPath, bob.token, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Len(t, e.notifications(t, alice, "/api/v1/notifications/unread"), 1)

	status, _ = e.do(t, http.MethodPatch, readPath, alice.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, e.notifications(t, alice, "/api/v1/notifications/unread"))
}

func TestPushPreferenceSuppressesLiveDelivery(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")
	post := e.createPost(t, alice, "quiet")

	status, body := e.do(t, http.MethodPatch, "/api/v1/notifications/preferences", alice.token, map[string]bool{"push_notifications": false})
	require.Equal(t, http.StatusOK, status, string(body))
	require.JSONEq(t, `{"email_notifications":true,"push_notifications":false}`, string(body))

	conn := e.dial(t, alice.token)
	require.Eventually(t, func() bool { return e.hub.Connections(alice.id) == 1 }, 2*time.Second, 10*time.Millisecond)

	status, _ = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", post.ID), bob.token, nil)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, e.notifications(t, alice, "/api/v1/notifications"), 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestAnalyticsIsStaffOnly(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	post := e.createPost(t, alice, "counted")
	status, _ := e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), alice.token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/analytics", alice.token, nil)
	require.Equal(t, http.StatusForbidden, status)

	e.mem.SetStaff(alice.id, true)
	staffToken := e.login(t, "alice")
	status, body := e.do(t, http.MethodGet, "/api/v1/analytics", staffToken, nil)
	require.Equal(t, http.StatusOK, status)
	var a domain.Analytics
	require.NoError(t, json.Unmarshal(body, &a))
	require.Equal(t, int64(1), a.ActiveUsers)
	require.Equal(t, int64(1), a.TotalPosts)
	require.Equal(t, int64(1), a.TotalViews)
}

func TestAuthErrors(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice")

	status, _ := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusConflict, status)

	status, _ = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/notifications", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/notifications/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signup(t, "alice")
	other := e.login(t, "alice")

	status, _ := e.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodPost, "/api/v1/auth/logout", alice.token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/notifications", alice.token, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/notifications/?token=" + alice.token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	status, _ = e.do(t, http.MethodGet, "/api/v1/notifications", other, nil)
	require.Equal(t, http.StatusOK, status)
}
