// Package api реализует REST поверх chi: посты, комментарии, лайки, уведомления и аналитика.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"blog-backend/internal/domain"
	httpinfra "blog-backend/internal/infra/http"
	"blog-backend/internal/usecase/accounts"
	"blog-backend/internal/usecase/analytics"
	"blog-backend/internal/usecase/comments"
	"blog-backend/internal/usecase/notify"
	"blog-backend/internal/usecase/posts"
)

const requestTimeout = 30 * time.Second

// Deps — сервисы, которые обслуживает API.
type Deps struct {
	Accounts      *accounts.Service
	Posts         *posts.Service
	Comments      *comments.Service
	Notifications *notify.Service
	Analytics     *analytics.Service
	Resolver      domain.IdentityResolver
	// Live — websocket-эндпоинт уведомлений.
	Live http.Handler
}

// Handler регистрирует маршруты API.
type Handler struct {
	deps Deps
	log  zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	return &Handler{deps: deps, log: logger}
}

// Mount вешает маршруты на роутер. Websocket идёт мимо таймаута запроса.
func (h *Handler) Mount(r chi.Router) {
	if h.deps.Live != nil {
		r.Handle("/ws/notifications", h.deps.Live)
		r.Handle("/ws/notifications/", h.deps.Live)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(httpinfra.Authenticate(h.deps.Resolver))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Get("/posts", h.listPosts)
		r.Get("/posts/{id}", h.getPost)
		r.Get("/posts/{id}/comments", h.postComments)
		r.Get("/comments/{id}", h.getComment)

		r.Group(func(r chi.Router) {
			r.Use(httpinfra.RequireIdentity)

			r.Post("/auth/logout", h.logout)

			r.Post("/posts", h.createPost)
			r.Put("/posts/{id}", h.updatePost)
			r.Delete("/posts/{id}", h.deletePost)
			r.Post("/posts/{id}/like", h.likePost)
			r.Delete("/posts/{id}/like", h.unlikePost)

			r.Post("/comments", h.createComment)
			r.Put("/comments/{id}", h.updateComment)
			r.Delete("/comments/{id}", h.deleteComment)

			r.Get("/notifications", h.listNotifications)
			r.Get("/notifications/unread", h.listUnread)
			r.Post("/notifications/read-all", h.markAllRead)
			r.Get("/notifications/preferences", h.getPreferences)
			r.Patch("/notifications/preferences", h.updatePreferences)
			r.Patch("/notifications/{id}/read", h.markRead)

			r.Get("/analytics", h.analytics)
		})
	})
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.deps.Accounts.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.Credentials
	if !h.decode(w, r, &in) {
		return
	}
	token, err := h.deps.Accounts.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"access": token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Accounts.Logout(r.Context(), httpinfra.BearerToken(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Posts.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := paginate(r, items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	post, err := h.deps.Posts.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ident, ok := httpinfra.IdentityFrom(r.Context()); ok {
		if err := h.deps.Posts.RecordView(r.Context(), id, ident.UserID); err != nil {
			h.log.Warn().Err(err).Int64("post_id", id).Msg("api: просмотр не сохранён")
		}
	}
	httpinfra.WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var in domain.PostInput
	if !h.decode(w, r, &in) {
		return
	}
	post, err := h.deps.Posts.Create(r.Context(), identity(r).UserID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in domain.PostInput
	if !h.decode(w, r, &in) {
		return
	}
	post, err := h.deps.Posts.Update(r.Context(), id, identity(r).UserID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Posts.Delete(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) likePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Posts.Like(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]string{"status": "liked"})
}

func (h *Handler) unlikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Posts.Unlike(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tree, err := h.deps.Comments.ListForPost(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, tree)
}

func (h *Handler) getComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	node, err := h.deps.Comments.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, node)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	var in domain.CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.deps.Comments.Create(r.Context(), identity(r).UserID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in domain.CommentUpdate
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.deps.Comments.Update(r.Context(), id, identity(r).UserID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Comments.Delete(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Notifications.List(r.Context(), identity(r).UserID)
	h.writeNotifications(w, r, items, err)
}

func (h *Handler) listUnread(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Notifications.ListUnread(r.Context(), identity(r).UserID)
	h.writeNotifications(w, r, items, err)
}

func (h *Handler) writeNotifications(w http.ResponseWriter, r *http.Request, items []domain.Notification, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payloads := lo.Map(items, func(n domain.Notification, _ int) domain.NotificationPayload {
		return n.Payload()
	})
	httpinfra.WriteJSON(w, http.StatusOK, payloads)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Notifications.MarkRead(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Notifications.MarkAllRead(r.Context(), identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	pref, err := h.deps.Notifications.Preferences(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, pref)
}

func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch domain.PreferencePatch
	if !h.decode(w, r, &patch) {
		return
	}
	pref, err := h.deps.Notifications.UpdatePreferences(r.Context(), identity(r).UserID, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, pref)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Analytics.Summary(r.Context(), identity(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, a)
}

// identity вызывается только за RequireIdentity.
func identity(r *http.Request) domain.Identity {
	ident, _ := httpinfra.IdentityFrom(r.Context())
	return ident
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpinfra.WriteError(w, http.StatusNotFound, domain.ErrNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.Join(domain.ErrInvalidInput, err))
		return false
	}
	return true
}

// fail переводит доменную ошибку в HTTP-статус.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrAlreadyLiked), errors.Is(err, domain.ErrNotLiked):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUserExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: ошибка запроса")
		httpinfra.WriteError(w, status, errors.New("internal error"))
		return
	}
	httpinfra.WriteError(w, status, err)
}
