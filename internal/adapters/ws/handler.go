package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	httpinfra "blog-backend/internal/infra/http"
	"blog-backend/internal/infra/metrics"
)

// Handler принимает websocket-подключения к потоку уведомлений.
type Handler struct {
	hub      *Hub
	resolver domain.IdentityResolver
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler создаёт обработчик эндпоинта уведомлений.
func NewHandler(hub *Hub, resolver domain.IdentityResolver, cfg Config, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// аутентификация по токену, cookie не используются
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP проверяет токен до апгрейда: без личности соединение не создаётся.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ident, err := h.resolver.Resolve(r.Context(), httpinfra.BearerToken(r))
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws: подключение отклонено")
		httpinfra.WriteError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", ident.UserID).Msg("ws: апгрейд не удался")
		return
	}

	client := newClient(conn, ident.UserID, h.cfg, h.log)
	metrics.LiveConnections.Inc()
	h.hub.Join(ident.UserID, client)
	defer func() {
		h.hub.Leave(ident.UserID, client)
		client.close()
		metrics.LiveConnections.Dec()
	}()

	go client.writePump(h.hub.Done())
	client.readPump()
}
