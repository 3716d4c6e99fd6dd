package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrClientClosed — соединение уже закрывается.
	ErrClientClosed = errors.New("ws: client closed")
	// ErrSlowConsumer — очередь клиента переполнена, сообщение отброшено.
	ErrSlowConsumer = errors.New("ws: send queue full")
)

const maxInboundMessage = 4096

// Config задаёт параметры соединения.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	return c
}

// Client — одно websocket-соединение пользователя.
// Писать в conn может только writePump, поэтому кадры уходят в порядке очереди.
type Client struct {
	conn   *websocket.Conn
	userID int64
	cfg    Config
	log    zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID int64, cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		cfg:    cfg,
		log:    logger.With().Int64("user_id", userID).Logger(),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Send ставит сообщение в очередь и никогда не блокируется.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump отправляет очередь и пинги, пока клиент или реестр не закроются.
func (c *Client) writePump(shutdown <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug().Err(err).Msg("ws: запись не удалась")
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		case <-shutdown:
			c.writeClose(websocket.CloseGoingAway)
			c.close()
			return
		case <-c.done:
			c.writeClose(websocket.CloseNormalClosure)
			return
		}
	}
}

func (c *Client) writeClose(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
}

// readPump читает и отбрасывает входящие кадры; канал только для push.
// Возвращается, когда соединение закрыто или протух pong.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("ws: соединение оборвано")
			}
			return
		}
	}
}
