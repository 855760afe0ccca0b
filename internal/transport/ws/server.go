package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrConnClosed   = errors.New("ws: connection closed")
	ErrSlowConsumer = errors.New("ws: send queue overflow")
)

type Config struct {
	PingPeriod     time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int

	// token bucket на входящие кадры
	MessagesPerSecond float64
	Burst             int
	// после стольких отброшенных кадров соединение закрывается
	MaxViolations int

	AllowedOrigins []string // пусто или "*" — любой Origin
}

func (c *Config) withDefaults() {
	if c.PingPeriod <= 0 {
		c.PingPeriod = 15 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 100
	}
	if c.Burst <= 0 {
		c.Burst = 200
	}
	if c.MaxViolations <= 0 {
		c.MaxViolations = 1000
	}
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	svc      RoomSvc
	cfg      Config
	log      *slog.Logger
}

func NewServer(hub *Hub, svc RoomSvc, cfg Config, log *slog.Logger) *Server {
	cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		hub: hub,
		svc: svc,
		cfg: cfg,
		log: log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// HandleWS: GET /ws. Соединение получает uuid и живёт, пока жив read loop.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), s.cfg)
	sess := s.openSession(c)
	sess.log.Debug("ws connected", "remote", conn.RemoteAddr().String())

	go c.writePump()
	_ = c.Send(Message{Type: TypeConnected, Payload: ConnectedPayload{ConnectionID: c.ID()}})
	s.readLoop(r.Context(), sess, c)

	// disconnect отрабатывает даже после отмены запроса
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	s.closeSession(ctx, sess)

	if err := c.Close(); err != nil && !errors.Is(err, ErrConnClosed) {
		sess.log.Debug("ws close failed", "err", err)
	}
	select {
	case <-c.done:
	case <-time.After(s.cfg.WriteWait):
	}
	sess.log.Debug("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, sess *session, c *wsConn) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	violations := 0

	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingPeriod))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingPeriod))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Debug("ws read failed", "err", err)
			}
			return
		}

		if !limiter.Allow() {
			violations++
			if violations%100 == 1 {
				sess.log.Warn("ws rate limit exceeded", "violations", violations)
			}
			if violations > s.cfg.MaxViolations {
				sess.log.Warn("ws disconnecting for excessive rate limit violations")
				return
			}
			continue
		}

		s.dispatch(ctx, sess, data)
	}
}

// --- соединение ---

type wsConn struct {
	conn *websocket.Conn
	id   string
	cfg  Config

	mu     sync.Mutex
	send   chan Message
	closed bool
	done   chan struct{}
}

func newWsConn(conn *websocket.Conn, id string, cfg Config) *wsConn {
	return &wsConn{
		conn: conn,
		id:   id,
		cfg:  cfg,
		send: make(chan Message, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		// медленный клиент: закрываем, read loop сам отработает disconnect
		c.closeLocked()
		return ErrSlowConsumer
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	c.closeLocked()
	return nil
}

func (c *wsConn) closeLocked() {
	c.closed = true
	close(c.send)
}

// writePump — единственный писатель в сокет: сообщения в порядке очереди и пинги.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
