package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

var ErrClosed = errors.New("signaling: client closed")

// Handler получает payload события. Вызывается из read pump по одному,
// в порядке прихода кадров.
type Handler func(payload json.RawMessage)

// Client — одно websocket-соединение с хабом.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	outgoing chan []byte

	subsMu sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64

	connID string
	ready  chan struct{}

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
}

// Dial открывает соединение и запускает read/write pump.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		log:      log,
		outgoing: make(chan []byte, sendBuffer),
		subs:     make(map[string]map[uint64]Handler),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// ConnectionID ждёт сообщение connected и возвращает id соединения на хабе.
func (c *Client) ConnectionID(ctx context.Context) (string, error) {
	select {
	case <-c.ready:
		return c.connID, nil
	case <-c.readDone:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe регистрирует обработчик события. Снимается через Unsubscribe.
func (c *Client) Subscribe(event string, fn Handler) *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.nextID++
	id := c.nextID
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]Handler)
	}
	c.subs[event][id] = fn
	return &Subscription{client: c, event: event, id: id}
}

func (c *Client) unsubscribe(event string, id uint64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	delete(c.subs[event], id)
	if len(c.subs[event]) == 0 {
		delete(c.subs, event)
	}
}

// handlers — снимок подписчиков в порядке подписки.
func (c *Client) handlers(event string) []Handler {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	ids := make([]uint64, 0, len(c.subs[event]))
	for id := range c.subs[event] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler, len(ids))
	for i, id := range ids {
		out[i] = c.subs[event][id]
	}
	return out
}

// Send ставит событие в очередь записи.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(outEnvelope{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.readDone:
		return ErrClosed
	}
}

// Done закрывается, когда соединение перестало читать.
func (c *Client) Done() <-chan struct{} {
	return c.readDone
}

// Close идемпотентен. Можно вызывать из обработчика.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Client) readPump() {
	defer func() {
		close(c.readDone)
		_ = c.Close()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("signaling read failed", "err", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug("signaling bad frame", "err", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	if env.Type == EventConnected && c.connID == "" {
		var p ConnectedPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil && p.ConnectionID != "" {
			c.connID = p.ConnectionID
			close(c.ready)
		}
	}

	for _, fn := range c.handlers(env.Type) {
		c.safeCall(env.Type, fn, env.Payload)
	}
}

func (c *Client) safeCall(event string, fn Handler, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("signaling handler panic", "event", event, "panic", r)
		}
	}()
	fn(payload)
}

// writePump — единственный писатель в сокет.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drain()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.readDone:
			return
		}
	}
}

// drain дописывает то, что успело попасть в очередь до Close.
func (c *Client) drain() {
	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Subscription — handle подписки на событие.
type Subscription struct {
	client *Client
	event  string
	id     uint64
	once   sync.Once
}

func (s *Subscription) Event() string { return s.event }

// Unsubscribe идемпотентен.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.unsubscribe(s.event, s.id)
	})
}
