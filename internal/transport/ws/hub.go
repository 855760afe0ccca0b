package ws

import (
	"sort"
	"sync"
)

// Conn — соединение, которому хаб может отправить сообщение.
// Send не блокируется: сообщение встаёт в очередь соединения.
type Conn interface {
	ID() string
	Send(msg Message) error
	Close() error
}

type group struct {
	// mu держится на время рассылки, поэтому все участники комнаты видят
	// сообщения в одном и том же порядке.
	mu      sync.Mutex
	members map[string]Conn
}

// Hub — комнаты (группы соединений) и приватные каналы соединений.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]*group
	conns  map[string]Conn
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]*group),
		conns:  make(map[string]Conn),
	}
}

// Register открывает приватный канал соединения (его id).
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.ID()]; ok && cur == c {
		delete(h.conns, c.ID())
	}
}

// Subscription — членство соединения в группе. Close снимает его ровно один раз.
type Subscription struct {
	hub    *Hub
	roomID string
	conn   Conn
	once   sync.Once
}

func (s *Subscription) RoomID() string { return s.roomID }

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.leave(s.roomID, s.conn) })
}

// Join добавляет соединение в группу комнаты.
func (h *Hub) Join(roomID string, c Conn) *Subscription {
	h.mu.Lock()
	g, ok := h.groups[roomID]
	if !ok {
		g = &group{members: make(map[string]Conn)}
		h.groups[roomID] = g
	}
	g.mu.Lock()
	g.members[c.ID()] = c
	g.mu.Unlock()
	h.mu.Unlock()

	return &Subscription{hub: h, roomID: roomID, conn: c}
}

func (h *Hub) leave(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[roomID]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, c.ID())
	empty := len(g.members) == 0
	g.mu.Unlock()
	if empty {
		delete(h.groups, roomID)
	}
}

// EmitToGroup рассылает msg всем в группе, кроме exclude (id соединения,
// пустая строка — никого не исключать). Возвращает число получателей.
func (h *Hub) EmitToGroup(roomID string, msg Message, exclude string) int {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for id, c := range g.members {
		if id == exclude {
			continue
		}
		if err := c.Send(msg); err == nil {
			n++
		}
	}
	return n
}

// EmitToConnection пишет в приватный канал соединения.
func (h *Hub) EmitToConnection(connID string, msg Message) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(msg) == nil
}

func (h *Hub) IsMember(roomID, connID string) bool {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok = g.members[connID]
	return ok
}

// Members — id соединений группы, отсортированные.
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	g.mu.Lock()
	ids := make([]string, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
