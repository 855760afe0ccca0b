package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cwrk-planet/roomsync/internal/signaling"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

type Config struct {
	RoomID  string
	LocalID string // id своего соединения на хабе

	NewPeerConnection Factory
	Media             MediaSource
	Sender            Sender
	Logger            *slog.Logger

	OnRemoteTrack func(remoteID string, t RemoteTrack)
}

// Manager держит по одному Peer на удалённое соединение.
type Manager struct {
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	peers  map[string]*Peer
	closed bool
}

func NewManager(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:   cfg,
		log:   log.With(logger.Room(cfg.RoomID), "local", cfg.LocalID),
		peers: make(map[string]*Peer),
	}
}

// HandleJoined — удалённый участник вошёл в звонок, мы инициатор.
// Живой peer делает событие no-op, закрытый или упавший заменяется.
func (m *Manager) HandleJoined(remoteID string) {
	if remoteID == "" || remoteID == m.cfg.LocalID {
		return
	}
	p, fresh, err := m.acquire(remoteID)
	if err != nil {
		m.log.Warn("peer create failed", logger.Peer(remoteID), "err", err)
		return
	}
	if !fresh {
		m.log.Debug("peer already negotiating, join ignored", logger.Peer(remoteID), "state", p.State().String())
		return
	}
	if err := p.Start(); err != nil {
		m.log.Warn("offer failed", logger.Peer(remoteID), "err", err)
	}
}

// HandleLeft закрывает и забывает peer.
func (m *Manager) HandleLeft(remoteID string) {
	m.mu.Lock()
	p, ok := m.peers[remoteID]
	delete(m.peers, remoteID)
	m.mu.Unlock()

	if ok {
		p.Close()
		m.log.Debug("peer left", logger.Peer(remoteID))
	}
}

// HandleSignal разбирает rtc-offer/rtc-answer/rtc-ice от хаба.
// Ошибки только логируются: попытка прерывается, соседние peer'ы живут.
func (m *Manager) HandleSignal(event string, sp signaling.SignalPayload) {
	if sp.From == "" || sp.From == m.cfg.LocalID {
		return
	}
	if err := m.handleSignal(event, sp); err != nil {
		m.log.Warn("negotiation step failed", logger.Peer(sp.From), "event", event, "err", err)
	}
}

func (m *Manager) handleSignal(event string, sp signaling.SignalPayload) error {
	switch event {
	case signaling.EventRTCOffer:
		var d Description
		if err := json.Unmarshal(sp.SDP, &d); err != nil {
			return fmt.Errorf("decode offer: %w", err)
		}
		p, _, err := m.acquire(sp.From)
		if err != nil {
			return err
		}
		return p.HandleOffer(d)

	case signaling.EventRTCAnswer:
		var d Description
		if err := json.Unmarshal(sp.SDP, &d); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		p := m.peer(sp.From)
		if p == nil {
			m.log.Debug("answer for unknown peer ignored", logger.Peer(sp.From))
			return nil
		}
		return p.HandleAnswer(d)

	case signaling.EventRTCICE:
		var c ICECandidate
		if err := json.Unmarshal(sp.Candidate, &c); err != nil {
			return fmt.Errorf("decode candidate: %w", err)
		}
		p := m.peer(sp.From)
		if p == nil {
			m.log.Debug("candidate for unknown peer dropped", logger.Peer(sp.From))
			return nil
		}
		return p.AddCandidate(c)
	}
	return fmt.Errorf("unknown signal %q", event)
}

var errManagerClosed = errors.New("negotiation: manager closed")

// acquire возвращает живой peer или создаёт новый в New.
func (m *Manager) acquire(remoteID string) (*Peer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, errManagerClosed
	}
	if p, ok := m.peers[remoteID]; ok {
		if !p.State().Terminal() {
			return p, false, nil
		}
		delete(m.peers, remoteID)
	}

	pc, err := m.cfg.NewPeerConnection()
	if err != nil {
		return nil, false, fmt.Errorf("new peer connection: %w", err)
	}
	var tracks []Track
	if m.cfg.Media != nil {
		tracks = m.cfg.Media.Tracks()
	}
	p := newPeer(peerOpts{
		roomID:       m.cfg.RoomID,
		localID:      m.cfg.LocalID,
		remoteID:     remoteID,
		pc:           pc,
		send:         m.cfg.Sender,
		log:          m.log,
		tracks:       tracks,
		onTrack:      m.cfg.OnRemoteTrack,
		onTerminated: m.forget,
	})
	m.peers[remoteID] = p
	return p, true, nil
}

func (m *Manager) peer(remoteID string) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[remoteID]
}

// forget убирает peer, если он всё ещё текущий для своего id.
func (m *Manager) forget(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.peers[p.remoteID] == p {
		delete(m.peers, p.remoteID)
	}
}

// State — состояние peer'а или false, если его нет.
func (m *Manager) State(remoteID string) (State, bool) {
	p := m.peer(remoteID)
	if p == nil {
		return 0, false
	}
	return p.State(), true
}

// Peers — id удалённых соединений, отсортированы.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close закрывает все соединения. Дальнейшие события игнорируются.
func (m *Manager) Close() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*Peer)
	m.closed = true
	m.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
}
