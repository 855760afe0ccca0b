package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/roomsync/internal/signaling"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

var (
	ErrPeerClosed   = errors.New("negotiation: peer closed")
	ErrWrongState   = errors.New("negotiation: wrong state")
	ErrStepPanic    = errors.New("negotiation: step panicked")
	errWrongSDPType = errors.New("negotiation: unexpected sdp type")
)

// Peer — согласование с одним удалённым соединением.
// Все шаги идут под mu, колбэки нативного API mu не держат.
type Peer struct {
	mu sync.Mutex

	roomID   string
	localID  string
	remoteID string

	pc     PeerConnection
	send   Sender
	log    *slog.Logger
	tracks []Track

	state        State
	tracksAdded  bool
	remoteSet    bool
	pending      []ICECandidate
	onTerminated func(*Peer)
}

type peerOpts struct {
	roomID   string
	localID  string
	remoteID string
	pc       PeerConnection
	send     Sender
	log      *slog.Logger
	tracks   []Track

	onTrack      func(remoteID string, t RemoteTrack)
	onTerminated func(*Peer)
}

func newPeer(o peerOpts) *Peer {
	p := &Peer{
		roomID:       o.roomID,
		localID:      o.localID,
		remoteID:     o.remoteID,
		pc:           o.pc,
		send:         o.send,
		log:          o.log.With(logger.Peer(o.remoteID)),
		tracks:       o.tracks,
		state:        StateNew,
		onTerminated: o.onTerminated,
	}

	p.pc.OnICECandidate(p.sendCandidate)
	p.pc.OnConnectionStateChange(p.onConnState)
	if o.onTrack != nil {
		p.pc.OnTrack(func(t RemoteTrack) { o.onTrack(p.remoteID, t) })
	}
	return p
}

func (p *Peer) RemoteID() string { return p.remoteID }

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// polite: меньший id соединения уступает при glare.
func (p *Peer) polite() bool {
	return p.localID < p.remoteID
}

// guard переводит панику шага в ошибку, чтобы не уронить процесс.
func (p *Peer) guard(step string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s: %v", ErrStepPanic, step, r)
	}
}

// Start: New -> HaveLocalOffer. Локальная сторона инициатор.
func (p *Peer) Start() (err error) {
	defer p.guard("start", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNew {
		return fmt.Errorf("%w: start in %s", ErrWrongState, p.state)
	}
	if err := p.addTracks(); err != nil {
		return err
	}
	offer, err := p.pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	p.state = StateHaveLocalOffer
	return p.sendDescription(signaling.EventRTCOffer, offer)
}

// HandleOffer применяет удалённый offer и отвечает. В HaveLocalOffer
// решает glare: вежливая сторона откатывается, невежливая игнорирует.
func (p *Peer) HandleOffer(offer Description) (err error) {
	defer p.guard("offer", &err)

	if offer.Type != SDPOffer {
		return fmt.Errorf("%w: %q in rtc-offer", errWrongSDPType, offer.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed, StateFailed:
		return ErrPeerClosed
	case StateHaveLocalOffer:
		if !p.polite() {
			p.log.Debug("glare: keeping own offer, incoming discarded")
			return nil
		}
		p.log.Debug("glare: rolling back own offer")
		if err := p.pc.Rollback(); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		p.state = StateStable
	}

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	p.state = StateHaveRemoteOffer
	p.remoteSet = true
	p.flushCandidates()

	if err := p.addTracks(); err != nil {
		return err
	}
	answer, err := p.pc.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	p.state = StateStable
	return p.sendDescription(signaling.EventRTCAnswer, answer)
}

// HandleAnswer: только в HaveLocalOffer, иначе ответ устаревший.
func (p *Peer) HandleAnswer(answer Description) (err error) {
	defer p.guard("answer", &err)

	if answer.Type != SDPAnswer {
		return fmt.Errorf("%w: %q in rtc-answer", errWrongSDPType, answer.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateHaveLocalOffer:
	case StateClosed, StateFailed:
		return ErrPeerClosed
	default:
		p.log.Debug("stale answer ignored", "state", p.state.String())
		return nil
	}

	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	p.state = StateStable
	p.remoteSet = true
	p.flushCandidates()
	return nil
}

// AddCandidate: до remote description кандидаты копятся в pending.
func (p *Peer) AddCandidate(c ICECandidate) (err error) {
	defer p.guard("ice", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return ErrPeerClosed
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		return nil
	}
	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

func (p *Peer) flushCandidates() {
	pending := p.pending
	p.pending = nil
	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.log.Warn("buffered candidate rejected", "err", err)
		}
	}
}

func (p *Peer) addTracks() error {
	if p.tracksAdded {
		return nil
	}
	for _, t := range p.tracks {
		if err := p.pc.AddTrack(t); err != nil {
			return fmt.Errorf("add track %s: %w", t.ID(), err)
		}
	}
	p.tracksAdded = true
	return nil
}

func (p *Peer) sendDescription(event string, d Description) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return p.send.Send(event, signaling.SignalPayload{
		RoomID: p.roomID,
		To:     p.remoteID,
		SDP:    raw,
	})
}

func (p *Peer) sendCandidate(c ICECandidate) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	err = p.send.Send(signaling.EventRTCICE, signaling.SignalPayload{
		RoomID:    p.roomID,
		To:        p.remoteID,
		Candidate: raw,
	})
	if err != nil {
		p.log.Debug("send candidate failed", "err", err)
	}
}

// onConnState: failed/closed терминальны, ICE restart не делаем.
func (p *Peer) onConnState(s ConnState) {
	var next State
	switch s {
	case ConnFailed:
		next = StateFailed
	case ConnClosed:
		next = StateClosed
	default:
		return
	}

	if !p.terminate(next) {
		return
	}
	p.log.Info("peer connection ended", "conn_state", string(s))
	if p.onTerminated != nil {
		p.onTerminated(p)
	}
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (p *Peer) Close() {
	p.terminate(StateClosed)
}

func (p *Peer) terminate(next State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return false
	}
	p.state = next
	p.pending = nil
	if err := p.pc.Close(); err != nil {
		p.log.Debug("peer close failed", "err", err)
	}
	return true
}
