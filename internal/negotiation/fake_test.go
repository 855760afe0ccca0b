package negotiation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cwrk-planet/roomsync/internal/signaling"
)

// fakePC повторяет правила signaling state браузера: offer поверх
// have-local-offer без rollback — ошибка, кандидат до remote — ошибка.
type fakePC struct {
	mu   sync.Mutex
	name string

	signaling string
	local     *Description
	remote    *Description

	tracks     []string
	candidates []ICECandidate
	rollbacks  int
	offers     int
	closed     bool

	fail    map[string]error
	panicOn string

	onICE   func(ICECandidate)
	onState func(ConnState)
	onTrack func(RemoteTrack)
}

func newFakePC(name string) *fakePC {
	return &fakePC{name: name, signaling: "stable", fail: map[string]error{}}
}

func (f *fakePC) check(op string) error {
	if op == f.panicOn {
		panic("fake " + op)
	}
	if err := f.fail[op]; err != nil {
		return err
	}
	if f.closed {
		return errors.New("closed")
	}
	return nil
}

func (f *fakePC) AddTrack(t Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("AddTrack"); err != nil {
		return err
	}
	for _, id := range f.tracks {
		if id == t.ID() {
			return fmt.Errorf("track %s already added", id)
		}
	}
	f.tracks = append(f.tracks, t.ID())
	return nil
}

func (f *fakePC) CreateOffer() (Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateOffer"); err != nil {
		return Description{}, err
	}
	f.offers++
	return Description{Type: SDPOffer, SDP: fmt.Sprintf("offer-%s-%d", f.name, f.offers)}, nil
}

func (f *fakePC) CreateAnswer() (Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateAnswer"); err != nil {
		return Description{}, err
	}
	if f.signaling != "have-remote-offer" {
		return Description{}, fmt.Errorf("create answer in %s", f.signaling)
	}
	return Description{Type: SDPAnswer, SDP: "answer-" + f.name}, nil
}

func (f *fakePC) SetLocalDescription(d Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("SetLocalDescription"); err != nil {
		return err
	}
	switch {
	case d.Type == SDPOffer && f.signaling == "stable":
		f.signaling = "have-local-offer"
	case d.Type == SDPAnswer && f.signaling == "have-remote-offer":
		f.signaling = "stable"
	default:
		return fmt.Errorf("set local %s in %s", d.Type, f.signaling)
	}
	f.local = &d
	return nil
}

func (f *fakePC) SetRemoteDescription(d Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("SetRemoteDescription"); err != nil {
		return err
	}
	switch {
	case d.Type == SDPOffer && (f.signaling == "stable" || f.signaling == "have-remote-offer"):
		f.signaling = "have-remote-offer"
	case d.Type == SDPAnswer && f.signaling == "have-local-offer":
		f.signaling = "stable"
	default:
		return fmt.Errorf("set remote %s in %s", d.Type, f.signaling)
	}
	f.remote = &d
	return nil
}

func (f *fakePC) Rollback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Rollback"); err != nil {
		return err
	}
	if f.signaling != "have-local-offer" {
		return fmt.Errorf("rollback in %s", f.signaling)
	}
	f.signaling = "stable"
	f.local = nil
	f.rollbacks++
	return nil
}

func (f *fakePC) AddICECandidate(c ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("AddICECandidate"); err != nil {
		return err
	}
	if f.remote == nil {
		return errors.New("remote description not set")
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakePC) OnICECandidate(fn func(ICECandidate))       { f.onICE = fn }
func (f *fakePC) OnTrack(fn func(RemoteTrack))               { f.onTrack = fn }
func (f *fakePC) OnConnectionStateChange(fn func(ConnState)) { f.onState = fn }

// Close не зовёт onState синхронно, как и pion.
func (f *fakePC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type pcView struct {
	signaling  string
	local      *Description
	remote     *Description
	tracks     []string
	candidates []ICECandidate
	rollbacks  int
	offers     int
	closed     bool
}

func (f *fakePC) view() pcView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pcView{
		signaling:  f.signaling,
		local:      f.local,
		remote:     f.remote,
		tracks:     append([]string(nil), f.tracks...),
		candidates: append([]ICECandidate(nil), f.candidates...),
		rollbacks:  f.rollbacks,
		offers:     f.offers,
		closed:     f.closed,
	}
}

// fakeFactory запоминает все созданные соединения.
type fakeFactory struct {
	mu   sync.Mutex
	name string
	pcs  []*fakePC
	err  error
	prep func(*fakePC)
}

func (ff *fakeFactory) New() (PeerConnection, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.err != nil {
		return nil, ff.err
	}
	pc := newFakePC(fmt.Sprintf("%s%d", ff.name, len(ff.pcs)+1))
	if ff.prep != nil {
		ff.prep(pc)
	}
	ff.pcs = append(ff.pcs, pc)
	return pc, nil
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.pcs)
}

func (ff *fakeFactory) last() *fakePC {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.pcs[len(ff.pcs)-1]
}

type fakeTrack struct{ id string }

func (t fakeTrack) ID() string       { return t.id }
func (t fakeTrack) StreamID() string { return "local" }

type fakeMedia struct{}

func (fakeMedia) Tracks() []Track {
	return []Track{fakeTrack{"audio"}, fakeTrack{"video"}}
}

type sent struct {
	event   string
	payload signaling.SignalPayload
}

// outbox — Sender, складывающий сообщения в очередь.
type outbox struct {
	mu   sync.Mutex
	msgs []sent
}

func (o *outbox) Send(event string, payload any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	sp, ok := payload.(signaling.SignalPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	o.msgs = append(o.msgs, sent{event: event, payload: sp})
	return nil
}

func (o *outbox) take() []sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.msgs
	o.msgs = nil
	return out
}

func (o *outbox) events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.msgs))
	for i, m := range o.msgs {
		out[i] = m.event
	}
	return out
}

func descOf(t *testing.T, sp signaling.SignalPayload) Description {
	t.Helper()
	var d Description
	if err := json.Unmarshal(sp.SDP, &d); err != nil {
		t.Fatalf("decode sdp: %v", err)
	}
	return d
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// side — Manager с фейками, как его видит тест.
type side struct {
	id      string
	mgr     *Manager
	factory *fakeFactory
	out     *outbox
}

func newSide(id string) *side {
	s := &side{id: id, factory: &fakeFactory{name: id}, out: &outbox{}}
	s.mgr = NewManager(Config{
		RoomID:            "room-1",
		LocalID:           id,
		NewPeerConnection: s.factory.New,
		Media:             fakeMedia{},
		Sender:            s.out,
		Logger:            quietLog(),
	})
	return s
}

// deliver переносит всё из outbox from в manager to, как это сделал бы хаб.
func deliver(from, to *side) int {
	msgs := from.out.take()
	for _, m := range msgs {
		if m.payload.To != "" && m.payload.To != to.id {
			continue
		}
		p := m.payload
		p.From = from.id
		to.mgr.HandleSignal(m.event, p)
	}
	return len(msgs)
}
