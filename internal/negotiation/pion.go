package negotiation

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// PionFactory создаёт соединения pion с заданными ICE серверами.
func PionFactory(servers []ICEServer) Factory {
	ice := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		if len(s.URLs) == 0 {
			continue
		}
		ice = append(ice, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	cfg := webrtc.Configuration{ICEServers: ice}
	return func() (PeerConnection, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return &pionConn{cfg: cfg, pc: pc}, nil
	}
}

// pionConn помнит конфиг, колбэки и дорожки: pion не умеет rollback из
// have-local-offer, поэтому откат пересобирает соединение целиком.
type pionConn struct {
	cfg webrtc.Configuration
	pc  *webrtc.PeerConnection

	tracks  []webrtc.TrackLocal
	onICE   func(ICECandidate)
	onTrack func(RemoteTrack)
	onState func(ConnState)

	// rebuilds — сколько раз соединение пересобиралось после rollback
	rebuilds int
}

func (c *pionConn) AddTrack(t Track) error {
	tl, ok := t.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("track %s is not a pion local track", t.ID())
	}
	if _, err := c.pc.AddTrack(tl); err != nil {
		return err
	}
	c.tracks = append(c.tracks, tl)
	return nil
}

func (c *pionConn) CreateOffer() (Description, error) {
	sd, err := c.pc.CreateOffer(nil)
	if err != nil {
		return Description{}, err
	}
	return fromPion(sd), nil
}

func (c *pionConn) CreateAnswer() (Description, error) {
	sd, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, err
	}
	return fromPion(sd), nil
}

// SetLocalDescription запускает trickle ICE: кандидаты придут в OnICECandidate.
func (c *pionConn) SetLocalDescription(d Description) error {
	return c.pc.SetLocalDescription(toPion(d))
}

func (c *pionConn) SetRemoteDescription(d Description) error {
	return c.pc.SetRemoteDescription(toPion(d))
}

// Rollback закрывает соединение с висящим offer и поднимает новое с тем же
// конфигом, колбэками и дорожками. Старое соединение глушится до Close,
// иначе его closed дойдёт до Peer и тот станет терминальным.
func (c *pionConn) Rollback() error {
	if c.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return fmt.Errorf("rollback in %s", c.pc.SignalingState())
	}

	fresh, err := webrtc.NewPeerConnection(c.cfg)
	if err != nil {
		return fmt.Errorf("rebuild peer connection: %w", err)
	}
	for _, tl := range c.tracks {
		if _, err := fresh.AddTrack(tl); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("re-add track %s: %w", tl.ID(), err)
		}
	}

	old := c.pc
	old.OnICECandidate(func(*webrtc.ICECandidate) {})
	old.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {})
	old.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
	_ = old.Close()

	c.pc = fresh
	c.rebuilds++
	if c.onICE != nil {
		c.OnICECandidate(c.onICE)
	}
	if c.onTrack != nil {
		c.OnTrack(c.onTrack)
	}
	if c.onState != nil {
		c.OnConnectionStateChange(c.onState)
	}
	return nil
}

func (c *pionConn) AddICECandidate(ic ICECandidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        ic.Candidate,
		SDPMid:           ic.SDPMid,
		SDPMLineIndex:    ic.SDPMLineIndex,
		UsernameFragment: ic.UsernameFragment,
	})
}

func (c *pionConn) OnICECandidate(fn func(ICECandidate)) {
	c.onICE = fn
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil — сбор кандидатов закончен
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		fn(ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (c *pionConn) OnTrack(fn func(RemoteTrack)) {
	c.onTrack = fn
	c.pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(RemoteTrack{ID: t.ID(), StreamID: t.StreamID(), Kind: t.Kind().String()})
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(ConnState)) {
	c.onState = fn
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(ConnState(s.String()))
	})
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

func toPion(d Description) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(d.Type)), SDP: d.SDP}
}

func fromPion(sd webrtc.SessionDescription) Description {
	return Description{Type: SDPType(sd.Type.String()), SDP: sd.SDP}
}
