package negotiation

// State — состояние согласования с одним удалённым участником.
type State int

const (
	StateNew State = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal: Closed и Failed не переиспользуются.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

type SDPType string

const (
	SDPOffer    SDPType = "offer"
	SDPAnswer   SDPType = "answer"
	SDPRollback SDPType = "rollback"
)

// Description — {type, sdp}, в том же виде, что RTCSessionDescriptionInit.
type Description struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// ICECandidate — RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// ConnState — состояние транспорта peer connection.
type ConnState string

const (
	ConnNew          ConnState = "new"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnFailed       ConnState = "failed"
	ConnClosed       ConnState = "closed"
)

// Track — локальный медиатрек. Конкретный тип знает только адаптер.
type Track interface {
	ID() string
	StreamID() string
}

// RemoteTrack — входящий трек удалённого участника.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     string
}

// PeerConnection — то, что state machine нужно от нативного media API.
type PeerConnection interface {
	AddTrack(t Track) error
	CreateOffer() (Description, error)
	CreateAnswer() (Description, error)
	SetLocalDescription(d Description) error
	SetRemoteDescription(d Description) error
	// Rollback откатывает неотвеченный локальный offer.
	Rollback() error
	AddICECandidate(c ICECandidate) error

	OnICECandidate(fn func(ICECandidate))
	OnTrack(fn func(RemoteTrack))
	OnConnectionStateChange(fn func(ConnState))

	Close() error
}

// Factory создаёт новое соединение (со списком ICE серверов внутри).
type Factory func() (PeerConnection, error)

// MediaSource отдаёт локальные треки. Треки общие для всех peer'ов
// одного клиента, соединения — нет.
type MediaSource interface {
	Tracks() []Track
}

// Sender — канал до хаба. *signaling.Client его реализует.
type Sender interface {
	Send(event string, payload any) error
}
