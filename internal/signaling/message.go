package signaling

import (
	"encoding/json"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

// События комнатного канала, как их видит клиент.
const (
	EventConnected          = "connected"
	EventJoin               = "join"
	EventJoinCall           = "join-call"
	EventLeaveCall          = "leave-call"
	EventTabChange          = "tab-change"
	EventDocChange          = "doc-change"
	EventRTCOffer           = "rtc-offer"
	EventRTCAnswer          = "rtc-answer"
	EventRTCICE             = "rtc-ice"
	EventParticipantsUpdate = "participants-update"
	EventTabChanged         = "tab-changed"
	EventDocumentsUpdated   = "documents-updated"
	EventCallUserJoined     = "call-user-joined"
	EventCallUserLeft       = "call-user-left"
)

// Envelope — кадр {type, payload}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinPayload struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type TabChangePayload struct {
	RoomID string     `json:"roomId"`
	Tab    domain.Tab `json:"tab"`
}

type DocChangePayload struct {
	RoomID string               `json:"roomId"`
	Patch  domain.DocumentPatch `json:"patch"`
}

// SignalPayload — rtc-offer/rtc-answer/rtc-ice. From проставляет сервер.
type SignalPayload struct {
	RoomID    string          `json:"roomId"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ParticipantsPayload struct {
	RoomID       string               `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type TabChangedPayload struct {
	RoomID string     `json:"roomId"`
	Tab    domain.Tab `json:"tab"`
}

type DocumentsPayload struct {
	RoomID    string           `json:"roomId"`
	Documents domain.Documents `json:"documents"`
}

type CallPresencePayload struct {
	ConnectionID string `json:"connectionId"`
}
