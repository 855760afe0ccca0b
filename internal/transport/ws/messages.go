package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

// Входящие события
const (
	TypeJoin      = "join"
	TypeJoinCall  = "join-call"
	TypeLeaveCall = "leave-call"
	TypeTabChange = "tab-change"
	TypeDocChange = "doc-change"
	TypeRTCOffer  = "rtc-offer"
	TypeRTCAnswer = "rtc-answer"
	TypeRTCICE    = "rtc-ice"
)

// Исходящие события
const (
	TypeConnected          = "connected"
	TypeParticipantsUpdate = "participants-update"
	TypeTabChanged         = "tab-changed"
	TypeDocumentsUpdated   = "documents-updated"
	TypeCallUserJoined     = "call-user-joined"
	TypeCallUserLeft       = "call-user-left"
)

// Message — конверт {type, payload} в обе стороны.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// inbound — то же, но payload декодируется по типу позже.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinPayload struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type TabChangePayload struct {
	RoomID string `json:"roomId"`
	Tab    string `json:"tab"`
}

type DocChangePayload struct {
	RoomID string          `json:"roomId"`
	Patch  json.RawMessage `json:"patch"`
}

// SignalPayload — rtc-offer/rtc-answer/rtc-ice. SDP и кандидат
// хаб не разбирает, только пересылает.
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

// ConnectedPayload — первое сообщение соединению: его id нужен клиенту
// для адресации rtc-* и разрешения glare.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type CallPresencePayload struct {
	ConnectionID string `json:"connectionId"`
}
