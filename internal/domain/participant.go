package domain

type Role string

// RoleParticipant — единственная роль: создатель комнаты не выделяется.
const RoleParticipant Role = "participant"

// Participant — участник комнаты. Флаги audio/video информативные,
// реальное состояние медиа живёт в negotiation.
type Participant struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Role         Role   `json:"role"`
	AudioEnabled bool   `json:"audioEnabled"`
	VideoEnabled bool   `json:"videoEnabled"`
}
