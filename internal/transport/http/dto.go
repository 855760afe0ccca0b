package http

import (
	"fmt"
	"unicode/utf8"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

type CreateRoomRequest struct {
	HostName *string `json:"hostName,omitempty"`
}

type JoinRoomRequest struct {
	DisplayName   *string `json:"displayName,omitempty"`
	ParticipantID string  `json:"participantId,omitempty"`
}

type UpdateTabRequest struct {
	Tab domain.Tab `json:"tab"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// validName — имя, если задано, от 1 до 64 символов.
func validName(field string, v *string) error {
	if v == nil {
		return nil
	}
	n := utf8.RuneCountInString(*v)
	if n < 1 || n > domain.MaxNameLength {
		return fmt.Errorf("%w: %s must be 1..%d characters", domain.ErrValidation, field, domain.MaxNameLength)
	}
	return nil
}

func (r CreateRoomRequest) Validate() error {
	return validName("hostName", r.HostName)
}

func (r JoinRoomRequest) Validate() error {
	return validName("displayName", r.DisplayName)
}

func (r UpdateTabRequest) Validate() error {
	if !r.Tab.Valid() {
		return fmt.Errorf("%w: tab must be one of code, notes, whiteboard", domain.ErrValidation)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
