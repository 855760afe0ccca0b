package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

const (
	msgRoomNotFound  = "Room not found"
	msgRouteNotFound = "Route not found"
	msgInternal      = "Something went wrong"
)

// ToHTTP — статус и сообщение для клиента.
func ToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, msgRoomNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage срезает префикс sentinel-ошибки: "validation error: x" -> "x".
func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, domain.ErrValidation.Error()+": "); ok {
		return rest
	}
	return msg
}
