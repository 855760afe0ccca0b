package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"

	"github.com/go-chi/chi/v5"
)

type RoomSvc interface {
	CreateRoom(ctx context.Context, hostName string) (*domain.Room, error)
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	JoinRoom(ctx context.Context, id, displayName, participantID string) (*domain.Room, error)
	UpdateActiveTab(ctx context.Context, id string, tab domain.Tab) (*domain.Room, error)
}

type Handler struct {
	roomSvc RoomSvc
	now     func() time.Time
}

func NewHandler(room RoomSvc) *Handler {
	return &Handler{roomSvc: room, now: time.Now}
}

func invalidJSON(err error) error {
	return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, "handler.CreateRoom.Decode", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, "handler.CreateRoom.Validate", err)
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), deref(req.HostName))
	if err != nil {
		writeError(w, r, "handler.CreateRoom", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// GET /api/rooms/{roomId}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.GetRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, r, "handler.GetRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// PATCH /api/rooms/{roomId}/tab
func (h *Handler) UpdateTab(w http.ResponseWriter, r *http.Request) {
	var req UpdateTabRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, "handler.UpdateTab.Decode", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, "handler.UpdateTab.Validate", err)
		return
	}

	room, err := h.roomSvc.UpdateActiveTab(r.Context(), chi.URLParam(r, "roomId"), req.Tab)
	if err != nil {
		writeError(w, r, "handler.UpdateTab", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// POST /api/rooms/{roomId}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, "handler.JoinRoom.Decode", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, "handler.JoinRoom.Validate", err)
		return
	}

	room, err := h.roomSvc.JoinRoom(r.Context(), chi.URLParam(r, "roomId"), deref(req.DisplayName), req.ParticipantID)
	if err != nil {
		writeError(w, r, "handler.JoinRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Message: msgRouteNotFound})
}
