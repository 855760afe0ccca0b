package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store"

	"github.com/google/uuid"
)

// RoomService — единственная точка изменения комнат. Все операции возвращают
// полный снимок или domain.ErrRoomNotFound.
type RoomService struct {
	store store.RoomStore
	now   func() time.Time
	newID func() string
}

func NewRoomService(s store.RoomStore) *RoomService {
	return &RoomService{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// SetClock подменяет часы (тесты).
func (s *RoomService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateRoom создаёт комнату с дефолтными документами и одним хостом.
func (s *RoomService) CreateRoom(ctx context.Context, hostName string) (*domain.Room, error) {
	if hostName == "" {
		hostName = domain.DefaultHostName
	}
	now := s.now()

	room := &domain.Room{
		ID:        s.newID(),
		CreatedAt: now,
		UpdatedAt: now,
		ActiveTab: domain.TabCode,
		Participants: []domain.Participant{{
			ID:          s.newID(),
			DisplayName: domain.TruncateName(hostName),
			Role:        domain.RoleParticipant,
		}},
		Documents: domain.DefaultDocuments(),
	}

	if err := s.store.Insert(ctx, room); err != nil {
		return nil, fmt.Errorf("store.Insert: %w", err)
	}
	return room.Clone(), nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.store.Get(ctx, id)
}

// JoinRoom идемпотентен по participantID: повторный вход возвращает
// снимок без изменений.
func (s *RoomService) JoinRoom(ctx context.Context, id, displayName, participantID string) (*domain.Room, error) {
	if participantID == "" {
		participantID = s.newID()
	}
	if displayName == "" {
		displayName = domain.DefaultGuestName
	}

	p := domain.Participant{
		ID:          participantID,
		DisplayName: domain.TruncateName(displayName),
		Role:        domain.RoleParticipant,
	}
	return s.store.AddParticipant(ctx, id, p, s.now())
}

func (s *RoomService) UpdateActiveTab(ctx context.Context, id string, tab domain.Tab) (*domain.Room, error) {
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: unknown tab %q", domain.ErrValidation, tab)
	}
	return s.store.SetActiveTab(ctx, id, tab, s.now())
}

// UpdateDocuments пишет присутствующие поля патча; пустой патч отдаёт
// текущий снимок.
func (s *RoomService) UpdateDocuments(ctx context.Context, id string, patch domain.DocumentPatch) (*domain.Room, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.store.Get(ctx, id)
	}
	return s.store.PatchDocuments(ctx, id, patch, s.now())
}

func (s *RoomService) RemoveParticipant(ctx context.Context, id, participantID string) (*domain.Room, error) {
	return s.store.RemoveParticipant(ctx, id, participantID, s.now())
}
