package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store"
)

// Store держит комнаты в памяти процесса. Подходит для dev и тестов.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func New() *Store {
	return &Store{rooms: make(map[string]*domain.Room)}
}

func (s *Store) Insert(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return domain.ErrRoomExists
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *Store) SetActiveTab(_ context.Context, id string, tab domain.Tab, at time.Time) (*domain.Room, error) {
	return s.update(id, store.SetTab(tab), at)
}

func (s *Store) PatchDocuments(_ context.Context, id string, patch domain.DocumentPatch, at time.Time) (*domain.Room, error) {
	return s.update(id, store.Patch(patch), at)
}

func (s *Store) AddParticipant(_ context.Context, id string, p domain.Participant, at time.Time) (*domain.Room, error) {
	return s.update(id, store.AddParticipant(p), at)
}

func (s *Store) RemoveParticipant(_ context.Context, id, participantID string, at time.Time) (*domain.Room, error) {
	return s.update(id, store.RemoveParticipant(participantID), at)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// update применяет fn под локом; updatedAt двигается только если fn что-то изменила.
func (s *Store) update(id string, fn store.Mutation, at time.Time) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if fn(r) {
		r.UpdatedAt = at
	}
	return r.Clone(), nil
}
