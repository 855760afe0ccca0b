// Package store описывает хранилище комнат. Бизнес-правил здесь нет:
// каждая операция атомарна в пределах одного вызова, и только.
package store

import (
	"context"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

// RoomStore — keyed get/insert/field-patch/remove по одной записи комнаты.
// Отсутствующая комната — domain.ErrRoomNotFound.
type RoomStore interface {
	Insert(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)

	SetActiveTab(ctx context.Context, id string, tab domain.Tab, at time.Time) (*domain.Room, error)
	// PatchDocuments пишет только присутствующие в патче поля и
	// увеличивает их счётчики версий.
	PatchDocuments(ctx context.Context, id string, patch domain.DocumentPatch, at time.Time) (*domain.Room, error)

	// AddParticipant добавляет участника в конец списка, если его id ещё нет.
	AddParticipant(ctx context.Context, id string, p domain.Participant, at time.Time) (*domain.Room, error)
	// RemoveParticipant удаляет по id; отсутствие участника — не ошибка.
	RemoveParticipant(ctx context.Context, id, participantID string, at time.Time) (*domain.Room, error)

	Ping(ctx context.Context) error
	Close() error
}
