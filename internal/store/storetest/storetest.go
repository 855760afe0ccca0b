// Package storetest — общий набор проверок для реализаций store.RoomStore.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRoom — комната с дефолтными документами и одним хостом.
func NewRoom() *domain.Room {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Room{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		ActiveTab: domain.TabCode,
		Participants: []domain.Participant{
			{ID: uuid.NewString(), DisplayName: domain.DefaultHostName, Role: domain.RoleParticipant},
		},
		Documents: domain.DefaultDocuments(),
	}
}

// Run прогоняет контракт RoomStore против s.
func Run(t *testing.T, s store.RoomStore) {
	t.Helper()

	t.Run("InsertGet", func(t *testing.T) { testInsertGet(t, s) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, s) })
	t.Run("ActiveTab", func(t *testing.T) { testActiveTab(t, s) })
	t.Run("PatchFields", func(t *testing.T) { testPatchFields(t, s) })
	t.Run("PatchVersions", func(t *testing.T) { testPatchVersions(t, s) })
	t.Run("Whiteboard", func(t *testing.T) { testWhiteboard(t, s) })
	t.Run("Participants", func(t *testing.T) { testParticipants(t, s) })
	t.Run("ConcurrentFields", func(t *testing.T) { testConcurrentFields(t, s) })
}

func insert(t *testing.T, s store.RoomStore) *domain.Room {
	t.Helper()
	r := NewRoom()
	require.NoError(t, s.Insert(context.Background(), r))
	return r
}

func testInsertGet(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, domain.TabCode, got.ActiveTab)
	assert.Equal(t, r.Participants, got.Participants)
	assert.Equal(t, r.Documents.Code, got.Documents.Code)
	assert.Equal(t, r.Documents.Codes, got.Documents.Codes)
	assert.Empty(t, got.Documents.Whiteboard)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", r.CreatedAt, got.CreatedAt)

	require.ErrorIs(t, s.Insert(ctx, r), domain.ErrRoomExists)
}

func testMissing(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	now := time.Now()
	id := uuid.NewString()

	_, err := s.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.SetActiveTab(ctx, id, domain.TabNotes, now)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.PatchDocuments(ctx, id, domain.NotesEdit("x"), now)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.AddParticipant(ctx, id, domain.Participant{ID: "p"}, now)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.RemoveParticipant(ctx, id, "p", now)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func testActiveTab(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)

	got, err := s.SetActiveTab(ctx, r.ID, domain.TabWhiteboard, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.TabWhiteboard, got.ActiveTab)

	got, err = s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TabWhiteboard, got.ActiveTab)
}

func testPatchFields(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)
	cpp := r.Documents.Codes[domain.LangCPP]

	_, err := s.PatchDocuments(ctx, r.ID, domain.LanguageSwitch(domain.LangPython, "print(1)"), time.Now())
	require.NoError(t, err)
	_, err = s.PatchDocuments(ctx, r.ID, domain.InputEdit("42"), time.Now())
	require.NoError(t, err)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LangPython, got.Documents.Language)
	assert.Equal(t, "print(1)", got.Documents.Code)
	assert.Equal(t, "print(1)", got.Documents.Codes[domain.LangPython])
	assert.Equal(t, cpp, got.Documents.Codes[domain.LangCPP])
	assert.Equal(t, "42", got.Documents.Input)
	assert.Equal(t, domain.DefaultNotes, got.Documents.Notes)
	assert.Equal(t, "", got.Documents.Output)
}

func testPatchVersions(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)

	_, err := s.PatchDocuments(ctx, r.ID, domain.NotesEdit("x"), time.Now())
	require.NoError(t, err)
	got, err := s.PatchDocuments(ctx, r.ID, domain.NotesEdit("y"), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "y", got.Documents.Notes)
	assert.Equal(t, int64(2), got.Versions[domain.FieldNotes])
	assert.Equal(t, int64(0), got.Versions[domain.FieldCode])
}

func testWhiteboard(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)

	strokes := []domain.Stroke{
		{ID: "s1", Color: "#000", Width: 2, Points: []domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{ID: "s2", Color: "#f00", Width: 4, Points: []domain.Point{{X: 5, Y: 6}}},
	}
	got, err := s.PatchDocuments(ctx, r.ID, domain.WhiteboardReplace(strokes), time.Now())
	require.NoError(t, err)
	assert.Equal(t, strokes, got.Documents.Whiteboard)

	got, err = s.PatchDocuments(ctx, r.ID, domain.WhiteboardReplace(nil), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got.Documents.Whiteboard)
}

func testParticipants(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)
	host := r.Participants[0]
	p1 := domain.Participant{ID: uuid.NewString(), DisplayName: "P1", Role: domain.RoleParticipant}

	for i := 0; i < 3; i++ {
		got, err := s.AddParticipant(ctx, r.ID, p1, time.Now())
		require.NoError(t, err)
		assert.Equal(t, []domain.Participant{host, p1}, got.Participants)
	}

	got, err := s.RemoveParticipant(ctx, r.ID, p1.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{host}, got.Participants)

	got, err = s.RemoveParticipant(ctx, r.ID, p1.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{host}, got.Participants)
}

// Параллельные патчи разных полей не теряют друг друга.
func testConcurrentFields(t *testing.T, s store.RoomStore) {
	ctx := context.Background()
	r := insert(t, s)

	var wg sync.WaitGroup
	patches := []domain.DocumentPatch{
		domain.NotesEdit("notes"),
		domain.InputEdit("in"),
		domain.OutputEdit("out"),
		domain.CodeEdit(domain.LangCPP, "int main(){}"),
	}
	for _, p := range patches {
		wg.Add(1)
		go func(p domain.DocumentPatch) {
			defer wg.Done()
			_, err := s.PatchDocuments(ctx, r.ID, p, time.Now())
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes", got.Documents.Notes)
	assert.Equal(t, "in", got.Documents.Input)
	assert.Equal(t, "out", got.Documents.Output)
	assert.Equal(t, "int main(){}", got.Documents.Code)
	assert.Equal(t, "int main(){}", got.Documents.Codes[domain.LangCPP])
}
