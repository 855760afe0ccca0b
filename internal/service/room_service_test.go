package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *RoomService {
	t.Helper()
	svc := NewRoomService(memory.New())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	svc.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	return svc
}

func TestCreateRoom_Defaults(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, domain.TabCode, room.ActiveTab)
	require.Len(t, room.Participants, 1)
	assert.Equal(t, domain.DefaultHostName, room.Participants[0].DisplayName)
	assert.Equal(t, domain.LangCPP, room.Documents.Language)
	assert.Equal(t, room.Documents.Code, room.Documents.Codes[domain.LangCPP])
	assert.Equal(t, domain.DefaultNotes, room.Documents.Notes)
	assert.Empty(t, room.Documents.Whiteboard)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Participants, got.Participants)
}

func TestCreateRoom_TruncatesHostName(t *testing.T) {
	svc := newService(t)
	long := ""
	for i := 0; i < 100; i++ {
		long += "я"
	}

	room, err := svc.CreateRoom(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxNameLength, len([]rune(room.Participants[0].DisplayName)))
}

func TestJoinRoom_IdempotentByParticipantID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "H")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.JoinRoom(ctx, room.ID, "P1", "p1")
		require.NoError(t, err)
	}

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	count := 0
	for _, p := range got.Participants {
		if p.ID == "p1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, got.Participants, 2)
}

func TestJoinRoom_GeneratesIDAndGuestName(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "H")
	require.NoError(t, err)

	got, err := svc.JoinRoom(ctx, room.ID, "", "")
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	assert.NotEmpty(t, got.Participants[1].ID)
	assert.Equal(t, domain.DefaultGuestName, got.Participants[1].DisplayName)
}

func TestJoinDisconnectScenario(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)
	host := room.Participants[0]

	room, err = svc.JoinRoom(ctx, room.ID, "P1", "p1")
	require.NoError(t, err)
	require.Len(t, room.Participants, 2)
	assert.Equal(t, host.ID, room.Participants[0].ID)
	assert.Equal(t, "P1", room.Participants[1].DisplayName)

	room, err = svc.RemoveParticipant(ctx, room.ID, "p1")
	require.NoError(t, err)
	require.Len(t, room.Participants, 1)
	assert.Equal(t, host.ID, room.Participants[0].ID)
}

func TestRemoveParticipant_Idempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, "P1", "p1")
	require.NoError(t, err)

	once, err := svc.RemoveParticipant(ctx, room.ID, "p1")
	require.NoError(t, err)
	twice, err := svc.RemoveParticipant(ctx, room.ID, "p1")
	require.NoError(t, err)

	assert.Equal(t, once.Participants, twice.Participants)
	assert.Equal(t, once.UpdatedAt, twice.UpdatedAt)
}

func TestUpdateActiveTab(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	got, err := svc.UpdateActiveTab(ctx, room.ID, domain.TabWhiteboard)
	require.NoError(t, err)
	assert.Equal(t, domain.TabWhiteboard, got.ActiveTab)
	assert.True(t, got.UpdatedAt.After(room.UpdatedAt))

	_, err = svc.UpdateActiveTab(ctx, room.ID, domain.Tab("terminal"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateDocuments_NotesConvergeDespiteOtherFields(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	_, err = svc.UpdateDocuments(ctx, room.ID, domain.NotesEdit("x"))
	require.NoError(t, err)
	_, err = svc.UpdateDocuments(ctx, room.ID, domain.InputEdit("1 2"))
	require.NoError(t, err)
	_, err = svc.UpdateDocuments(ctx, room.ID, domain.CodeEdit(domain.LangCPP, "int main(){}"))
	require.NoError(t, err)
	_, err = svc.UpdateDocuments(ctx, room.ID, domain.NotesEdit("y"))
	require.NoError(t, err)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "y", got.Documents.Notes)
	assert.Equal(t, "1 2", got.Documents.Input)
	assert.Equal(t, int64(2), got.Versions[domain.FieldNotes])
}

func TestUpdateDocuments_LanguageSwitchKeepsOtherCodes(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)
	cpp := room.Documents.Codes[domain.LangCPP]

	_, err = svc.UpdateDocuments(ctx, room.ID, domain.LanguageSwitch(domain.LangPython, "print(1)"))
	require.NoError(t, err)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LangPython, got.Documents.Language)
	assert.Equal(t, "print(1)", got.Documents.Code)
	assert.Equal(t, "print(1)", got.Documents.Codes[domain.LangPython])
	assert.Equal(t, cpp, got.Documents.Codes[domain.LangCPP])
}

func TestUpdateDocuments_ClearWhiteboard(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	strokes := make([]domain.Stroke, 0, 7)
	for i := 0; i < 7; i++ {
		strokes = append(strokes, domain.Stroke{
			ID: string(rune('a' + i)), Color: "#000", Width: 2,
			Points: []domain.Point{{X: 1, Y: 1}},
		})
		_, err = svc.UpdateDocuments(ctx, room.ID, domain.WhiteboardReplace(strokes))
		require.NoError(t, err)
	}

	got, err := svc.UpdateDocuments(ctx, room.ID, domain.WhiteboardReplace(nil))
	require.NoError(t, err)
	assert.NotNil(t, got.Documents.Whiteboard)
	assert.Empty(t, got.Documents.Whiteboard)
}

func TestUpdateDocuments_EmptyPatchReturnsSnapshot(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	got, err := svc.UpdateDocuments(ctx, room.ID, domain.DocumentPatch{})
	require.NoError(t, err)
	assert.Equal(t, room.UpdatedAt, got.UpdatedAt)
	assert.Empty(t, got.Versions)
}

func TestUpdateDocuments_RejectsInvalidPatch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	bad := domain.Language("cobol")
	_, err = svc.UpdateDocuments(ctx, room.ID, domain.DocumentPatch{Language: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOperations_MissingRoom(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.JoinRoom(ctx, "nope", "P", "p")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.UpdateActiveTab(ctx, "nope", domain.TabNotes)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.UpdateDocuments(ctx, "nope", domain.NotesEdit("x"))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.UpdateDocuments(ctx, "nope", domain.DocumentPatch{})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = svc.RemoveParticipant(ctx, "nope", "p")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestUpdateDocuments_ConcurrentDifferentFieldsCompose(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _, _ = svc.UpdateDocuments(ctx, room.ID, domain.NotesEdit("n")) }()
	go func() { defer wg.Done(); _, _ = svc.UpdateDocuments(ctx, room.ID, domain.InputEdit("i")) }()
	go func() { defer wg.Done(); _, _ = svc.UpdateDocuments(ctx, room.ID, domain.OutputEdit("o")) }()
	wg.Wait()

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "n", got.Documents.Notes)
	assert.Equal(t, "i", got.Documents.Input)
	assert.Equal(t, "o", got.Documents.Output)
}
