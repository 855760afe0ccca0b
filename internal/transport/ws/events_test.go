package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/service"
	"github.com/cwrk-planet/roomsync/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	ctx  context.Context
	hub  *Hub
	svc  *service.RoomService
	srv  *Server
	room *domain.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := service.NewRoomService(memory.New())
	hub := NewHub()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "Host")
	require.NoError(t, err)

	return &fixture{
		t:    t,
		ctx:  ctx,
		hub:  hub,
		svc:  svc,
		srv:  NewServer(hub, svc, Config{}, log),
		room: room,
	}
}

func (f *fixture) connect(id string) (*fakeConn, *session) {
	c := newFakeConn(id)
	return c, f.srv.openSession(c)
}

func (f *fixture) send(sess *session, typ string, payload any) {
	f.t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(f.t, err)
	data, err := json.Marshal(inbound{Type: typ, Payload: p})
	require.NoError(f.t, err)
	f.srv.dispatch(f.ctx, sess, data)
}

// joinBound — REST join + socket join с participantId.
func (f *fixture) joinBound(sess *session, participantID string) {
	f.t.Helper()
	_, err := f.svc.JoinRoom(f.ctx, f.room.ID, participantID, participantID)
	require.NoError(f.t, err)
	f.send(sess, TypeJoin, JoinPayload{RoomID: f.room.ID, ParticipantID: participantID})
}

func TestJoin_BroadcastsParticipantsIncludingSender(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")

	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")

	require.Equal(t, []string{TypeParticipantsUpdate, TypeParticipantsUpdate}, a.Types())
	require.Equal(t, []string{TypeParticipantsUpdate}, b.Types())

	last := payloadAs[ParticipantsPayload](t, b.Messages()[0])
	assert.Equal(t, f.room.ID, last.RoomID)
	require.Len(t, last.Participants, 3)
	assert.Equal(t, "pb", last.Participants[2].ID)
}

func TestJoin_WithoutParticipantOnlyJoinsGroup(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")

	f.send(sa, TypeJoin, JoinPayload{RoomID: f.room.ID})
	assert.Empty(t, a.Messages())
	assert.True(t, f.hub.IsMember(f.room.ID, "conn-a"))
	assert.False(t, sa.bound())
}

func TestUnboundEventsAreDropped(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	f.joinBound(sb, "pb")
	b.Reset()

	f.send(sa, TypeJoin, JoinPayload{RoomID: f.room.ID})
	f.send(sa, TypeTabChange, TabChangePayload{RoomID: f.room.ID, Tab: "notes"})
	f.send(sa, TypeDocChange, map[string]any{"roomId": f.room.ID, "patch": map[string]any{"notes": "hijack"}})
	f.send(sa, TypeJoinCall, RoomPayload{RoomID: f.room.ID})
	f.send(sa, TypeRTCOffer, map[string]any{"roomId": f.room.ID, "sdp": map[string]any{"type": "offer", "sdp": "v=0"}})

	assert.Empty(t, a.Messages())
	assert.Empty(t, b.Messages())

	room, err := f.svc.GetRoom(f.ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TabCode, room.ActiveTab)
	assert.Equal(t, domain.DefaultNotes, room.Documents.Notes)
}

func TestBoundToOtherRoomIsRejected(t *testing.T) {
	f := newFixture(t)
	other, err := f.svc.CreateRoom(f.ctx, "")
	require.NoError(t, err)

	a, sa := f.connect("conn-a")
	f.joinBound(sa, "pa")
	a.Reset()

	f.send(sa, TypeTabChange, TabChangePayload{RoomID: other.ID, Tab: "notes"})
	assert.Empty(t, a.Messages())

	got, err := f.svc.GetRoom(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TabCode, got.ActiveTab)
}

func TestTabChangeObservedBeforeLaterDocChange(t *testing.T) {
	f := newFixture(t)
	_, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")
	b.Reset()

	f.send(sa, TypeTabChange, TabChangePayload{RoomID: f.room.ID, Tab: "notes"})
	f.send(sa, TypeDocChange, map[string]any{"roomId": f.room.ID, "patch": map[string]any{"notes": "hello"}})

	msgs := b.Messages()
	require.Equal(t, []string{TypeTabChanged, TypeDocumentsUpdated}, b.Types())
	assert.Equal(t, domain.TabNotes, payloadAs[TabChangedPayload](t, msgs[0]).Tab)

	docs := payloadAs[DocumentsPayload](t, msgs[1])
	assert.Equal(t, f.room.ID, docs.RoomID)
	assert.Equal(t, "hello", docs.Documents.Notes)
	// полный документ, не diff
	assert.Equal(t, f.room.Documents.Code, docs.Documents.Code)
}

func TestDocChange_InvalidPatchDropped(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	f.joinBound(sa, "pa")
	a.Reset()

	f.send(sa, TypeDocChange, map[string]any{"roomId": f.room.ID, "patch": map[string]any{"language": "cobol"}})
	f.send(sa, TypeDocChange, map[string]any{"roomId": f.room.ID, "patch": map[string]any{"colour": "red"}})
	f.send(sa, TypeTabChange, TabChangePayload{RoomID: f.room.ID, Tab: "terminal"})

	assert.Empty(t, a.Messages())
}

// Комната исчезла: событие молча пропадает, отправителю ничего не приходит.
func TestRoomVanished_SilentFailure(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")

	f.send(sa, TypeJoin, JoinPayload{RoomID: "gone", ParticipantID: "pa"})
	f.send(sb, TypeJoin, JoinPayload{RoomID: "gone", ParticipantID: "pb"})
	require.True(t, sa.bound())

	f.send(sa, TypeTabChange, TabChangePayload{RoomID: "gone", Tab: "notes"})
	f.send(sa, TypeDocChange, map[string]any{"roomId": "gone", "patch": map[string]any{"notes": "x"}})

	assert.Empty(t, a.Messages())
	assert.Empty(t, b.Messages())

	f.srv.closeSession(f.ctx, sa)
	assert.Equal(t, []string{TypeCallUserLeft}, b.Types())
}

func TestCallPresence(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")
	a.Reset()
	b.Reset()

	f.send(sa, TypeJoinCall, RoomPayload{RoomID: f.room.ID})
	assert.Empty(t, a.Messages())
	require.Equal(t, []string{TypeCallUserJoined}, b.Types())
	assert.Equal(t, "conn-a", payloadAs[CallPresencePayload](t, b.Messages()[0]).ConnectionID)

	f.send(sa, TypeLeaveCall, RoomPayload{RoomID: f.room.ID})
	assert.Equal(t, []string{TypeCallUserJoined, TypeCallUserLeft}, b.Types())
}

func TestSignalRelay(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	c, sc := f.connect("conn-c")
	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")
	f.joinBound(sc, "pc")
	a.Reset()
	b.Reset()
	c.Reset()

	sdp := map[string]any{"type": "offer", "sdp": "v=0"}

	t.Run("addressed", func(t *testing.T) {
		f.send(sa, TypeRTCOffer, map[string]any{"roomId": f.room.ID, "to": "conn-b", "sdp": sdp})
		assert.Empty(t, a.Messages())
		assert.Empty(t, c.Messages())
		require.Equal(t, []string{TypeRTCOffer}, b.Types())

		got := payloadAs[SignalPayload](t, b.Messages()[0])
		assert.Equal(t, "conn-a", got.From)
		assert.Equal(t, "conn-b", got.To)
		assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(got.SDP))
		b.Reset()
	})

	t.Run("unaddressed goes to the rest of the group", func(t *testing.T) {
		f.send(sa, TypeRTCICE, map[string]any{"roomId": f.room.ID, "candidate": map[string]any{"candidate": "c1"}})
		assert.Empty(t, a.Messages())
		assert.Equal(t, []string{TypeRTCICE}, b.Types())
		assert.Equal(t, []string{TypeRTCICE}, c.Types())
		b.Reset()
		c.Reset()
	})

	t.Run("answer without address falls back to group", func(t *testing.T) {
		f.send(sb, TypeRTCAnswer, map[string]any{"roomId": f.room.ID, "sdp": map[string]any{"type": "answer", "sdp": "v=0"}})
		assert.Equal(t, []string{TypeRTCAnswer}, a.Types())
		assert.Equal(t, []string{TypeRTCAnswer}, c.Types())
		assert.Empty(t, b.Messages())
		a.Reset()
		c.Reset()
	})

	t.Run("address outside the room is dropped", func(t *testing.T) {
		stranger, _ := f.connect("conn-x")
		f.send(sa, TypeRTCOffer, map[string]any{"roomId": f.room.ID, "to": "conn-x", "sdp": sdp})
		assert.Empty(t, stranger.Messages())
	})

	t.Run("offer without sdp is dropped", func(t *testing.T) {
		f.send(sa, TypeRTCOffer, map[string]any{"roomId": f.room.ID, "to": "conn-b"})
		assert.Empty(t, b.Messages())
	})
}

func TestDisconnect_RemovesParticipantAndNotifies(t *testing.T) {
	f := newFixture(t)
	host := f.room.Participants[0]
	a, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")
	a.Reset()
	b.Reset()

	f.srv.closeSession(f.ctx, sb)

	require.Equal(t, []string{TypeCallUserLeft, TypeParticipantsUpdate}, a.Types())
	assert.Equal(t, "conn-b", payloadAs[CallPresencePayload](t, a.Messages()[0]).ConnectionID)

	upd := payloadAs[ParticipantsPayload](t, a.Messages()[1])
	require.Len(t, upd.Participants, 2)
	assert.Equal(t, host.ID, upd.Participants[0].ID)
	assert.Equal(t, "pa", upd.Participants[1].ID)

	assert.False(t, f.hub.IsMember(f.room.ID, "conn-b"))
	assert.Empty(t, b.Messages())
}

func TestRebind_RemovesPreviousParticipant(t *testing.T) {
	f := newFixture(t)
	_, sa := f.connect("conn-a")
	b, sb := f.connect("conn-b")
	f.joinBound(sa, "pa")
	f.joinBound(sb, "pb")

	other, err := f.svc.CreateRoom(f.ctx, "Host")
	require.NoError(t, err)
	_, err = f.svc.JoinRoom(f.ctx, other.ID, "A2", "pa2")
	require.NoError(t, err)
	b.Reset()

	f.send(sa, TypeJoin, JoinPayload{RoomID: other.ID, ParticipantID: "pa2"})

	room, err := f.svc.GetRoom(f.ctx, f.room.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		ids = append(ids, p.ID)
	}
	assert.NotContains(t, ids, "pa")
	assert.Contains(t, ids, "pb")

	require.Equal(t, []string{TypeParticipantsUpdate}, b.Types())
	upd := payloadAs[ParticipantsPayload](t, b.Messages()[0])
	assert.Equal(t, f.room.ID, upd.RoomID)
	assert.Len(t, upd.Participants, len(room.Participants))

	// правки идут уже в новую комнату
	f.send(sa, TypeTabChange, TabChangePayload{RoomID: other.ID, Tab: string(domain.TabWhiteboard)})
	got, err := f.svc.GetRoom(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TabWhiteboard, got.ActiveTab)
}

func TestRebind_SameParticipantKeepsEntry(t *testing.T) {
	f := newFixture(t)
	_, sa := f.connect("conn-a")
	f.joinBound(sa, "pa")

	f.send(sa, TypeJoin, JoinPayload{RoomID: f.room.ID, ParticipantID: "pa"})

	room, err := f.svc.GetRoom(f.ctx, f.room.ID)
	require.NoError(t, err)
	require.Len(t, room.Participants, 2)
	assert.Equal(t, "pa", room.Participants[1].ID)
}

func TestDisconnect_UnboundDoesNotTouchStore(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")
	_, sb := f.connect("conn-b")
	f.joinBound(sa, "pa")
	f.send(sb, TypeJoin, JoinPayload{RoomID: f.room.ID})
	a.Reset()

	f.srv.closeSession(f.ctx, sb)

	assert.Equal(t, []string{TypeCallUserLeft}, a.Types())
	room, err := f.svc.GetRoom(f.ctx, f.room.ID)
	require.NoError(t, err)
	assert.Len(t, room.Participants, 2)
}

func TestMalformedFramesIgnored(t *testing.T) {
	f := newFixture(t)
	a, sa := f.connect("conn-a")

	f.srv.dispatch(f.ctx, sa, []byte("not json"))
	f.srv.dispatch(f.ctx, sa, []byte(`{"type":"join"}`))
	f.srv.dispatch(f.ctx, sa, []byte(`{"type":"whatever","payload":{}}`))

	assert.Empty(t, a.Messages())
	assert.False(t, sa.bound())
}
