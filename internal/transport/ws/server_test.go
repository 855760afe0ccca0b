package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/roomsync/internal/service"
	"github.com/cwrk-planet/roomsync/internal/store/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sendJSON(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

// readType читает, пока не придёт сообщение нужного типа.
func readType(t *testing.T, c *websocket.Conn, typ string) wireMsg {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m wireMsg
		require.NoError(t, c.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func TestServer_EndToEnd(t *testing.T) {
	svc := service.NewRoomService(memory.New())
	hub := NewHub()
	srv := NewServer(hub, svc, Config{PingPeriod: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	room, err := svc.CreateRoom(t.Context(), "Host")
	require.NoError(t, err)
	_, err = svc.JoinRoom(t.Context(), room.ID, "A", "pa")
	require.NoError(t, err)
	_, err = svc.JoinRoom(t.Context(), room.ID, "B", "pb")
	require.NoError(t, err)

	a := dial(t, url)
	b := dial(t, url)

	var helloA, helloB ConnectedPayload
	require.NoError(t, json.Unmarshal(readType(t, a, TypeConnected).Payload, &helloA))
	require.NoError(t, json.Unmarshal(readType(t, b, TypeConnected).Payload, &helloB))
	require.NotEqual(t, helloA.ConnectionID, helloB.ConnectionID)

	sendJSON(t, a, TypeJoin, JoinPayload{RoomID: room.ID, ParticipantID: "pa"})
	readType(t, a, TypeParticipantsUpdate)
	sendJSON(t, b, TypeJoin, JoinPayload{RoomID: room.ID, ParticipantID: "pb"})
	readType(t, b, TypeParticipantsUpdate)
	readType(t, a, TypeParticipantsUpdate)

	sendJSON(t, a, TypeTabChange, TabChangePayload{RoomID: room.ID, Tab: "whiteboard"})
	sendJSON(t, a, TypeDocChange, map[string]any{"roomId": room.ID, "patch": map[string]any{"input": "42"}})

	require.NoError(t, b.SetReadDeadline(time.Now().Add(3*time.Second)))
	var first, second wireMsg
	require.NoError(t, b.ReadJSON(&first))
	require.NoError(t, b.ReadJSON(&second))
	assert.Equal(t, TypeTabChanged, first.Type)
	assert.Equal(t, TypeDocumentsUpdated, second.Type)

	sendJSON(t, a, TypeJoinCall, RoomPayload{RoomID: room.ID})
	joined := readType(t, b, TypeCallUserJoined)
	var presence CallPresencePayload
	require.NoError(t, json.Unmarshal(joined.Payload, &presence))
	assert.Equal(t, helloA.ConnectionID, presence.ConnectionID)

	// b отвечает адресно, зная id соединения a
	sendJSON(t, b, TypeRTCOffer, map[string]any{
		"roomId": room.ID, "to": presence.ConnectionID,
		"sdp": map[string]any{"type": "offer", "sdp": "v=0"},
	})
	offer := readType(t, a, TypeRTCOffer)
	var sig SignalPayload
	require.NoError(t, json.Unmarshal(offer.Payload, &sig))
	assert.Equal(t, helloB.ConnectionID, sig.From)

	require.NoError(t, a.Close())
	readType(t, b, TypeCallUserLeft)
	upd := readType(t, b, TypeParticipantsUpdate)
	var parts ParticipantsPayload
	require.NoError(t, json.Unmarshal(upd.Payload, &parts))
	require.Len(t, parts.Participants, 2)
	assert.Equal(t, "pb", parts.Participants[1].ID)

	got, err := svc.GetRoom(t.Context(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Documents.Input)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	srv := NewServer(NewHub(), service.NewRoomService(memory.New()),
		Config{AllowedOrigins: []string{"http://localhost:5173"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "http://localhost:5173")
	c, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	_ = c.Close()
}

// nextType — тип следующего кадра, без пропусков.
func nextType(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m wireMsg
	require.NoError(t, c.ReadJSON(&m))
	return m.Type
}

func TestServer_RateLimitDropsThenDisconnects(t *testing.T) {
	svc := service.NewRoomService(memory.New())
	srv := NewServer(NewHub(), svc, Config{MessagesPerSecond: 1, Burst: 1, MaxViolations: 2},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	room, err := svc.CreateRoom(t.Context(), "Host")
	require.NoError(t, err)
	_, err = svc.JoinRoom(t.Context(), room.ID, "A", "pa")
	require.NoError(t, err)
	_, err = svc.JoinRoom(t.Context(), room.ID, "B", "pb")
	require.NoError(t, err)

	b := dial(t, url)
	readType(t, b, TypeConnected)
	sendJSON(t, b, TypeJoin, JoinPayload{RoomID: room.ID, ParticipantID: "pb"})
	readType(t, b, TypeParticipantsUpdate)

	a := dial(t, url)
	readType(t, a, TypeConnected)
	// join забирает единственный токен, две правки следом сверх лимита
	sendJSON(t, a, TypeJoin, JoinPayload{RoomID: room.ID, ParticipantID: "pa"})
	readType(t, a, TypeParticipantsUpdate)
	readType(t, b, TypeParticipantsUpdate)
	for range 2 {
		sendJSON(t, a, TypeDocChange, map[string]any{"roomId": room.ID, "patch": map[string]any{"input": "flood"}})
	}

	// после пополнения ведра соединение всё ещё живо
	time.Sleep(1100 * time.Millisecond)
	sendJSON(t, a, TypeTabChange, TabChangePayload{RoomID: room.ID, Tab: "notes"})
	assert.Equal(t, TypeTabChanged, nextType(t, b), "dropped doc-change reached the room")

	// третье нарушение больше MaxViolations: сервер рвёт соединение
	sendJSON(t, a, TypeDocChange, map[string]any{"roomId": room.ID, "patch": map[string]any{"input": "flood"}})
	assert.Equal(t, TypeCallUserLeft, nextType(t, b))
	assert.Equal(t, TypeParticipantsUpdate, nextType(t, b))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m wireMsg
		err := a.ReadJSON(&m)
		if err == nil {
			continue
		}
		var ne net.Error
		assert.False(t, errors.As(err, &ne) && ne.Timeout(), "connection still open: %v", err)
		break
	}

	got, err := svc.GetRoom(t.Context(), room.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Documents.Input)
	ids := make([]string, 0, len(got.Participants))
	for _, p := range got.Participants {
		ids = append(ids, p.ID)
	}
	assert.NotContains(t, ids, "pa")
}
