package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

// RoomSvc — то, что хабу нужно от сервиса комнат.
type RoomSvc interface {
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	UpdateActiveTab(ctx context.Context, id string, tab domain.Tab) (*domain.Room, error)
	UpdateDocuments(ctx context.Context, id string, patch domain.DocumentPatch) (*domain.Room, error)
	RemoveParticipant(ctx context.Context, id, participantID string) (*domain.Room, error)
}

var errPeerGone = errors.New("addressed connection is not in the room")

// session — состояние одного соединения. Его трогает только read loop
// этого соединения, поэтому без локов.
type session struct {
	conn Conn
	log  *slog.Logger

	// привязка Unbound -> Bound(roomID, participantID)
	roomID        string
	participantID string

	subs map[string]*Subscription
}

func (s *session) bound() bool { return s.participantID != "" }

// requireBinding проверяет, что соединение привязано к комнате roomID.
// Пустой roomID означает комнату привязки.
func (s *session) requireBinding(roomID string) (string, error) {
	if !s.bound() {
		return "", domain.ErrUnbound
	}
	if roomID == "" {
		return s.roomID, nil
	}
	if roomID != s.roomID {
		return "", fmt.Errorf("%w: bound to room %s", domain.ErrUnbound, s.roomID)
	}
	return roomID, nil
}

func (s *Server) openSession(c Conn) *session {
	s.hub.Register(c)
	return &session{
		conn: c,
		log:  s.log.With(logger.Conn(c.ID())),
		subs: make(map[string]*Subscription),
	}
}

// dispatch обрабатывает одно входящее сообщение. Ошибки клиенту не
// отправляются: только лог.
func (s *Server) dispatch(ctx context.Context, sess *session, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		sess.log.Debug("ws bad frame", "err", err)
		return
	}

	var err error
	switch in.Type {
	case TypeJoin:
		err = s.onJoin(ctx, sess, in.Payload)
	case TypeJoinCall:
		err = s.onCallPresence(sess, in.Payload, TypeCallUserJoined)
	case TypeLeaveCall:
		err = s.onCallPresence(sess, in.Payload, TypeCallUserLeft)
	case TypeTabChange:
		err = s.onTabChange(ctx, sess, in.Payload)
	case TypeDocChange:
		err = s.onDocChange(ctx, sess, in.Payload)
	case TypeRTCOffer, TypeRTCAnswer, TypeRTCICE:
		err = s.onSignal(sess, in.Type, in.Payload)
	default:
		sess.log.Debug("ws unknown event", "type", in.Type)
		return
	}

	if err != nil {
		logEventError(sess.log, in.Type, err)
	}
}

func logEventError(log *slog.Logger, typ string, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		log.Info("ws event dropped: room vanished", "type", typ)
	case errors.Is(err, domain.ErrUnbound):
		log.Warn("ws event from unbound connection dropped", "type", typ, "err", err)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, errPeerGone):
		log.Warn("ws event rejected", "type", typ, "err", err)
	default:
		log.Error("ws event failed", "type", typ, "err", err)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func (s *Server) onJoin(ctx context.Context, sess *session, raw json.RawMessage) error {
	var p JoinPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return fmt.Errorf("%w: roomId required", domain.ErrValidation)
	}

	if _, ok := sess.subs[p.RoomID]; !ok {
		sess.subs[p.RoomID] = s.hub.Join(p.RoomID, sess.conn)
	}
	if p.ParticipantID == "" {
		return nil
	}

	// перепривязка: прежний участник уходит из своей комнаты, иначе он
	// останется в сторе без соединения
	if sess.bound() && (sess.roomID != p.RoomID || sess.participantID != p.ParticipantID) {
		sess.log.Info("ws rebind", slog.Group("from", logger.Room(sess.roomID), logger.Participant(sess.participantID)),
			logger.Binding(p.RoomID, p.ParticipantID))
		s.dropParticipant(ctx, sess, "rebind")
	}
	sess.roomID, sess.participantID = p.RoomID, p.ParticipantID

	room, err := s.svc.GetRoom(ctx, p.RoomID)
	if err != nil {
		return err
	}
	s.hub.EmitToGroup(room.ID, Message{
		Type:    TypeParticipantsUpdate,
		Payload: ParticipantsPayload{RoomID: room.ID, Participants: room.Participants},
	}, "")
	return nil
}

// onCallPresence — join-call/leave-call: только уведомление остальным.
func (s *Server) onCallPresence(sess *session, raw json.RawMessage, outType string) error {
	var p RoomPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	roomID, err := sess.requireBinding(p.RoomID)
	if err != nil {
		return err
	}

	s.hub.EmitToGroup(roomID, Message{
		Type:    outType,
		Payload: CallPresencePayload{ConnectionID: sess.conn.ID()},
	}, sess.conn.ID())
	return nil
}

func (s *Server) onTabChange(ctx context.Context, sess *session, raw json.RawMessage) error {
	var p TabChangePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	roomID, err := sess.requireBinding(p.RoomID)
	if err != nil {
		return err
	}

	room, err := s.svc.UpdateActiveTab(ctx, roomID, domain.Tab(p.Tab))
	if err != nil {
		return err
	}
	s.hub.EmitToGroup(room.ID, Message{
		Type:    TypeTabChanged,
		Payload: TabChangedPayload{RoomID: room.ID, Tab: room.ActiveTab},
	}, "")
	return nil
}

func (s *Server) onDocChange(ctx context.Context, sess *session, raw json.RawMessage) error {
	var p DocChangePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	roomID, err := sess.requireBinding(p.RoomID)
	if err != nil {
		return err
	}
	patch, err := domain.ParsePatch(p.Patch)
	if err != nil {
		return err
	}

	room, err := s.svc.UpdateDocuments(ctx, roomID, patch)
	if err != nil {
		return err
	}
	s.hub.EmitToGroup(room.ID, Message{
		Type:    TypeDocumentsUpdated,
		Payload: DocumentsPayload{RoomID: room.ID, Documents: room.Documents},
	}, "")
	return nil
}

// onSignal пересылает rtc-* с пометкой from, to остаётся как есть. Адресат — одно соединение
// комнаты, без адреса — вся группа кроме отправителя.
func (s *Server) onSignal(sess *session, typ string, raw json.RawMessage) error {
	var p SignalPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	roomID, err := sess.requireBinding(p.RoomID)
	if err != nil {
		return err
	}
	switch typ {
	case TypeRTCOffer, TypeRTCAnswer:
		if len(p.SDP) == 0 {
			return fmt.Errorf("%w: sdp required", domain.ErrValidation)
		}
	case TypeRTCICE:
		if len(p.Candidate) == 0 {
			return fmt.Errorf("%w: candidate required", domain.ErrValidation)
		}
	}

	to := p.To
	p.RoomID = roomID
	p.From = sess.conn.ID()
	msg := Message{Type: typ, Payload: p}

	if to == "" {
		s.hub.EmitToGroup(roomID, msg, sess.conn.ID())
		return nil
	}
	if !s.hub.IsMember(roomID, to) {
		return fmt.Errorf("%w: %s", errPeerGone, to)
	}
	s.hub.EmitToConnection(to, msg)
	return nil
}

// closeSession — disconnecting, затем disconnect.
func (s *Server) closeSession(ctx context.Context, sess *session) {
	id := sess.conn.ID()
	for roomID, sub := range sess.subs {
		sub.Close()
		s.hub.EmitToGroup(roomID, Message{
			Type:    TypeCallUserLeft,
			Payload: CallPresencePayload{ConnectionID: id},
		}, id)
		delete(sess.subs, roomID)
	}
	s.hub.Unregister(sess.conn)

	if !sess.bound() {
		return
	}
	s.dropParticipant(ctx, sess, "disconnect")
}

// dropParticipant убирает участника привязки из стора и рассылает
// participants-update его комнате. Привязку не трогает.
func (s *Server) dropParticipant(ctx context.Context, sess *session, step string) {
	room, err := s.svc.RemoveParticipant(ctx, sess.roomID, sess.participantID)
	if err != nil {
		logEventError(sess.log, step, err)
		return
	}
	s.hub.EmitToGroup(room.ID, Message{
		Type:    TypeParticipantsUpdate,
		Payload: ParticipantsPayload{RoomID: room.ID, Participants: room.Participants},
	}, "")
}
