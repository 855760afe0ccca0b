package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}

	hn, _ := os.Hostname()
	uid := uuid.New().String()[:8]
	return hn + "-" + uid
}

func commonAttr(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
}

// Ключи полей комнаты. Одни и те же во всех пакетах, чтобы логи хаба,
// клиента и согласования склеивались по одному полю.
const (
	KeyRoom        = "room"
	KeyParticipant = "participant"
	KeyConn        = "conn"
	KeyPeer        = "peer"
)

func Room(id string) slog.Attr        { return slog.String(KeyRoom, id) }
func Participant(id string) slog.Attr { return slog.String(KeyParticipant, id) }
func Conn(id string) slog.Attr        { return slog.String(KeyConn, id) }
func Peer(id string) slog.Attr        { return slog.String(KeyPeer, id) }

// Binding — привязка соединения к участнику комнаты одной группой.
func Binding(roomID, participantID string) slog.Attr {
	return slog.Group("binding", Room(roomID), Participant(participantID))
}
