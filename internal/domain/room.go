package domain

import "time"

type Tab string

const (
	TabCode       Tab = "code"
	TabNotes      Tab = "notes"
	TabWhiteboard Tab = "whiteboard"
)

func (t Tab) Valid() bool {
	switch t {
	case TabCode, TabNotes, TabWhiteboard:
		return true
	}
	return false
}

const (
	DefaultHostName  = "Host"
	DefaultGuestName = "Guest"
	MaxNameLength    = 64
)

// Room — снапшот комнаты в том виде, в каком его отдаёт сервис.
type Room struct {
	ID           string        `json:"roomId"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	ActiveTab    Tab           `json:"activeTab"`
	Participants []Participant `json:"participants"`
	Documents    Documents     `json:"documents"`

	// Versions — счётчик записей по каждому полю документов.
	Versions map[Field]int64 `json:"versions,omitempty"`
}

func (r *Room) HasParticipant(id string) bool {
	for _, p := range r.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Clone — глубокая копия, чтобы снапшот можно было отдавать наружу.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Participants = append([]Participant(nil), r.Participants...)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	out.Documents = r.Documents.Clone()
	if r.Versions != nil {
		out.Versions = make(map[Field]int64, len(r.Versions))
		for k, v := range r.Versions {
			out.Versions[k] = v
		}
	}
	return &out
}

// TruncateName обрезает имя до MaxNameLength рун.
func TruncateName(name string) string {
	r := []rune(name)
	if len(r) > MaxNameLength {
		return string(r[:MaxNameLength])
	}
	return name
}
