package store

import "github.com/cwrk-planet/roomsync/internal/domain"

// Mutation меняет комнату на месте и сообщает, изменилось ли что-нибудь.
// Бэкенды, которые работают через read-modify-write, применяют их внутри
// своей транзакции.
type Mutation func(r *domain.Room) bool

func SetTab(tab domain.Tab) Mutation {
	return func(r *domain.Room) bool {
		r.ActiveTab = tab
		return true
	}
}

// Patch применяет патч и поднимает версии изменённых полей.
func Patch(patch domain.DocumentPatch) Mutation {
	return func(r *domain.Room) bool {
		changed := r.Documents.Apply(patch)
		if len(changed) == 0 {
			return false
		}
		if r.Versions == nil {
			r.Versions = make(map[domain.Field]int64, len(changed))
		}
		for _, f := range changed {
			r.Versions[f]++
		}
		return true
	}
}

func AddParticipant(p domain.Participant) Mutation {
	return func(r *domain.Room) bool {
		if r.HasParticipant(p.ID) {
			return false
		}
		r.Participants = append(r.Participants, p)
		return true
	}
}

func RemoveParticipant(participantID string) Mutation {
	return func(r *domain.Room) bool {
		kept := make([]domain.Participant, 0, len(r.Participants))
		for _, p := range r.Participants {
			if p.ID != participantID {
				kept = append(kept, p)
			}
		}
		removed := len(kept) != len(r.Participants)
		r.Participants = kept
		return removed
	}
}
