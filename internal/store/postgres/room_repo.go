package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const roomColumns = `id, created_at, updated_at, active_tab, participants,
	doc_code, doc_language, doc_codes, doc_notes, doc_whiteboard, doc_input, doc_output, versions`

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id             TEXT PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	active_tab     TEXT NOT NULL,
	participants   JSONB NOT NULL DEFAULT '[]',
	doc_code       TEXT NOT NULL DEFAULT '',
	doc_language   TEXT NOT NULL,
	doc_codes      JSONB NOT NULL DEFAULT '{}',
	doc_notes      TEXT NOT NULL DEFAULT '',
	doc_whiteboard JSONB NOT NULL DEFAULT '[]',
	doc_input      TEXT NOT NULL DEFAULT '',
	doc_output     TEXT NOT NULL DEFAULT '',
	versions       JSONB NOT NULL DEFAULT '{}'
)`

// RoomRepository хранит комнату одной строкой; каждое поле документов —
// отдельная колонка, поэтому патч трогает только свои колонки.
type RoomRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool, q: pool}
}

func (r *RoomRepository) Migrate(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate rooms: %w", err)
	}
	return nil
}

func (r *RoomRepository) Insert(ctx context.Context, room *domain.Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return err
	}
	codes, err := json.Marshal(room.Documents.Codes)
	if err != nil {
		return err
	}
	whiteboard, err := json.Marshal(room.Documents.Whiteboard)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8::jsonb, $9, $10::jsonb, $11, $12, '{}'::jsonb)`,
		room.ID, room.CreatedAt, room.UpdatedAt, string(room.ActiveTab), string(participants),
		room.Documents.Code, string(room.Documents.Language), string(codes), room.Documents.Notes,
		string(whiteboard), room.Documents.Input, room.Documents.Output,
	)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	return scanRoom(r.q.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, id))
}

func (r *RoomRepository) SetActiveTab(ctx context.Context, id string, tab domain.Tab, at time.Time) (*domain.Room, error) {
	return scanRoom(r.q.QueryRow(ctx, `
		UPDATE rooms SET active_tab=$2, updated_at=$3
		WHERE id=$1
		RETURNING `+roomColumns, id, string(tab), at))
}

// PatchDocuments собирает один UPDATE только из присутствующих полей.
// Одновременные патчи одного поля — last write wins.
func (r *RoomRepository) PatchDocuments(ctx context.Context, id string, patch domain.DocumentPatch, at time.Time) (*domain.Room, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return r.Get(ctx, id)
	}

	args := []any{id, at}
	sets := []string{"updated_at=$2"}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	versions := "versions"
	for _, f := range fields {
		switch f {
		case domain.FieldCode:
			sets = append(sets, "doc_code="+arg(*patch.Code))
		case domain.FieldLanguage:
			sets = append(sets, "doc_language="+arg(string(*patch.Language)))
		case domain.FieldCodes:
			b, err := json.Marshal(patch.Codes)
			if err != nil {
				return nil, err
			}
			sets = append(sets, "doc_codes=doc_codes || "+arg(string(b))+"::jsonb")
		case domain.FieldNotes:
			sets = append(sets, "doc_notes="+arg(*patch.Notes))
		case domain.FieldWhiteboard:
			b, err := json.Marshal(*patch.Whiteboard)
			if err != nil {
				return nil, err
			}
			sets = append(sets, "doc_whiteboard="+arg(string(b))+"::jsonb")
		case domain.FieldInput:
			sets = append(sets, "doc_input="+arg(*patch.Input))
		case domain.FieldOutput:
			sets = append(sets, "doc_output="+arg(*patch.Output))
		}
		versions = fmt.Sprintf("jsonb_set(%s, '{%s}', to_jsonb(COALESCE((versions->>'%s')::bigint, 0) + 1))", versions, f, f)
	}
	sets = append(sets, "versions="+versions)

	query := `UPDATE rooms SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 RETURNING ` + roomColumns
	return scanRoom(r.q.QueryRow(ctx, query, args...))
}

func (r *RoomRepository) AddParticipant(ctx context.Context, id string, p domain.Participant, at time.Time) (*domain.Room, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	room, err := scanRoom(r.q.QueryRow(ctx, `
		UPDATE rooms
		SET participants = participants || jsonb_build_array($2::jsonb), updated_at=$3
		WHERE id=$1 AND NOT participants @> jsonb_build_array(jsonb_build_object('id', $4::text))
		RETURNING `+roomColumns, id, string(b), at, p.ID))
	if err == domain.ErrRoomNotFound {
		// либо комнаты нет, либо участник уже в ней
		return r.Get(ctx, id)
	}
	return room, err
}

func (r *RoomRepository) RemoveParticipant(ctx context.Context, id, participantID string, at time.Time) (*domain.Room, error) {
	room, err := scanRoom(r.q.QueryRow(ctx, `
		UPDATE rooms
		SET participants = COALESCE((
			SELECT jsonb_agg(p ORDER BY ord)
			FROM jsonb_array_elements(participants) WITH ORDINALITY AS t(p, ord)
			WHERE p->>'id' <> $2
		), '[]'::jsonb), updated_at=$3
		WHERE id=$1 AND participants @> jsonb_build_array(jsonb_build_object('id', $2::text))
		RETURNING `+roomColumns, id, participantID, at))
	if err == domain.ErrRoomNotFound {
		return r.Get(ctx, id)
	}
	return room, err
}

func (r *RoomRepository) Close() error {
	r.pool.Close()
	return nil
}
