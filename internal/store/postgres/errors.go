package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/roomsync/internal/domain"

	"github.com/jackc/pgx/v5"
	pgconn "github.com/jackc/pgx/v5/pgconn"
)

/*
абстрактный слой над *pgxpool.Pool / pgx.Tx
чтобы запросы можно было делать и в транзакции, и без неё
*/
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRoomNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 - unique violation
		if pgErr.Code == "23505" {
			return domain.ErrRoomExists
		}
	}

	return err
}

// scanRoom читает строку в порядке roomColumns.
func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		r                                         domain.Room
		tab, lang                                 string
		participants, codes, whiteboard, versions []byte
	)
	err := row.Scan(
		&r.ID,
		&r.CreatedAt,
		&r.UpdatedAt,
		&tab,
		&participants,
		&r.Documents.Code,
		&lang,
		&codes,
		&r.Documents.Notes,
		&whiteboard,
		&r.Documents.Input,
		&r.Documents.Output,
		&versions,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	r.ActiveTab = domain.Tab(tab)
	r.Documents.Language = domain.Language(lang)

	if err := json.Unmarshal(participants, &r.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(codes, &r.Documents.Codes); err != nil {
		return nil, fmt.Errorf("decode codes: %w", err)
	}
	if err := json.Unmarshal(whiteboard, &r.Documents.Whiteboard); err != nil {
		return nil, fmt.Errorf("decode whiteboard: %w", err)
	}
	if err := json.Unmarshal(versions, &r.Versions); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	if r.Participants == nil {
		r.Participants = []domain.Participant{}
	}
	if r.Documents.Whiteboard == nil {
		r.Documents.Whiteboard = []domain.Stroke{}
	}
	return &r, nil
}
