// Package sqlite — однофайловое хранилище комнат на modernc.org/sqlite.
// Комната лежит одной JSON-строкой; изменения идут через read-modify-write
// в транзакции.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	data       TEXT NOT NULL
)`

type Store struct {
	db *sql.DB
}

// Open открывает базу по пути path. ":memory:" — база в памяти процесса.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// одна запись за раз; заодно :memory: живёт в единственном соединении
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms table: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

func (s *Store) Insert(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, created_at, updated_at, data) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		room.ID, room.CreatedAt, room.UpdatedAt, string(data),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Room, error) {
	return get(ctx, s.db, id)
}

func (s *Store) SetActiveTab(ctx context.Context, id string, tab domain.Tab, at time.Time) (*domain.Room, error) {
	return s.update(ctx, id, store.SetTab(tab), at)
}

func (s *Store) PatchDocuments(ctx context.Context, id string, patch domain.DocumentPatch, at time.Time) (*domain.Room, error) {
	return s.update(ctx, id, store.Patch(patch), at)
}

func (s *Store) AddParticipant(ctx context.Context, id string, p domain.Participant, at time.Time) (*domain.Room, error) {
	return s.update(ctx, id, store.AddParticipant(p), at)
}

func (s *Store) RemoveParticipant(ctx context.Context, id, participantID string, at time.Time) (*domain.Room, error) {
	return s.update(ctx, id, store.RemoveParticipant(participantID), at)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryRower, id string) (*domain.Room, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM rooms WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	var r domain.Room
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	if r.Participants == nil {
		r.Participants = []domain.Participant{}
	}
	if r.Documents.Whiteboard == nil {
		r.Documents.Whiteboard = []domain.Stroke{}
	}
	return &r, nil
}

func (s *Store) update(ctx context.Context, id string, fn store.Mutation, at time.Time) (*domain.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !fn(r) {
		return r, nil
	}
	r.UpdatedAt = at

	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET updated_at = ?, data = ? WHERE id = ?`, at, string(data), id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}
