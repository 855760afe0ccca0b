// Package redis хранит комнату одним ключом со значением в msgpack.
// Изменения — оптимистичные транзакции WATCH/MULTI с повтором.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

const maxTxRetries = 16

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string        // по умолчанию "roomsync:room:"
	TTL       time.Duration // 0 — без истечения
}

type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func New(rdb *redis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "roomsync:room:"
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: cfg.TTL}
}

func (s *Store) key(id string) string { return s.prefix + id }

func (s *Store) Insert(ctx context.Context, room *domain.Room) error {
	data, err := encode(room)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(room.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRoomExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Room, error) {
	return s.load(ctx, s.rdb, id)
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
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) load(ctx context.Context, c redis.Cmdable, id string) (*domain.Room, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	r, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) update(ctx context.Context, id string, fn store.Mutation, at time.Time) (*domain.Room, error) {
	key := s.key(id)

	for i := 0; i < maxTxRetries; i++ {
		var out *domain.Room
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			r, err := s.load(ctx, tx, id)
			if err != nil {
				return err
			}
			if !fn(r) {
				out = r
				return nil
			}
			r.UpdatedAt = at

			data, err := encode(r)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, redis.KeepTTL)
				return nil
			})
			if err == nil {
				out = r
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update room %s: too much contention", id)
}

func encode(r *domain.Room) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*domain.Room, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	var r domain.Room
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.Participants == nil {
		r.Participants = []domain.Participant{}
	}
	if r.Documents.Whiteboard == nil {
		r.Documents.Whiteboard = []domain.Stroke{}
	}
	return &r, nil
}
