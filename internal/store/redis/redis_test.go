package redis

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr := miniredis.RunT(t)
	s := New(NewClient(Config{Addr: mr.Addr()}), Config{KeyPrefix: "test:room:"})
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestStoreContract(t *testing.T) {
	_, s := setupStore(t)
	storetest.Run(t, s)
}

func TestStore_KeyLayout(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	room := storetest.NewRoom()
	require.NoError(t, s.Insert(ctx, room))
	assert.True(t, mr.Exists("test:room:"+room.ID))

	mr.Del("test:room:" + room.ID)
	_, err := s.Get(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStore_UpdateKeepsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(NewClient(Config{Addr: mr.Addr()}), Config{TTL: time.Hour})
	defer s.Close()
	ctx := context.Background()

	room := storetest.NewRoom()
	require.NoError(t, s.Insert(ctx, room))

	_, err := s.SetActiveTab(ctx, room.ID, domain.TabNotes, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("roomsync:room:"+room.ID))
}
