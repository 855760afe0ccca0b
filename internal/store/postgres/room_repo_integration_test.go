package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/cwrk-planet/roomsync/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

// ROOMSYNC_TEST_PG_DSN=postgres://... go test ./internal/store/postgres
func TestRoomRepository_Integration(t *testing.T) {
	dsn := os.Getenv("ROOMSYNC_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ROOMSYNC_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	repo, err := Open(ctx, Config{DSN: dsn, ApplicationName: "roomsync-test"})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Ping(ctx))

	storetest.Run(t, repo)
}
