package sqlite

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/store/storetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, newStore(db)
}

func roomRow(t *testing.T, room *domain.Room) *sqlmock.Rows {
	t.Helper()
	data, err := json.Marshal(room)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"data"}).AddRow(string(data))
}

func TestUpdate_RollsBackWhenWriteFails(t *testing.T) {
	mock, s := setupMockDB(t)
	room := storetest.NewRoom()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM rooms`).WithArgs(room.ID).WillReturnRows(roomRow(t, room))
	mock.ExpectExec(`UPDATE rooms`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), room.ID).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := s.SetActiveTab(t.Context(), room.ID, domain.TabNotes, time.Now().UTC())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	mock, s := setupMockDB(t)
	room := storetest.NewRoom()

	// удаление не-участника ничего не меняет: ни UPDATE, ни COMMIT
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM rooms`).WithArgs(room.ID).WillReturnRows(roomRow(t, room))
	mock.ExpectRollback()

	got, err := s.RemoveParticipant(t.Context(), room.ID, "nobody", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_CorruptRow(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectQuery(`SELECT data FROM rooms`).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow("not json"))

	_, err := s.Get(t.Context(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode room r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ConflictIsErrRoomExists(t *testing.T) {
	mock, s := setupMockDB(t)
	room := storetest.NewRoom()

	mock.ExpectExec(`INSERT INTO rooms`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Insert(t.Context(), room)
	require.ErrorIs(t, err, domain.ErrRoomExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
