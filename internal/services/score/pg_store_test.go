package score

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSubmitCreatesAndCleansUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewScoreService(NewPostgresStore(db), WithClock(func() time.Time { return now }))

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(testKey.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, points, recorded_at\s+FROM score_records`).
		WithArgs(testKey.OwnerID, testKey.RoomCode, testKey.ParticipantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points", "recorded_at"}))
	mock.ExpectQuery(`INSERT INTO score_records`).
		WithArgs(testKey.OwnerID, testKey.RoomCode, testKey.ParticipantID, 42.0, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`DELETE FROM score_records`).
		WithArgs(testKey.OwnerID, testKey.RoomCode, testKey.ParticipantID, int64(9),
			now.Add(-time.Second), now.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), testKey, 42)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, int64(9), res.Record.ID)
	assert.Equal(t, int64(1), res.RemovedDuplicates)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubmitUpdatesRecentRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewScoreService(NewPostgresStore(db), WithClock(func() time.Time { return now }))

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, points, recorded_at\s+FROM score_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points", "recorded_at"}).
			AddRow(int64(3), 10.0, now.Add(-10*time.Second)))
	mock.ExpectExec(`UPDATE score_records SET points`).
		WithArgs(int64(3), 55.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), testKey, 55)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, int64(3), res.Record.ID)
	assert.Equal(t, 55.0, res.Record.Points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubmitRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewScoreService(NewPostgresStore(db))

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, points, recorded_at`).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = svc.Submit(context.Background(), testKey, 1)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, owner_id, room_code, participant_id, points, recorded_at`).
		WithArgs("teacher-1", "GAME1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "room_code", "participant_id", "points", "recorded_at"}).
			AddRow(int64(1), "teacher-1", "GAME1", "a", 90.0, at).
			AddRow(int64(2), "teacher-1", "GAME1", "b", 70.0, at))

	list, err := NewPostgresStore(db).List(context.Background(), "teacher-1", "GAME1", 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Key.ParticipantID)
	assert.Equal(t, 90.0, list[0].Points)
	require.NoError(t, mock.ExpectationsWereMet())
}
