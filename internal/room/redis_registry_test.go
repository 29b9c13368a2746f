package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSnapshot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedisRegistry(db, time.Hour)
	ctx := context.Background()

	mock.ExpectHGet("room:GAME1", "roster").
		SetVal(`[{"id":"p1","connection_id":"c1","display_name":"Alice","avatar_ref":"a.png","progress":50}]`)
	roster, err := r.Snapshot(ctx, "GAME1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice", roster[0].DisplayName)
	assert.Equal(t, 50.0, roster[0].Progress)

	mock.ExpectHGet("room:NOPE", "roster").RedisNil()
	roster, err = r.Snapshot(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, roster)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRemoveUnknownConnection(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedisRegistry(db, time.Hour)

	mock.ExpectHGet("room_conns", "ghost").RedisNil()
	_, _, found, err := r.Remove(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisInfo(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedisRegistry(db, time.Hour)
	ctx := context.Background()

	mock.ExpectHGetAll("room:R").SetVal(map[string]string{
		"state":   "STARTED",
		"created": "1767261600000",
		"roster":  "[]",
	})
	info, ok, err := r.Info(ctx, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateStarted, info.State)
	assert.Equal(t, int64(1767261600000), info.CreatedAt.UnixMilli())
	assert.Empty(t, info.Roster)

	mock.ExpectHGetAll("room:GONE").SetVal(map[string]string{})
	_, ok, err = r.Info(ctx, "GONE")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisJoinValidatesBeforeCallingRedis(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedisRegistry(db, time.Hour)

	_, _, err := r.Join(context.Background(), JoinRequest{RoomCode: "R", ConnectionID: "c1"})
	assert.ErrorIs(t, err, ErrMissingDisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapRedisError(t *testing.T) {
	cases := map[string]error{
		"ERR already_in_room":    ErrAlreadyInRoom,
		"ERR room_finished":      ErrRoomFinished,
		"ERR room_not_found":     ErrRoomNotFound,
		"ERR invalid_transition": ErrInvalidTransition,
	}
	for msg, want := range cases {
		assert.ErrorIs(t, mapRedisError(errors.New(msg)), want, msg)
	}

	other := errors.New("connection refused")
	assert.Equal(t, other, mapRedisError(other))
}

func TestDecodeRosterEmptyForms(t *testing.T) {
	for _, raw := range []string{"", "[]", "{}"} {
		roster, err := decodeRoster(raw)
		require.NoError(t, err)
		assert.NotNil(t, roster)
		assert.Empty(t, roster)
	}
}

var fixedNow = time.UnixMilli(1767261600000)

func newMockRegistry(t *testing.T) (*RedisRegistry, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	r := NewRedisRegistry(db, time.Hour)
	r.now = func() time.Time { return fixedNow }
	r.newID = func() string { return "p1" }
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return r, mock
}

var joinKeys = []string{"room:R", "room_t:R", "room_conns"}

const aliceJSON = `{"id":"p1","connection_id":"c1","display_name":"Alice","avatar_ref":"/images/avatars/default.png","progress":0}`

func TestRedisJoin(t *testing.T) {
	r, mock := newMockRegistry(t)

	mock.ExpectFCall("room_join", joinKeys, "R", aliceJSON, fixedNow.UnixMilli(), 3600).
		SetVal([]interface{}{"[" + aliceJSON + "]", aliceJSON})

	roster, p, err := r.Join(context.Background(), JoinRequest{RoomCode: "R", ConnectionID: "c1", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, DefaultAvatar, p.AvatarRef)
	require.Len(t, roster, 1)
	assert.Equal(t, "c1", roster[0].ConnectionID)
}

func TestRedisJoinErrors(t *testing.T) {
	cases := map[string]error{
		"already_in_room": ErrAlreadyInRoom,
		"room_finished":   ErrRoomFinished,
	}
	for reply, want := range cases {
		t.Run(reply, func(t *testing.T) {
			r, mock := newMockRegistry(t)
			mock.ExpectFCall("room_join", joinKeys, "R", aliceJSON, fixedNow.UnixMilli(), 3600).
				SetErr(errors.New(reply))

			_, _, err := r.Join(context.Background(), JoinRequest{RoomCode: "R", ConnectionID: "c1", DisplayName: "Alice"})
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestRedisJoinUnexpectedReply(t *testing.T) {
	r, mock := newMockRegistry(t)
	mock.ExpectFCall("room_join", joinKeys, "R", aliceJSON, fixedNow.UnixMilli(), 3600).
		SetVal([]interface{}{"[]"})

	_, _, err := r.Join(context.Background(), JoinRequest{RoomCode: "R", ConnectionID: "c1", DisplayName: "Alice"})
	assert.Error(t, err)
}

func TestRedisUpdateProgress(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()
	keys := []string{"room:R", "room_t:R"}

	mock.ExpectFCall("room_progress", keys, "display_name", "Alice", "0.1234567890123456", 3600).
		SetVal(`[{"id":"p1","display_name":"Alice","progress":0.1234567890123456}]`)
	roster, err := r.UpdateProgress(ctx, "R", "Alice", 0.1234567890123456)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 0.1234567890123456, roster[0].Progress)

	mock.ExpectFCall("room_progress", keys, "id", "p1", "40", 3600).
		SetVal(`[{"id":"p1","display_name":"Alice","progress":40}]`)
	roster, err = r.UpdateProgressByID(ctx, "R", "p1", 40)
	require.NoError(t, err)
	assert.Equal(t, 40.0, roster[0].Progress)

	mock.ExpectFCall("room_progress", keys, "id", "p1", "1", 3600).
		SetErr(errors.New("room_finished"))
	_, err = r.UpdateProgressByID(ctx, "R", "p1", 1)
	assert.ErrorIs(t, err, ErrRoomFinished)

	mock.ExpectFCall("room_progress", []string{"room:NOPE", "room_t:NOPE"}, "id", "p1", "1", 3600).
		SetVal("[]")
	roster, err = r.UpdateProgressByID(ctx, "NOPE", "p1", 1)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRedisRemove(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()

	mock.ExpectHGet("room_conns", "c1").SetVal("R")
	mock.ExpectFCall("room_remove", joinKeys, "c1", "R").
		SetVal(`[{"id":"p2","connection_id":"c2","display_name":"Bob","progress":0}]`)
	code, roster, found, err := r.Remove(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "R", code)
	require.Len(t, roster, 1)
	assert.Equal(t, "Bob", roster[0].DisplayName)

	// last one out
	mock.ExpectHGet("room_conns", "c2").SetVal("R")
	mock.ExpectFCall("room_remove", joinKeys, "c2", "R").SetVal("[]")
	code, roster, found, err = r.Remove(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "R", code)
	assert.Empty(t, roster)
}

func TestRedisRemoveStaleIndex(t *testing.T) {
	r, mock := newMockRegistry(t)

	mock.ExpectHGet("room_conns", "c1").SetVal("R")
	mock.ExpectFCall("room_remove", joinKeys, "c1", "R").SetErr(errors.New("stale_index"))
	code, _, found, err := r.Remove(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, code)
}

func TestRedisRemoveError(t *testing.T) {
	r, mock := newMockRegistry(t)
	boom := errors.New("connection reset")

	mock.ExpectHGet("room_conns", "c1").SetVal("R")
	mock.ExpectFCall("room_remove", joinKeys, "c1", "R").SetErr(boom)
	_, _, found, err := r.Remove(context.Background(), "c1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
}

func TestRedisTransition(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()
	keys := []string{"room:R", "room_t:R"}

	mock.ExpectFCall("room_transition", keys, "STARTED", "1", 3600).SetVal("[" + aliceJSON + "]")
	roster, err := r.Transition(ctx, "R", StateStarted, true)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	mock.ExpectFCall("room_transition", keys, "STARTED", "1", 3600).SetErr(errors.New("invalid_transition"))
	_, err = r.Transition(ctx, "R", StateStarted, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	mock.ExpectFCall("room_transition", []string{"room:X", "room_t:X"}, "FINISHED", "1", 3600).
		SetErr(errors.New("room_not_found"))
	_, err = r.Transition(ctx, "X", StateFinished, true)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	mock.ExpectFCall("room_transition", []string{"room:X", "room_t:X"}, "FINISHED", "0", 3600).SetVal("[]")
	roster, err = r.Transition(ctx, "X", StateFinished, false)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRedisExpire(t *testing.T) {
	r, mock := newMockRegistry(t)

	mock.ExpectFCall("room_expire", []string{"room:R", "room_conns"}, "R").SetVal(int64(2))
	dropped, err := r.Expire(context.Background(), "R")
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)
}
