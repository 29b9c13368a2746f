package room

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisRoomKeyPrefix      = "room:"
	redisRoomTimerKeyPrefix = "room_t:"
	redisConnIndexKey       = "room_conns"
)

// RedisRoomTimerPrefix is the key prefix whose expiry marks an idle room.
const RedisRoomTimerPrefix = redisRoomTimerKeyPrefix

// RedisRegistry stores rooms in Redis so that several gateway instances share
// one view of every roster. Mutations run as Redis Functions (see rooms.lua),
// which keeps each of them atomic.
type RedisRegistry struct {
	rdc     *redis.Client
	idleTTL time.Duration
	now     func() time.Time
	newID   func() string
}

func NewRedisRegistry(rdc *redis.Client, idleTTL time.Duration) *RedisRegistry {
	return &RedisRegistry{rdc: rdc, idleTTL: idleTTL, now: time.Now, newID: uuid.NewString}
}

var _ Registry = (*RedisRegistry)(nil)

func (r *RedisRegistry) ttlSeconds() int {
	s := int(r.idleTTL.Seconds())
	if s <= 0 {
		return 1
	}
	return s
}

func (r *RedisRegistry) Join(ctx context.Context, req JoinRequest) (Roster, Participant, error) {
	if err := req.validate(); err != nil {
		return nil, Participant{}, err
	}
	p := Participant{
		ID:           r.newID(),
		ConnectionID: req.ConnectionID,
		DisplayName:  req.DisplayName,
		AvatarRef:    avatarOrDefault(req.AvatarRef),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, Participant{}, err
	}

	res, err := r.rdc.FCall(ctx, "room_join",
		[]string{
			redisRoomKeyPrefix + req.RoomCode,
			redisRoomTimerKeyPrefix + req.RoomCode,
			redisConnIndexKey,
		},
		req.RoomCode,
		string(raw),
		r.now().UnixMilli(),
		r.ttlSeconds(),
	).StringSlice()
	if err != nil {
		return nil, Participant{}, mapRedisError(err)
	}
	if len(res) != 2 {
		return nil, Participant{}, errors.New("room_join: unexpected reply")
	}

	roster, err := decodeRoster(res[0])
	if err != nil {
		return nil, Participant{}, err
	}
	var joined Participant
	if err := json.Unmarshal([]byte(res[1]), &joined); err != nil {
		return nil, Participant{}, err
	}
	return roster, joined, nil
}

func (r *RedisRegistry) UpdateProgress(ctx context.Context, code, displayName string, value float64) (Roster, error) {
	return r.progress(ctx, code, "display_name", displayName, value)
}

func (r *RedisRegistry) UpdateProgressByID(ctx context.Context, code, participantID string, value float64) (Roster, error) {
	return r.progress(ctx, code, "id", participantID, value)
}

func (r *RedisRegistry) progress(ctx context.Context, code, field, match string, value float64) (Roster, error) {
	raw, err := r.rdc.FCall(ctx, "room_progress",
		[]string{redisRoomKeyPrefix + code, redisRoomTimerKeyPrefix + code},
		field,
		match,
		strconv.FormatFloat(value, 'f', -1, 64),
		r.ttlSeconds(),
	).Text()
	if err != nil {
		return nil, mapRedisError(err)
	}
	return decodeRoster(raw)
}

func (r *RedisRegistry) Remove(ctx context.Context, connectionID string) (string, Roster, bool, error) {
	code, err := r.rdc.HGet(ctx, redisConnIndexKey, connectionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}

	raw, err := r.rdc.FCall(ctx, "room_remove",
		[]string{
			redisRoomKeyPrefix + code,
			redisRoomTimerKeyPrefix + code,
			redisConnIndexKey,
		},
		connectionID,
		code,
	).Text()
	if err != nil {
		if strings.Contains(err.Error(), "stale_index") {
			// someone else removed or moved the connection in between
			return "", nil, false, nil
		}
		return "", nil, false, err
	}
	roster, err := decodeRoster(raw)
	if err != nil {
		return "", nil, false, err
	}
	return code, roster, true, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context, code string) (Roster, error) {
	raw, err := r.rdc.HGet(ctx, redisRoomKeyPrefix+code, "roster").Result()
	if errors.Is(err, redis.Nil) {
		return Roster{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRoster(raw)
}

func (r *RedisRegistry) Transition(ctx context.Context, code string, to State, strict bool) (Roster, error) {
	flag := "0"
	if strict {
		flag = "1"
	}
	raw, err := r.rdc.FCall(ctx, "room_transition",
		[]string{redisRoomKeyPrefix + code, redisRoomTimerKeyPrefix + code},
		string(to),
		flag,
		r.ttlSeconds(),
	).Text()
	if err != nil {
		return nil, mapRedisError(err)
	}
	return decodeRoster(raw)
}

func (r *RedisRegistry) Info(ctx context.Context, code string) (Info, bool, error) {
	data, err := r.rdc.HGetAll(ctx, redisRoomKeyPrefix+code).Result()
	if err != nil {
		return Info{}, false, err
	}
	if len(data) == 0 {
		return Info{}, false, nil
	}
	roster, err := decodeRoster(data["roster"])
	if err != nil {
		return Info{}, false, err
	}
	ms, _ := strconv.ParseInt(data["created"], 10, 64)
	return Info{
		Code:      code,
		State:     State(data["state"]),
		CreatedAt: time.UnixMilli(ms).UTC(),
		Roster:    roster,
	}, true, nil
}

// Expire drops an idle room and every connection index entry pointing at it.
// It is driven by the keyspace-expiry watcher once room_t:<code> lapses.
func (r *RedisRegistry) Expire(ctx context.Context, code string) (int64, error) {
	return r.rdc.FCall(ctx, "room_expire",
		[]string{redisRoomKeyPrefix + code, redisConnIndexKey},
		code,
	).Int64()
}

func decodeRoster(raw string) (Roster, error) {
	if raw == "" || raw == "[]" || raw == "{}" {
		return Roster{}, nil
	}
	var roster Roster
	if err := json.Unmarshal([]byte(raw), &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

func mapRedisError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already_in_room"):
		return ErrAlreadyInRoom
	case strings.Contains(msg, "room_finished"):
		return ErrRoomFinished
	case strings.Contains(msg, "room_not_found"):
		return ErrRoomNotFound
	case strings.Contains(msg, "invalid_transition"):
		return ErrInvalidTransition
	}
	return err
}
