package roomwatcher

import (
	"context"
	"strings"

	"classgame/internal/metrics"
	"classgame/internal/room"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Expirer drops an idle room from the shared registry.
type Expirer interface {
	Expire(ctx context.Context, code string) (int64, error)
}

// Run listens to key‑expiry events and drops rooms whose idle timer lapsed,
// i.e. rooms whose gateway instances vanished without disconnecting anyone.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, exp Expirer, m *metrics.Metrics) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handleExpired(ctx, msg.Payload, exp, m)
		}
	}
}

func handleExpired(ctx context.Context, key string, exp Expirer, m *metrics.Metrics) bool {
	if !strings.HasPrefix(key, room.RedisRoomTimerPrefix) {
		return false
	}
	code := strings.TrimPrefix(key, room.RedisRoomTimerPrefix)
	dropped, err := exp.Expire(ctx, code)
	if err != nil {
		zap.L().Warn("roomwatcher.expire", zap.String("room", code), zap.Error(err))
		return false
	}
	m.RoomExpired()
	zap.L().Info("roomwatcher.expired", zap.String("room", code), zap.Int64("connections", dropped))
	return true
}
