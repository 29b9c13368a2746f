package ws

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per "room:<code>:events" channel ― no matter how many websocket
// clients of this instance sit in the same room.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[string]*subEntry // room code ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the room’s channel;
// subsequent calls for the same room only increment the ref‑counter.
func (sm *subscriptionManager) Subscribe(code string) {
	sm.mu.Lock()
	if e, ok := sm.subs[code]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First local subscriber → create Redis SUB and fan‑out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, roomChannel(code))

	// Wait for the confirmation so that a broadcast published right after
	// the join is not lost.
	rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := ps.Receive(rctx)
	rcancel()
	if err != nil {
		zap.L().Warn("ws.redis_subscribe", zap.String("room", code), zap.Error(err))
	}

	sm.subs[code] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok { // Redis connection closed.
					return
				}
				// payloads are already wrapped in the public envelope
				sm.hub.Broadcast(code, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref‑counter and tears the Redis SUB down when the
// last local websocket client leaves the room.
func (sm *subscriptionManager) Unsubscribe(code string) {
	sm.mu.Lock()
	e, ok := sm.subs[code]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, code)
	sm.mu.Unlock()

	// Outside the lock → stop the fan‑out goroutine.
	e.cancel()
}

