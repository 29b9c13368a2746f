package ws

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers a room broadcast to every subscriber of the room,
// wherever it is connected.
type Publisher interface {
	Publish(ctx context.Context, code string, msg []byte) error
	// Subscribe and Unsubscribe are called once per local connection that
	// enters or leaves the room.
	Subscribe(code string)
	Unsubscribe(code string)
}

// localPublisher serves single-instance deployments straight from the Hub.
type localPublisher struct {
	hub *Hub
}

func NewLocalPublisher(h *Hub) Publisher { return &localPublisher{hub: h} }

func (p *localPublisher) Publish(_ context.Context, code string, msg []byte) error {
	p.hub.Broadcast(code, msg)
	return nil
}

func (p *localPublisher) Subscribe(string)   {}
func (p *localPublisher) Unsubscribe(string) {}

// redisPublisher routes broadcasts through Redis pub/sub so that every
// gateway instance holding subscribers of the room relays them.
type redisPublisher struct {
	rdb    *redis.Client
	subMgr *subscriptionManager
}

func NewRedisPublisher(rdb *redis.Client, h *Hub) Publisher {
	return &redisPublisher{rdb: rdb, subMgr: newSubscriptionManager(rdb, h)}
}

func (p *redisPublisher) Publish(ctx context.Context, code string, msg []byte) error {
	return p.rdb.Publish(ctx, roomChannel(code), msg).Err()
}

func (p *redisPublisher) Subscribe(code string)   { p.subMgr.Subscribe(code) }
func (p *redisPublisher) Unsubscribe(code string) { p.subMgr.Unsubscribe(code) }

func roomChannel(code string) string { return "room:" + code + ":events" }
