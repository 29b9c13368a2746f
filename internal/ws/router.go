package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	errUnknownEvent   = errors.New("unknown_event")
	errInvalidRequest = errors.New("invalid_request")
)

// requestError carries the reason code sent back to the client plus the
// decoder/validator message as detail.
type requestError struct {
	reason error
	detail string
}

func (e *requestError) Error() string { return e.reason.Error() + ": " + e.detail }
func (e *requestError) Unwrap() error { return e.reason }

// ConnContext is what a handler knows about the connection it serves.
type ConnContext struct {
	ConnID   string
	RoomCode string // set once the connection joined a room
	conn     *clientConn
}

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error)

// Router keeps a map[event]handler, à‑la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]rawHandler), validate: validator.New()}
}

// Register binds an event to a strongly‑typed handler. Requests are decoded
// and validated before h runs.
func Register[Req any, Res any](
	r *Router,
	event string,
	h func(ctx context.Context, c *ConnContext, req Req) (Res, error),
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, &requestError{reason: errInvalidRequest, detail: err.Error()}
			}
		}
		if err := r.validate.Struct(req); err != nil {
			return nil, &requestError{reason: errInvalidRequest, detail: err.Error()}
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the server’s reader loop.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, env Envelope) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, errUnknownEvent
	}
	return h(ctx, c, env.Body)
}
