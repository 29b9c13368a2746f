package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"classgame/internal/metrics"
	roompkg "classgame/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	maxMessageSize = 4096
	sendBuffer     = 64
	handlerTimeout = 1900 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev‑only
}

// WsServer is the presence gateway: it terminates client sockets, applies
// their requests to the room registry and fans resulting rosters out.
type WsServer struct {
	hub      *Hub
	pub      Publisher
	router   *Router
	registry roompkg.Registry
	strict   bool
	metrics  *metrics.Metrics

	// mu serializes registry mutation + publish, so every subscriber of a
	// room sees broadcasts in the order the events were applied.
	mu sync.Mutex
}

type Option func(*WsServer)

// WithPublisher replaces the default in-process publisher.
func WithPublisher(p Publisher) Option { return func(s *WsServer) { s.pub = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *WsServer) { s.metrics = m } }

// WithStrictTransitions toggles enforcement of OPEN→STARTED→FINISHED.
func WithStrictTransitions(strict bool) Option { return func(s *WsServer) { s.strict = strict } }

func NewWsServer(h *Hub, registry roompkg.Registry, opts ...Option) *WsServer {
	srv := &WsServer{
		hub:      h,
		pub:      NewLocalPublisher(h),
		router:   NewRouter(),
		registry: registry,
		strict:   true,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle upgrades the request; the connection joins a room later through a
// join_room event.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	c := newClientConn(uuid.NewString(), rawConn)
	s.metrics.ConnOpened()
	zap.L().Debug("ws.connected", zap.String("conn", c.id))

	go c.writer()
	go s.reader(c)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join_room ------------------------------------------------------------
	Register(s.router, EventJoinRoom,
		func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) (JoinAck, error) {
			s.mu.Lock()
			defer s.mu.Unlock()

			roster, p, err := s.registry.Join(ctx, roompkg.JoinRequest{
				RoomCode:     req.RoomCode,
				ConnectionID: cc.ConnID,
				DisplayName:  req.DisplayName,
				AvatarRef:    req.AvatarRef,
			})
			if err != nil {
				return JoinAck{}, err
			}
			// The registry may have dropped an expired room behind this
			// connection's back, so follow whatever code it accepted.
			if cc.RoomCode != req.RoomCode {
				if cc.RoomCode != "" {
					s.hub.Leave(cc.RoomCode, cc.conn)
					s.pub.Unsubscribe(cc.RoomCode)
				}
				cc.RoomCode = req.RoomCode
				s.hub.Join(req.RoomCode, cc.conn)
				s.pub.Subscribe(req.RoomCode)
			}
			s.broadcast(ctx, req.RoomCode, EventUpdatePlayerList, roster)
			return JoinAck{Participant: p}, nil
		},
	)

	// 🔹 start_game -----------------------------------------------------------
	Register(s.router, EventStartGame,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) (AckBody, error) {
			s.mu.Lock()
			defer s.mu.Unlock()

			if _, err := s.registry.Transition(ctx, req.RoomCode, roompkg.StateStarted, s.strict); err != nil {
				return AckBody{}, err
			}
			s.broadcast(ctx, req.RoomCode, EventGameStarted, nil)
			return AckBody{}, nil
		},
	)

	// 🔹 update_progress ------------------------------------------------------
	Register(s.router, EventUpdateProgress,
		func(ctx context.Context, cc *ConnContext, req UpdateProgressRequest) (AckBody, error) {
			s.mu.Lock()
			defer s.mu.Unlock()

			var (
				roster roompkg.Roster
				err    error
			)
			if req.ParticipantID != "" {
				roster, err = s.registry.UpdateProgressByID(ctx, req.RoomCode, req.ParticipantID, req.NewValue)
			} else {
				roster, err = s.registry.UpdateProgress(ctx, req.RoomCode, req.DisplayName, req.NewValue)
			}
			if err != nil {
				return AckBody{}, err
			}
			s.broadcast(ctx, req.RoomCode, EventPlayerProgressUpdate, roster)
			return AckBody{}, nil
		},
	)

	// 🔹 finish_game ----------------------------------------------------------
	Register(s.router, EventFinishGame,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) (AckBody, error) {
			s.mu.Lock()
			defer s.mu.Unlock()

			// finishing freezes the roster, it does not remove anybody
			roster, err := s.registry.Transition(ctx, req.RoomCode, roompkg.StateFinished, s.strict)
			if err != nil {
				return AckBody{}, err
			}
			s.broadcast(ctx, req.RoomCode, EventGameFinished, roster)
			return AckBody{}, nil
		},
	)
}

// broadcast must be called with s.mu held.
func (s *WsServer) broadcast(ctx context.Context, code, event string, body any) {
	msg, err := json.Marshal(outbound{Event: event, Body: body})
	if err != nil {
		zap.L().Error("ws.marshal", zap.String("event", event), zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, code, msg); err != nil {
		zap.L().Warn("ws.publish", zap.String("room", code), zap.String("event", event), zap.Error(err))
		return
	}
	s.metrics.Broadcast(event)
}

func (s *WsServer) reader(conn *clientConn) {
	cc := &ConnContext{ConnID: conn.id, conn: conn}
	defer s.disconnect(cc)

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed, errored or missed its pongs
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reject(cc, "", &requestError{reason: errInvalidRequest, detail: err.Error()})
			continue
		}
		s.metrics.Event(env.Event)

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			s.reject(cc, env.Event, err)
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		_ = conn.writeJSON(outbound{Event: env.Event + ackSuffix, Body: res})
	}
}

// reject answers the originating connection only; the room is untouched.
func (s *WsServer) reject(cc *ConnContext, event string, err error) {
	body := ErrorBody{Event: event, Error: reasonOf(err)}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		body.Detail = reqErr.detail
	}
	s.metrics.Rejected(event, body.Error)
	if body.Error == "internal" {
		zap.L().Warn("ws.handler", zap.String("event", event), zap.String("conn", cc.ConnID), zap.Error(err))
	}
	_ = cc.conn.writeJSON(outbound{Event: EventError, Body: body})
}

// disconnect runs once per connection, after its reader loop ends.
func (s *WsServer) disconnect(cc *ConnContext) {
	cc.conn.close()
	s.metrics.ConnClosed()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cc.RoomCode != "" {
		s.hub.Leave(cc.RoomCode, cc.conn)
		s.pub.Unsubscribe(cc.RoomCode)
	}

	code, roster, found, err := s.registry.Remove(ctx, cc.ConnID)
	if err != nil {
		zap.L().Warn("ws.remove", zap.String("conn", cc.ConnID), zap.Error(err))
		return
	}
	if !found {
		return
	}
	zap.L().Debug("ws.left", zap.String("conn", cc.ConnID), zap.String("room", code))
	s.broadcast(ctx, code, EventUpdatePlayerList, roster)
}

var knownReasons = []error{
	errUnknownEvent,
	errInvalidRequest,
	roompkg.ErrMissingRoomCode,
	roompkg.ErrMissingDisplayName,
	roompkg.ErrMissingConnectionID,
	roompkg.ErrAlreadyInRoom,
	roompkg.ErrRoomFinished,
	roompkg.ErrRoomNotFound,
	roompkg.ErrInvalidTransition,
}

// reasonOf maps an error onto the short code clients switch on.
func reasonOf(err error) string {
	for _, known := range knownReasons {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal"
}
