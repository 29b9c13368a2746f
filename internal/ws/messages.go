package ws

import (
	"encoding/json"

	roompkg "classgame/internal/room"
)

// Inbound events.
const (
	EventJoinRoom       = "join_room"
	EventStartGame      = "start_game"
	EventUpdateProgress = "update_progress"
	EventFinishGame     = "finish_game"
)

// Outbound events.
const (
	EventUpdatePlayerList     = "update_player_list"
	EventGameStarted          = "game_started"
	EventPlayerProgressUpdate = "player_progress_update"
	EventGameFinished         = "game_finished"
	EventError                = "error"
	ackSuffix                 = "-ack"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join_room"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// outbound is the server-side twin of Envelope.
type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

type JoinRoomRequest struct {
	RoomCode    string `json:"room_code"    validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	AvatarRef   string `json:"avatar_ref"`
}

type RoomRequest struct {
	RoomCode string `json:"room_code" validate:"required"`
}

// UpdateProgressRequest targets one participant when ParticipantID is set,
// otherwise every participant carrying DisplayName.
type UpdateProgressRequest struct {
	RoomCode      string  `json:"room_code"      validate:"required"`
	DisplayName   string  `json:"display_name"   validate:"required_without=ParticipantID"`
	ParticipantID string  `json:"participant_id" validate:"omitempty,max=64"`
	NewValue      float64 `json:"new_value"`
}

// JoinAck tells the joining connection who it is inside the room.
type JoinAck struct {
	Participant roompkg.Participant `json:"participant"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures, to the originating connection only.
type ErrorBody struct {
	Event  string `json:"event,omitempty"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
