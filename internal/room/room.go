package room

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle stage of a room.
type State string

const (
	StateOpen     State = "OPEN"
	StateStarted  State = "STARTED"
	StateFinished State = "FINISHED"
)

// DefaultAvatar is used when a participant joins without an avatar.
const DefaultAvatar = "/images/avatars/default.png"

var (
	ErrMissingRoomCode     = errors.New("missing_room_code")
	ErrMissingDisplayName  = errors.New("missing_display_name")
	ErrMissingConnectionID = errors.New("missing_connection_id")
	ErrAlreadyInRoom       = errors.New("already_in_room")
	ErrRoomFinished        = errors.New("room_finished")
	ErrRoomNotFound        = errors.New("room_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
)

// Participant is one connection's presence inside a room.
type Participant struct {
	ID           string  `json:"id"`
	ConnectionID string  `json:"connection_id"`
	DisplayName  string  `json:"display_name"`
	AvatarRef    string  `json:"avatar_ref"`
	Progress     float64 `json:"progress"`
}

// Roster is the ordered (join order) list of a room's participants.
type Roster []Participant

// Info describes a room without exposing its mutable state.
type Info struct {
	Code      string    `json:"code"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Roster    Roster    `json:"roster"`
}

// JoinRequest carries the fields supplied by a client when joining.
type JoinRequest struct {
	RoomCode     string
	ConnectionID string
	DisplayName  string
	AvatarRef    string
}

func (r JoinRequest) validate() error {
	switch {
	case r.RoomCode == "":
		return ErrMissingRoomCode
	case r.ConnectionID == "":
		return ErrMissingConnectionID
	case r.DisplayName == "":
		return ErrMissingDisplayName
	}
	return nil
}

// Registry is the authoritative store of open rooms.
//
// Absence of a room is never an error for reads, progress updates or
// removals: they return an empty roster instead. Join creates rooms lazily.
type Registry interface {
	// Join adds the connection to the room, or returns the current roster
	// unchanged when the connection is already a member.
	Join(ctx context.Context, req JoinRequest) (Roster, Participant, error)
	// UpdateProgress sets the progress of every participant named displayName.
	UpdateProgress(ctx context.Context, code, displayName string, value float64) (Roster, error)
	// UpdateProgressByID sets the progress of exactly one participant.
	UpdateProgressByID(ctx context.Context, code, participantID string, value float64) (Roster, error)
	// Remove drops the connection from the room it belongs to. found is false
	// when the connection is not in any room.
	Remove(ctx context.Context, connectionID string) (code string, roster Roster, found bool, err error)
	Snapshot(ctx context.Context, code string) (Roster, error)
	// Transition moves the room to the given state. With strict set, only
	// OPEN->STARTED and STARTED->FINISHED are accepted.
	Transition(ctx context.Context, code string, to State, strict bool) (Roster, error)
	Info(ctx context.Context, code string) (Info, bool, error)
}

// canTransition reports whether from->to is a legal strict transition.
func canTransition(from, to State) bool {
	switch {
	case from == StateOpen && to == StateStarted:
		return true
	case from == StateStarted && to == StateFinished:
		return true
	}
	return false
}

func avatarOrDefault(ref string) string {
	if ref == "" {
		return DefaultAvatar
	}
	return ref
}
