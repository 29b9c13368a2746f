package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRoom struct {
	code         string
	state        State
	createdAt    time.Time
	participants []Participant
}

func (r *memoryRoom) roster() Roster {
	out := make(Roster, len(r.participants))
	copy(out, r.participants)
	return out
}

func (r *memoryRoom) indexOfConn(connID string) int {
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// MemoryRegistry keeps rooms in process memory. All operations are
// serialized by a single mutex, so every call observes a consistent roster.
type MemoryRegistry struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
	conns map[string]string // connectionID -> room code

	now   func() time.Time
	newID func() string
}

// Option customizes a MemoryRegistry.
type Option func(*MemoryRegistry)

// WithClock overrides the clock used for room creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *MemoryRegistry) { r.now = now }
}

// WithIDGenerator overrides how participant ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(r *MemoryRegistry) { r.newID = gen }
}

func NewMemoryRegistry(opts ...Option) *MemoryRegistry {
	r := &MemoryRegistry{
		rooms: make(map[string]*memoryRoom),
		conns: make(map[string]string),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Registry = (*MemoryRegistry)(nil)

func (m *MemoryRegistry) Join(_ context.Context, req JoinRequest) (Roster, Participant, error) {
	if err := req.validate(); err != nil {
		return nil, Participant{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if code, ok := m.conns[req.ConnectionID]; ok {
		if code != req.RoomCode {
			return nil, Participant{}, ErrAlreadyInRoom
		}
		r := m.rooms[code]
		return r.roster(), r.participants[r.indexOfConn(req.ConnectionID)], nil
	}

	r, ok := m.rooms[req.RoomCode]
	if !ok {
		r = &memoryRoom{code: req.RoomCode, state: StateOpen, createdAt: m.now()}
		m.rooms[req.RoomCode] = r
	}
	if r.state == StateFinished {
		return nil, Participant{}, ErrRoomFinished
	}

	p := Participant{
		ID:           m.newID(),
		ConnectionID: req.ConnectionID,
		DisplayName:  req.DisplayName,
		AvatarRef:    avatarOrDefault(req.AvatarRef),
	}
	r.participants = append(r.participants, p)
	m.conns[req.ConnectionID] = req.RoomCode
	return r.roster(), p, nil
}

func (m *MemoryRegistry) UpdateProgress(_ context.Context, code, displayName string, value float64) (Roster, error) {
	return m.updateWhere(code, value, func(p Participant) bool { return p.DisplayName == displayName })
}

func (m *MemoryRegistry) UpdateProgressByID(_ context.Context, code, participantID string, value float64) (Roster, error) {
	return m.updateWhere(code, value, func(p Participant) bool { return p.ID == participantID })
}

func (m *MemoryRegistry) updateWhere(code string, value float64, match func(Participant) bool) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[code]
	if !ok {
		return Roster{}, nil
	}
	if r.state == StateFinished {
		return nil, ErrRoomFinished
	}
	for i := range r.participants {
		if match(r.participants[i]) {
			r.participants[i].Progress = value
		}
	}
	return r.roster(), nil
}

func (m *MemoryRegistry) Remove(_ context.Context, connectionID string) (string, Roster, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.conns[connectionID]
	if !ok {
		return "", nil, false, nil
	}
	delete(m.conns, connectionID)

	r, ok := m.rooms[code]
	if !ok {
		return "", nil, false, nil
	}
	if i := r.indexOfConn(connectionID); i >= 0 {
		r.participants = append(r.participants[:i], r.participants[i+1:]...)
	}
	if len(r.participants) == 0 {
		delete(m.rooms, code)
		return code, Roster{}, true, nil
	}
	return code, r.roster(), true, nil
}

func (m *MemoryRegistry) Snapshot(_ context.Context, code string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[code]; ok {
		return r.roster(), nil
	}
	return Roster{}, nil
}

func (m *MemoryRegistry) Transition(_ context.Context, code string, to State, strict bool) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[code]
	if !ok {
		if strict {
			return nil, ErrRoomNotFound
		}
		return Roster{}, nil
	}

	if strict {
		if !canTransition(r.state, to) {
			return nil, ErrInvalidTransition
		}
		r.state = to
		return r.roster(), nil
	}

	// permissive: the state only ever moves forward
	if rank(to) > rank(r.state) {
		r.state = to
	}
	return r.roster(), nil
}

func (m *MemoryRegistry) Info(_ context.Context, code string) (Info, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[code]
	if !ok {
		return Info{}, false, nil
	}
	return Info{Code: r.code, State: r.state, CreatedAt: r.createdAt, Roster: r.roster()}, true, nil
}

// Len returns the number of rooms currently held.
func (m *MemoryRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func rank(s State) int {
	switch s {
	case StateStarted:
		return 1
	case StateFinished:
		return 2
	}
	return 0
}
