package score

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCoalesceWindow = 30 * time.Second
	DefaultRaceWindow     = time.Second
)

var (
	ErrMissingOwner       = errors.New("missing owner_id")
	ErrMissingRoomCode    = errors.New("missing room_code")
	ErrMissingParticipant = errors.New("missing participant_id")
)

// Key identifies the logical score slot a submission lands in.
type Key struct {
	OwnerID       string `json:"owner_id"`
	RoomCode      string `json:"room_code"`
	ParticipantID string `json:"participant_id"`
}

func (k Key) validate() error {
	switch {
	case k.OwnerID == "":
		return ErrMissingOwner
	case k.RoomCode == "":
		return ErrMissingRoomCode
	case k.ParticipantID == "":
		return ErrMissingParticipant
	}
	return nil
}

func (k Key) String() string {
	return k.OwnerID + "|" + k.RoomCode + "|" + k.ParticipantID
}

// Record is one persisted score.
type Record struct {
	ID         int64     `json:"id"`
	Key        Key       `json:"key"`
	Points     float64   `json:"points"`
	RecordedAt time.Time `json:"recorded_at" example:"2026-01-01T10:00:00Z"`
}

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// Result is what a submission did to the store.
type Result struct {
	Record            Record  `json:"record"`
	Outcome           Outcome `json:"outcome"`
	RemovedDuplicates int64   `json:"removed_duplicates"`
}

type IScoreService interface {
	Submit(ctx context.Context, key Key, points float64) (Result, error)
	Leaderboard(ctx context.Context, ownerID, roomCode string, limit int) ([]Record, error)
}

type scoreService struct {
	store          Store
	coalesceWindow time.Duration
	raceWindow     time.Duration
	now            func() time.Time
}

// Option customizes the score service.
type Option func(*scoreService)

func WithWindows(coalesce, race time.Duration) Option {
	return func(s *scoreService) {
		if coalesce > 0 {
			s.coalesceWindow = coalesce
		}
		if race > 0 {
			s.raceWindow = race
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *scoreService) { s.now = now }
}

func NewScoreService(store Store, opts ...Option) IScoreService {
	s := &scoreService{
		store:          store,
		coalesceWindow: DefaultCoalesceWindow,
		raceWindow:     DefaultRaceWindow,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit applies the coalescing rule: a submission less than coalesceWindow
// after the latest record for the same key overwrites it; anything else
// creates a new record, after which near-simultaneous siblings (within
// raceWindow of the new one) are deleted.
func (svc *scoreService) Submit(ctx context.Context, key Key, points float64) (Result, error) {
	if err := key.validate(); err != nil {
		return Result{}, err
	}

	var res Result
	err := svc.store.InKeyTx(ctx, key, func(ctx context.Context, tx Tx) error {
		now := svc.now().UTC()

		latest, ok, err := tx.Latest(ctx, key)
		if err != nil {
			return err
		}
		if ok && now.Sub(latest.RecordedAt) < svc.coalesceWindow {
			if err := tx.Touch(ctx, latest.ID, points, now); err != nil {
				return err
			}
			latest.Points, latest.RecordedAt = points, now
			res = Result{Record: latest, Outcome: OutcomeUpdated}
			return nil
		}

		rec, err := tx.Insert(ctx, key, points, now)
		if err != nil {
			return err
		}
		removed, err := tx.DeleteNear(ctx, key, rec.ID, now.Add(-svc.raceWindow), now.Add(svc.raceWindow))
		if err != nil {
			return err
		}
		res = Result{Record: rec, Outcome: OutcomeCreated, RemovedDuplicates: removed}
		return nil
	})
	if err != nil {
		zap.L().Warn("score.submit", zap.Stringer("key", key), zap.Error(err))
		return Result{}, err
	}
	if res.RemovedDuplicates > 0 {
		zap.L().Info("score.duplicates_removed",
			zap.Stringer("key", key),
			zap.Int64("removed", res.RemovedDuplicates),
		)
	}
	return res, nil
}

func (svc *scoreService) Leaderboard(ctx context.Context, ownerID, roomCode string, limit int) ([]Record, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if roomCode == "" {
		return nil, ErrMissingRoomCode
	}
	if limit <= 0 {
		limit = 10
	}
	return svc.store.List(ctx, ownerID, roomCode, limit)
}
