package score

import (
	"context"
	"time"
)

// Store persists score records. InKeyTx must serialize callers that share a
// key for the whole duration of fn, and commit only if fn returns nil.
type Store interface {
	InKeyTx(ctx context.Context, key Key, fn func(ctx context.Context, tx Tx) error) error
	List(ctx context.Context, ownerID, roomCode string, limit int) ([]Record, error)
}

// Tx is the set of operations available inside one serialized submission.
type Tx interface {
	Latest(ctx context.Context, key Key) (Record, bool, error)
	Touch(ctx context.Context, id int64, points float64, at time.Time) error
	Insert(ctx context.Context, key Key, points float64, at time.Time) (Record, error)
	// DeleteNear removes records of key recorded in [from, to], except keepID.
	DeleteNear(ctx context.Context, key Key, keepID int64, from, to time.Time) (int64, error)
}
