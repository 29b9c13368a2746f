package score

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	nextID  int64
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// InKeyTx runs fn against a staged copy and publishes it only on success.
func (m *MemoryStore) InKeyTx(ctx context.Context, _ Key, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &memoryTx{records: append([]Record(nil), m.records...), nextID: m.nextID}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	m.records, m.nextID = staged.records, staged.nextID
	return nil
}

func (m *MemoryStore) List(_ context.Context, ownerID, roomCode string, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if r.Key.OwnerID == ownerID && r.Key.RoomCode == roomCode {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns every stored record for key, oldest first.
func (m *MemoryStore) Records(key Key) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out
}

type memoryTx struct {
	records []Record
	nextID  int64
}

func (t *memoryTx) Latest(_ context.Context, key Key) (Record, bool, error) {
	var (
		best Record
		ok   bool
	)
	for _, r := range t.records {
		if r.Key != key {
			continue
		}
		if !ok || r.RecordedAt.After(best.RecordedAt) ||
			(r.RecordedAt.Equal(best.RecordedAt) && r.ID > best.ID) {
			best, ok = r, true
		}
	}
	return best, ok, nil
}

func (t *memoryTx) Touch(_ context.Context, id int64, points float64, at time.Time) error {
	for i := range t.records {
		if t.records[i].ID == id {
			t.records[i].Points = points
			t.records[i].RecordedAt = at
		}
	}
	return nil
}

func (t *memoryTx) Insert(_ context.Context, key Key, points float64, at time.Time) (Record, error) {
	t.nextID++
	r := Record{ID: t.nextID, Key: key, Points: points, RecordedAt: at}
	t.records = append(t.records, r)
	return r, nil
}

func (t *memoryTx) DeleteNear(_ context.Context, key Key, keepID int64, from, to time.Time) (int64, error) {
	kept := t.records[:0]
	var removed int64
	for _, r := range t.records {
		if r.Key == key && r.ID != keepID && !r.RecordedAt.Before(from) && !r.RecordedAt.After(to) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept
	return removed, nil
}
