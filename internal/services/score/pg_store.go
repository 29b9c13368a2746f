package score

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by the score_records table.
func NewPostgresStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) InKeyTx(ctx context.Context, key Key, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Transaction-scoped advisory lock: concurrent submissions for the same
	// key (from any instance) queue here until this one commits.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
		return err
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *pgStore) List(ctx context.Context, ownerID, roomCode string, limit int) ([]Record, error) {
	const q = `SELECT id, owner_id, room_code, participant_id, points, recorded_at
	             FROM score_records
	            WHERE owner_id = $1 AND room_code = $2
	         ORDER BY points DESC, recorded_at ASC
	            LIMIT $3`
	rows, err := s.db.QueryContext(ctx, q, ownerID, roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Key.OwnerID, &r.Key.RoomCode,
			&r.Key.ParticipantID, &r.Points, &r.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Latest(ctx context.Context, key Key) (Record, bool, error) {
	const q = `SELECT id, points, recorded_at
	             FROM score_records
	            WHERE owner_id = $1 AND room_code = $2 AND participant_id = $3
	         ORDER BY recorded_at DESC, id DESC
	            LIMIT 1`
	r := Record{Key: key}
	err := t.tx.QueryRowContext(ctx, q, key.OwnerID, key.RoomCode, key.ParticipantID).
		Scan(&r.ID, &r.Points, &r.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (t *pgTx) Touch(ctx context.Context, id int64, points float64, at time.Time) error {
	const q = `UPDATE score_records SET points = $2, recorded_at = $3 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, q, id, points, at)
	return err
}

func (t *pgTx) Insert(ctx context.Context, key Key, points float64, at time.Time) (Record, error) {
	const q = `INSERT INTO score_records (owner_id, room_code, participant_id, points, recorded_at)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING id`
	r := Record{Key: key, Points: points, RecordedAt: at}
	if err := t.tx.QueryRowContext(ctx, q,
		key.OwnerID, key.RoomCode, key.ParticipantID, points, at).Scan(&r.ID); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (t *pgTx) DeleteNear(ctx context.Context, key Key, keepID int64, from, to time.Time) (int64, error) {
	const q = `DELETE FROM score_records
	            WHERE owner_id = $1 AND room_code = $2 AND participant_id = $3
	              AND id <> $4
	              AND recorded_at BETWEEN $5 AND $6`
	res, err := t.tx.ExecContext(ctx, q,
		key.OwnerID, key.RoomCode, key.ParticipantID, keepID, from, to)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
