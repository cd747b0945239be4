package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertEntry = `
INSERT INTO enrollment_journal
    (id, session_id, username, kind, device_name, device_id, location_id, token_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listEntries = `
SELECT id, session_id, username, kind, device_name, device_id, location_id, token_hash, created_at
FROM enrollment_journal
WHERE ($1 = '' OR username = $1)
ORDER BY created_at DESC
LIMIT $2`
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	e = normalize(e)
	_, err := s.pool.Exec(ctx, insertEntry,
		e.ID,
		e.SessionID,
		e.Username,
		string(e.Kind),
		e.DeviceName,
		pgtype.Int8{Int64: e.DeviceID, Valid: e.DeviceID != 0},
		pgtype.Int8{Int64: e.LocationID, Valid: e.LocationID != 0},
		e.TokenHash,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, username string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, listEntries, username, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e          Entry
			kind       string
			deviceID   pgtype.Int8
			locationID pgtype.Int8
		)
		if err := row.Scan(&e.ID, &e.SessionID, &e.Username, &kind, &e.DeviceName,
			&deviceID, &locationID, &e.TokenHash, &e.CreatedAt); err != nil {
			return Entry{}, err
		}
		e.Kind = Kind(kind)
		e.DeviceID = deviceID.Int64
		e.LocationID = locationID.Int64
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal entries: %w", err)
	}
	return entries, nil
}
