package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-room-service/internal/domain"
)

// ResultStore archives ended rooms in the room_results table.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SaveResult upserts the room's row; saving the same room twice keeps the latest standings.
func (s *ResultStore) SaveResult(ctx context.Context, result domain.RoomResult) error {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO room_results (code, title, description, scheduled_start, started_at, ended_at, standings)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (code) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	scheduled_start = EXCLUDED.scheduled_start,
	started_at = EXCLUDED.started_at,
	ended_at = EXCLUDED.ended_at,
	standings = EXCLUDED.standings`,
		result.Code, result.Title, result.Description,
		result.ScheduledStart, result.StartedAt, result.EndedAt, standings,
	)
	if err != nil {
		return fmt.Errorf("save room result: %w", err)
	}
	return nil
}

func (s *ResultStore) LoadResult(ctx context.Context, code string) (domain.RoomResult, error) {
	var (
		result domain.RoomResult
		raw    []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT code, title, description, scheduled_start, started_at, ended_at, standings
FROM room_results WHERE code=$1`, code).Scan(
		&result.Code, &result.Title, &result.Description,
		&result.ScheduledStart, &result.StartedAt, &result.EndedAt, &raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoomResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.RoomResult{}, fmt.Errorf("load room result: %w", err)
	}
	if err := json.Unmarshal(raw, &result.Standings); err != nil {
		return domain.RoomResult{}, fmt.Errorf("unmarshal standings: %w", err)
	}
	return result, nil
}

// GetResult lets the store serve as an app.ResultRepository without a cache in front.
func (s *ResultStore) GetResult(ctx context.Context, code string) (domain.RoomResult, error) {
	return s.LoadResult(ctx, code)
}

// Ping reports whether the database is reachable.
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
