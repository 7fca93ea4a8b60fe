package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/imposter/internal/models"
)

// RecordGameResults inserts a batch of finished games in one transaction.
func RecordGameResults(ctx context.Context, pool *pgxpool.Pool, results []models.GameResult) error {
	if len(results) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_results (room_id, topic, winner, imposters, players, eliminated, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, r := range results {
			if _, err := tx.Exec(ctx, q,
				r.RoomID, r.Topic, string(r.Winner), nonNil(r.Imposters), nonNil(r.Players), nonNil(r.Eliminated), r.EndedAt,
			); err != nil {
				return fmt.Errorf("insert result for room %d: %w", r.RoomID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game results: %w", err)
	}
	return nil
}

// RecentResults returns the latest limit results recorded for roomID, newest first.
func RecentResults(ctx context.Context, pool *pgxpool.Pool, roomID int64, limit int) ([]models.GameResult, error) {
	rows, err := pool.Query(ctx, `
		SELECT room_id, topic, winner, imposters, players, eliminated, ended_at
		FROM game_results
		WHERE room_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("select game results: %w", err)
	}
	defer rows.Close()

	var out []models.GameResult
	for rows.Next() {
		var (
			r      models.GameResult
			winner string
		)
		if err := rows.Scan(&r.RoomID, &r.Topic, &winner, &r.Imposters, &r.Players, &r.Eliminated, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		r.Winner = models.Winner(winner)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
