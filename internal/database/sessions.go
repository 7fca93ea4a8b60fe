package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
)

// PostgresStore keeps each session as a JSONB row keyed by room id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ session.Store = (*PostgresStore)(nil)

// NewPostgresStore wraps pool. Call EnsureSchema first.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, roomID int64) (*models.Session, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM sessions WHERE room_id = $1`, roomID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session %d: %w", roomID, err)
	}
	return session.Decode(payload)
}

func (s *PostgresStore) Save(ctx context.Context, sess *models.Session) error {
	payload, err := session.Encode(sess)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO sessions (room_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, q, sess.RoomID, payload, sess.UpdatedAt); err != nil {
		return fmt.Errorf("upsert session %d: %w", sess.RoomID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, roomID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("delete session %d: %w", roomID, err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (map[int64]*models.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_id, payload FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*models.Session)
	for rows.Next() {
		var (
			id      int64
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess, err := session.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("room %d: %w", id, err)
		}
		out[id] = sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
