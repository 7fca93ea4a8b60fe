package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectOrSkip runs against DATABASE_URL; the tests are skipped without it.
func connectOrSkip(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := Connect(context.Background(), url)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	require.NoError(t, EnsureSchema(context.Background(), pool))
	return pool
}

func TestPostgresStore(t *testing.T) {
	pool := connectOrSkip(t)
	store := NewPostgresStore(pool)
	defer store.Close()
	ctx := context.Background()

	// Test rooms use ids far from real chat ids.
	const room int64 = -9_000_000_001
	t.Cleanup(func() { _ = store.Delete(context.Background(), room) })

	_, err := store.Load(ctx, room)
	assert.ErrorIs(t, err, session.ErrNotFound)

	s := models.NewSession(room, time.Now().UTC())
	s.Topic = "ទន្លេសាប"
	require.NoError(t, store.Save(ctx, s))
	s.Started = true
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx, room)
	require.NoError(t, err)
	assert.True(t, loaded.Started)
	assert.Equal(t, "ទន្លេសាប", loaded.Topic)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, room)
}

func TestRecordGameResults(t *testing.T) {
	pool := connectOrSkip(t)
	defer pool.Close()
	ctx := context.Background()

	const room int64 = -9_000_000_002
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM game_results WHERE room_id = $1`, room)
	})

	endedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, RecordGameResults(ctx, pool, []models.GameResult{
		{RoomID: room, Topic: "ដំរី", Winner: models.WinnerImposters, Imposters: []int64{4}, Players: []int64{1, 2, 3, 4}, Eliminated: []int64{1, 2}, EndedAt: endedAt},
		{RoomID: room, Topic: "ឆ្មា", Winner: models.WinnerNone, Players: []int64{1, 2}, EndedAt: endedAt.Add(time.Minute)},
	}))

	got, err := RecentResults(ctx, pool, room, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ឆ្មា", got[0].Topic)
	assert.Empty(t, got[0].Imposters)
	assert.Equal(t, models.WinnerImposters, got[1].Winner)
	assert.Equal(t, []int64{1, 2}, got[1].Eliminated)
}

func TestRecordGameResultsEmptyBatch(t *testing.T) {
	assert.NoError(t, RecordGameResults(context.Background(), nil, nil))
}
