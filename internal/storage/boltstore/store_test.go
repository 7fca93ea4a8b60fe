package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game_data", "sessions.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStoreSaveLoad(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)

	s := models.NewSession(-100123, now)
	s.Players = append(s.Players, models.Player{ID: 7, Username: "kim", JoinedAt: now})
	s.Settings.OnlineMode = true
	s.VotingRound = models.NewVotingRound(now, time.Minute)
	s.VotingRound.Cast(7, 7)
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx, -100123)
	require.NoError(t, err)
	assert.Equal(t, s.Players, loaded.Players)
	assert.True(t, loaded.Settings.OnlineMode)
	require.NotNil(t, loaded.VotingRound)
	assert.Equal(t, s.VotingRound.ID, loaded.VotingRound.ID)
	assert.Equal(t, []models.Ballot{{Voter: 7, Target: 7}}, loaded.VotingRound.Votes)
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := openTestStore(t)
	_, err := store.Load(context.Background(), 1)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStoreDeleteAndLoadAll(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []int64{models.GlobalRoomID, -1, -2} {
		require.NoError(t, store.Save(ctx, models.NewSession(id, now)))
	}
	require.NoError(t, store.Delete(ctx, -1))
	require.NoError(t, store.Delete(ctx, 404))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, models.GlobalRoomID)
	assert.Contains(t, all, int64(-2))
}

func TestStoreRejectsCanceledContext(t *testing.T) {
	store, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, models.NewSession(1, time.Now())), context.Canceled)
}

func TestHydrateMigratesLegacyPayload(t *testing.T) {
	store, path := openTestStore(t)

	// Sessions written before voteTimeSeconds and onlineMode existed.
	legacy := []byte(`{"roomId":-9,"players":[{"id":1}],"settings":{"minPlayers":0}}`)
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put(roomKey(-9), legacy)
	}))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	reg := session.NewRegistry(store, log)
	n, err := reg.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, ok := reg.Get(context.Background(), -9)
	require.True(t, ok)
	assert.Equal(t, models.DefaultMinPlayers, s.Settings.MinPlayers)
	assert.Equal(t, models.DefaultVoteTimeSeconds, s.Settings.VoteTimeSeconds)
	assert.False(t, s.Settings.OnlineMode)

	// The migrated form was written back.
	require.NoError(t, store.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	persisted, err := reopened.Load(context.Background(), -9)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultVoteTimeSeconds, persisted.Settings.VoteTimeSeconds)
}
