package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTopics struct {
	enabled bool
	word    string
	err     error
	// block makes Generate hang until released, ignoring its context.
	block chan struct{}
	seen  []string
}

func (s *stubTopics) Enabled() bool { return s.enabled }

func (s *stubTopics) Generate(_ context.Context, category string) (string, error) {
	s.seen = append(s.seen, category)
	if s.block != nil {
		<-s.block
	}
	return s.word, s.err
}

func roster(n int) []models.Player {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{ID: int64(i + 1)}
	}
	return players
}

func TestPrepareImposterCount(t *testing.T) {
	e := NewRoleEngineWithRand(nil, quietLogger(), rand.New(rand.NewSource(1)))
	settings := models.Settings{MinPlayers: 1, VoteTimeSeconds: 60}

	for n := 1; n <= 30; n++ {
		a, err := e.Prepare(context.Background(), roster(n), settings)
		require.NoError(t, err)
		assert.Len(t, a.Imposters, max(1, n/4), "roster of %d", n)

		seen := make(map[int64]bool)
		for _, id := range a.Imposters {
			assert.True(t, id >= 1 && id <= int64(n), "imposter %d not in roster", id)
			assert.False(t, seen[id], "imposter %d picked twice", id)
			seen[id] = true
		}
	}
}

func TestPrepareInsufficientPlayers(t *testing.T) {
	e := NewRoleEngine(nil, quietLogger())

	_, err := e.Prepare(context.Background(), roster(3), models.DefaultSettings())
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	_, err = e.Prepare(context.Background(), nil, models.Settings{MinPlayers: 1})
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
}

func TestImposterSelectionIsUniform(t *testing.T) {
	e := NewRoleEngineWithRand(nil, quietLogger(), rand.New(rand.NewSource(42)))
	const (
		players = 8
		trials  = 20000
	)
	counts := make(map[int64]int)
	for i := 0; i < trials; i++ {
		a, err := e.Prepare(context.Background(), roster(players), models.DefaultSettings())
		require.NoError(t, err)
		for _, id := range a.Imposters {
			counts[id]++
		}
	}

	// Each player should be an imposter 2/8 of the time.
	expected := float64(trials) * 2 / players
	for id := int64(1); id <= players; id++ {
		assert.InEpsilon(t, expected, float64(counts[id]), 0.05, "player %d picked %d times", id, counts[id])
	}
}

func TestTopicFromProvider(t *testing.T) {
	topics := &stubTopics{enabled: true, word: "  ស្វាយ \n"}
	e := NewRoleEngineWithRand(topics, quietLogger(), rand.New(rand.NewSource(3)))

	a, err := e.Prepare(context.Background(), roster(4), models.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "ស្វាយ", a.Topic)
	assert.Equal(t, "provider", a.Source)
	require.Len(t, topics.seen, 1)
	assert.Contains(t, Categories, topics.seen[0])
}

func TestTopicFallback(t *testing.T) {
	tests := []struct {
		name   string
		topics TopicProvider
	}{
		{"no provider", nil},
		{"disabled", &stubTopics{enabled: false, word: "unused"}},
		{"error", &stubTopics{enabled: true, err: errors.New("connection refused")}},
		{"empty", &stubTopics{enabled: true, word: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewRoleEngineWithRand(tt.topics, quietLogger(), rand.New(rand.NewSource(5)))
			a, err := e.Prepare(context.Background(), roster(4), models.DefaultSettings())
			require.NoError(t, err)
			assert.Equal(t, "fallback", a.Source)
			assert.Contains(t, FallbackTopics, a.Topic)
		})
	}
}

func TestTopicProviderTimeoutIsBounded(t *testing.T) {
	topics := &stubTopics{enabled: true, word: "late", block: make(chan struct{})}
	defer close(topics.block)

	e := NewRoleEngineWithRand(topics, quietLogger(), rand.New(rand.NewSource(9)))
	e.Timeout = 20 * time.Millisecond

	start := time.Now()
	a, err := e.Prepare(context.Background(), roster(4), models.DefaultSettings())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "fallback", a.Source)
}
