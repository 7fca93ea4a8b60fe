// internal/game/roles.go
package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultTopicTimeout bounds a single topic provider call.
const DefaultTopicTimeout = 10 * time.Second

// TopicProvider generates a specific secret word for a category.
type TopicProvider interface {
	Enabled() bool
	Generate(ctx context.Context, category string) (string, error)
}

// Assignment is the outcome of preparing a game: who the imposters are and the shared topic.
type Assignment struct {
	Imposters []int64
	Topic     string
	// Source is "provider" or "fallback", for logging.
	Source   string
	Category string
}

// RoleEngine selects imposters and a topic for a roster. It never touches session state.
type RoleEngine struct {
	Topics     TopicProvider
	Timeout    time.Duration
	Categories []string
	Fallback   []string
	Log        logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoleEngine builds an engine seeded from crypto/rand. topics may be nil.
func NewRoleEngine(topics TopicProvider, log logrus.FieldLogger) *RoleEngine {
	return NewRoleEngineWithRand(topics, log, rand.New(rand.NewSource(newSeed())))
}

// NewRoleEngineWithRand builds an engine over a caller-supplied source, for reproducible tests.
func NewRoleEngineWithRand(topics TopicProvider, log logrus.FieldLogger, rng *rand.Rand) *RoleEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RoleEngine{
		Topics:     topics,
		Timeout:    DefaultTopicTimeout,
		Categories: Categories,
		Fallback:   FallbackTopics,
		Log:        log,
		rng:        rng,
	}
}

func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// Prepare picks max(1, floor(n/4)) imposters uniformly at random and a topic.
func (e *RoleEngine) Prepare(ctx context.Context, roster []models.Player, settings models.Settings) (Assignment, error) {
	if len(roster) == 0 || len(roster) < settings.MinPlayers {
		return Assignment{}, ErrInsufficientPlayers
	}

	a := Assignment{Imposters: e.pickImposters(roster)}
	a.Topic, a.Category, a.Source = e.pickTopic(ctx)
	return a, nil
}

// pickImposters shuffles the roster ids (Fisher-Yates) and takes a prefix, so every
// subset of the target size is equally likely.
func (e *RoleEngine) pickImposters(roster []models.Player) []int64 {
	ids := make([]int64, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}

	e.mu.Lock()
	for i := len(ids) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	e.mu.Unlock()

	return ids[:models.ImposterCount(len(ids))]
}

func (e *RoleEngine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// pickTopic asks the provider for a word from a random category, falling back to
// the static vocabulary on any provider failure.
func (e *RoleEngine) pickTopic(ctx context.Context) (topic, category, source string) {
	if e.Topics != nil && e.Topics.Enabled() && len(e.Categories) > 0 {
		category = e.Categories[e.intn(len(e.Categories))]

		timeout := e.Timeout
		if timeout <= 0 {
			timeout = DefaultTopicTimeout
		}
		word, err := e.generate(ctx, category, timeout)
		word = strings.TrimSpace(word)
		if err == nil && word != "" {
			return word, category, "provider"
		}
		if err == nil {
			err = ErrProviderUnavailable
		}
		e.Log.WithFields(logrus.Fields{
			"category": category,
			"kind":     KindProviderUnavailable,
		}).WithError(err).Warn("topic provider produced nothing, using fallback vocabulary")
	}

	return e.Fallback[e.intn(len(e.Fallback))], category, "fallback"
}

// generate returns once the provider answers or the timeout passes, whichever is first,
// even if the provider ignores its context.
func (e *RoleEngine) generate(ctx context.Context, category string, timeout time.Duration) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		word string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		word, err := e.Topics.Generate(tctx, category)
		ch <- reply{word, err}
	}()

	select {
	case r := <-ch:
		return r.word, r.err
	case <-tctx.Done():
		return "", tctx.Err()
	}
}
