// Package historian drains finished-game records from a queue and persists
// them in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/imposter/internal/cache"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Source yields queued results. Pop returns (nil, nil) when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.GameResult, error)
}

// Sink persists one batch of results.
type Sink func(ctx context.Context, batch []models.GameResult) error

// RedisSource pops results pushed by cache.ResultPublisher.
type RedisSource struct {
	RDB   *redis.Client
	Queue string
}

func (s RedisSource) Pop(ctx context.Context, timeout time.Duration) (*models.GameResult, error) {
	return cache.PopResult(ctx, s.RDB, s.Queue, timeout)
}

// maxPendingBatches caps how many unpersisted records are kept while the sink keeps failing.
const maxPendingBatches = 50

// Service accumulates results and flushes them when the batch fills or the
// flush interval passes, whichever comes first.
type Service struct {
	src        Source
	sink       Sink
	batchSize  int
	flushEvery time.Duration
	popTimeout time.Duration
	log        logrus.FieldLogger

	batch     []models.GameResult
	lastFlush time.Time
	// failed holds retries of a full batch back to the flush interval.
	failed bool
}

// New builds a historian. Batches hold up to batchSize records.
func New(src Source, sink Sink, batchSize int, flushEvery time.Duration, log logrus.FieldLogger) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		src:        src,
		sink:       sink,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		popTimeout: time.Second,
		log:        log,
		batch:      make([]models.GameResult, 0, batchSize),
	}
}

// Run pops until ctx is cancelled, then flushes whatever is left.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	s.lastFlush = time.Now()

	for ctx.Err() == nil {
		rec, err := s.src.Pop(ctx, min(s.popTimeout, s.flushEvery))
		if err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("failed to pop game result")
			s.wait(ctx)
		}
		if rec != nil {
			s.batch = append(s.batch, *rec)
		}
		full := len(s.batch) >= s.batchSize && !s.failed
		if full || time.Since(s.lastFlush) >= s.flushEvery {
			s.flush(ctx)
		}
	}

	// The run context is gone; give the final flush its own deadline.
	final, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.flush(final)
	s.log.Info("historian stopped")
	return nil
}

func (s *Service) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.popTimeout):
	}
}

// flush hands the pending batch to the sink. A failed batch stays pending for
// the next flush, up to maxPendingBatches worth of records.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	err := s.sink(ctx, s.batch)
	s.failed = err != nil
	if err != nil {
		s.log.WithError(err).WithField("records", len(s.batch)).Error("failed to persist game results")
		if limit := s.batchSize * maxPendingBatches; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.WithField("dropped", dropped).Warn("dropping oldest unpersisted game results")
		}
		return
	}
	s.log.WithField("records", len(s.batch)).Debug("flushed game results")
	s.batch = make([]models.GameResult, 0, s.batchSize)
}
