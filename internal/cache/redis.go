// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "imposter:session:"

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// RedisStore keeps one JSON string per room under Prefix+roomID.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ session.Store = (*RedisStore)(nil)

// NewRedisStore wraps rdb. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Key returns the redis key holding roomID.
func (s *RedisStore) Key(roomID int64) string {
	return s.prefix + strconv.FormatInt(roomID, 10)
}

// RoomID parses a key produced by Key.
func (s *RedisStore) RoomID(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, s.prefix)
	if !ok {
		return 0, fmt.Errorf("key %q outside prefix %q", key, s.prefix)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *RedisStore) Load(ctx context.Context, roomID int64) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, s.Key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET room %d: %w", roomID, err)
	}
	return session.Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, sess *models.Session) error {
	data, err := session.Encode(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.Key(sess.RoomID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET room %d: %w", sess.RoomID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, roomID int64) error {
	if err := s.rdb.Del(ctx, s.Key(roomID)).Err(); err != nil {
		return fmt.Errorf("redis DEL room %d: %w", roomID, err)
	}
	return nil
}

// LoadAll scans every key under the prefix. Keys that vanish mid-scan are skipped.
func (s *RedisStore) LoadAll(ctx context.Context) (map[int64]*models.Session, error) {
	out := make(map[int64]*models.Session)
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, err := s.RoomID(key)
		if err != nil {
			return nil, err
		}
		sess, err := s.Load(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = sess
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s*: %w", s.prefix, err)
	}
	return out, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// ResultPublisher pushes finished games onto a Redis list for the historian.
type ResultPublisher struct {
	rdb   *redis.Client
	queue string
}

// NewResultPublisher publishes onto queue.
func NewResultPublisher(rdb *redis.Client, queue string) *ResultPublisher {
	return &ResultPublisher{rdb: rdb, queue: queue}
}

// RecordResult serializes res and RPUSHes it. It does not wait for the historian.
func (p *ResultPublisher) RecordResult(ctx context.Context, res models.GameResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal GameResult: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// PopResult blocks up to timeout for the next result on queue. It returns
// (nil, nil) when the wait times out.
func PopResult(ctx context.Context, rdb *redis.Client, queue string, timeout time.Duration) (*models.GameResult, error) {
	res, err := rdb.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", queue, err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	// res[0] is the queue name and res[1] the payload.
	var rec models.GameResult
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid game result record: %w", err)
	}
	return &rec, nil
}
