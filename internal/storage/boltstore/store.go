// Package boltstore persists room sessions in an embedded BoltDB file.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"go.etcd.io/bbolt"
)

const sessionBucket = "sessions"

// Store provides a BoltDB-backed session store.
type Store struct {
	db *bbolt.DB
}

var _ session.Store = (*Store)(nil)

// Open opens (creating if needed) the store at path. Missing parent directories are created.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists a session under its room id.
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := session.Encode(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.Put(roomKey(sess.RoomID), payload)
	})
}

// Load fetches the session of roomID.
func (s *Store) Load(ctx context.Context, roomID int64) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess *models.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		payload := bucket.Get(roomKey(roomID))
		if payload == nil {
			return session.ErrNotFound
		}
		decoded, err := session.Decode(payload)
		if err != nil {
			return err
		}
		sess = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session of roomID. Deleting a missing room is not an error.
func (s *Store) Delete(ctx context.Context, roomID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.Delete(roomKey(roomID))
	})
}

// LoadAll returns every persisted session keyed by room id.
func (s *Store) LoadAll(ctx context.Context) (map[int64]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[int64]*models.Session)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			id, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				return fmt.Errorf("parse room key %q: %w", k, err)
			}
			sess, err := session.Decode(v)
			if err != nil {
				return fmt.Errorf("room %d: %w", id, err)
			}
			out[id] = sess
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucket)); err != nil {
			return fmt.Errorf("create session bucket: %w", err)
		}
		return nil
	})
}

func roomKey(roomID int64) []byte {
	return []byte(strconv.FormatInt(roomID, 10))
}
