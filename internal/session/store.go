// Package session holds the authoritative in-memory registry of room sessions
// and the contract for the durable stores behind it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jason-s-yu/imposter/internal/models"
)

// ErrNotFound is returned by Store.Load when a room has no persisted session.
var ErrNotFound = errors.New("session not found")

// Store is a durable key-value mapping from room id to session state.
type Store interface {
	Load(ctx context.Context, roomID int64) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, roomID int64) error
	LoadAll(ctx context.Context) (map[int64]*models.Session, error)
	Close() error
}

// Encode serializes a session the way every store persists it.
func Encode(s *models.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session %d: %w", s.RoomID, err)
	}
	return data, nil
}

// Decode parses a persisted session.
func Decode(data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// MemoryStore keeps encoded sessions in process memory. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[int64][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int64][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, roomID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.RoomID] = data
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, roomID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, roomID)
	return nil
}

func (m *MemoryStore) LoadAll(_ context.Context) (map[int64]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*models.Session, len(m.data))
	for id, data := range m.data {
		s, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("room %d: %w", id, err)
		}
		out[id] = s
	}
	return out, nil
}

// Raw stores data for roomID verbatim, bypassing encoding. Lets tests seed legacy payloads.
func (m *MemoryStore) Raw(roomID int64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[roomID] = data
}

func (m *MemoryStore) Close() error { return nil }
