package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/sirupsen/logrus"
)

// Registry is the in-process source of truth for every room session. It is
// hydrated once from the Store at startup and writes through on every Save.
//
// The registry guards its map only; mutating a *models.Session is the caller's
// job to serialize (the game controller holds a per-room lock for that).
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*models.Session
	store    Store
	log      logrus.FieldLogger

	watchMu   sync.Mutex
	watchers  map[int]func(*models.Session)
	nextWatch int

	// Now is the clock used for timestamps; tests may replace it.
	Now func() time.Time
}

// NewRegistry builds an empty registry over store.
func NewRegistry(store Store, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[int64]*models.Session),
		store:    store,
		log:      log,
		watchers: make(map[int]func(*models.Session)),
		Now:      time.Now,
	}
}

// Hydrate loads every persisted session, defaults fields missing from older
// payloads and writes migrated sessions back. It returns the number loaded.
func (r *Registry) Hydrate(ctx context.Context) (int, error) {
	loaded, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range loaded {
		s.RoomID = id
		if s.Migrate() {
			if err := r.store.Save(ctx, s); err != nil {
				r.log.WithField("room", id).WithError(err).Warn("failed to persist migrated session")
			}
		}
		r.sessions[id] = s
	}
	r.log.WithField("count", len(loaded)).Info("sessions hydrated from store")
	return len(loaded), nil
}

// Get returns the live session for roomID. A room missing from memory is
// looked up in the store once before giving up.
func (r *Registry) Get(ctx context.Context, roomID int64) (*models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(ctx, roomID)
}

func (r *Registry) getLocked(ctx context.Context, roomID int64) (*models.Session, bool) {
	if s, ok := r.sessions[roomID]; ok {
		return s, true
	}
	s, err := r.store.Load(ctx, roomID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.WithField("room", roomID).WithError(err).Warn("failed to load session from store")
		}
		return nil, false
	}
	s.RoomID = roomID
	s.Migrate()
	r.sessions[roomID] = s
	return s, true
}

// GetOrCreate returns the session for roomID, creating and persisting an empty
// lobby if none exists. created reports whether a new session was made.
func (r *Registry) GetOrCreate(ctx context.Context, roomID int64) (s *models.Session, created bool) {
	r.mu.Lock()
	if s, ok := r.getLocked(ctx, roomID); ok {
		r.mu.Unlock()
		return s, false
	}
	s = models.NewSession(roomID, r.Now())
	r.sessions[roomID] = s
	r.mu.Unlock()

	if err := r.Save(ctx, s); err != nil {
		r.log.WithField("room", roomID).WithError(err).Warn("failed to persist new session")
	}
	return s, true
}

// Save stamps UpdatedAt, makes s the live session of its room and writes it to
// the store. The in-memory update happens even if the store write fails.
func (r *Registry) Save(ctx context.Context, s *models.Session) error {
	s.UpdatedAt = r.Now()

	r.mu.Lock()
	r.sessions[s.RoomID] = s
	r.mu.Unlock()

	err := r.store.Save(ctx, s)
	r.notify(s)
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.RoomID, err)
	}
	return nil
}

// Replace drops whatever is persisted for s.RoomID and stores s in its place.
func (r *Registry) Replace(ctx context.Context, s *models.Session) error {
	if err := r.store.Delete(ctx, s.RoomID); err != nil {
		r.log.WithField("room", s.RoomID).WithError(err).Warn("failed to delete session before replace")
	}
	return r.Save(ctx, s)
}

// Delete removes a room from memory and from the store.
func (r *Registry) Delete(ctx context.Context, roomID int64) error {
	r.mu.Lock()
	delete(r.sessions, roomID)
	r.mu.Unlock()
	if err := r.store.Delete(ctx, roomID); err != nil {
		return fmt.Errorf("delete session %d: %w", roomID, err)
	}
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RoomIDs returns the ids of every live session in ascending order.
func (r *Registry) RoomIDs() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Watch registers fn to receive a copy of every saved session. The returned
// func unregisters it.
func (r *Registry) Watch(fn func(*models.Session)) (cancel func()) {
	r.watchMu.Lock()
	id := r.nextWatch
	r.nextWatch++
	r.watchers[id] = fn
	r.watchMu.Unlock()

	return func() {
		r.watchMu.Lock()
		delete(r.watchers, id)
		r.watchMu.Unlock()
	}
}

func (r *Registry) notify(s *models.Session) {
	r.watchMu.Lock()
	if len(r.watchers) == 0 {
		r.watchMu.Unlock()
		return
	}
	fns := make([]func(*models.Session), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.watchMu.Unlock()

	for _, fn := range fns {
		fn(s.Clone())
	}
}
