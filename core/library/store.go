package library

import (
	"context"
	"sync"

	"StemDeck/logger"
	"StemDeck/model"
	"StemDeck/storage"

	"github.com/cockroachdb/errors"
)

// TrackStore holds the ordered visible library and mirrors it into a
// durable KV entry. Writes to the durable entry are refused until the
// store has been marked initialized, so an empty list that is still
// loading can't overwrite a populated cache.
//
// Removed tracks with a backend identity stay hidden while their delete
// is in flight: Apply drops them even when a listing still returns them.
type TrackStore struct {
	kv  storage.KVStore
	key string

	// wmu 串行化持久化写入和删除，旧快照不会覆盖 Clear 的结果
	wmu sync.Mutex

	mu          sync.RWMutex
	tracks      []model.Track
	initialized bool
	deleting    map[string]bool // remote id -> delete confirmed
}

// NewTrackStore creates an empty, uninitialized store.
func NewTrackStore(kv storage.KVStore, key string) *TrackStore {
	return &TrackStore{kv: kv, key: key, deleting: make(map[string]bool)}
}

// Key returns the durable key.
func (s *TrackStore) Key() string {
	return s.key
}

// LoadDurable reads the durable entry. A missing entry is an empty list.
func (s *TrackStore) LoadDurable(ctx context.Context) ([]model.Track, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read library cache")
	}
	tracks, err := model.UnmarshalTracks(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode library cache")
	}
	return tracks, nil
}

// Tracks returns a copy of the visible list.
func (s *TrackStore) Tracks() []model.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tracks)
}

// Get finds a track by id.
func (s *TrackStore) Get(id string) (model.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Track{}, false
}

// Len returns the number of visible tracks.
func (s *TrackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Prepend puts t at the head of the list.
func (s *TrackStore) Prepend(t model.Track) {
	s.mu.Lock()
	s.tracks = append([]model.Track{t.Clone()}, s.tracks...)
	s.mu.Unlock()
}

// Remove drops the track with id and returns it.
func (s *TrackStore) Remove(id string) (model.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tracks {
		if t.ID == id {
			s.tracks = append(s.tracks[:i:i], s.tracks[i+1:]...)
			s.markDeletingLocked(t)
			return t, true
		}
	}
	return model.Track{}, false
}

// Update applies fn to the track with id in place.
func (s *TrackStore) Update(id string, fn func(*model.Track)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			fn(&s.tracks[i])
			return true
		}
	}
	return false
}

// Apply replaces the list with fn(current) atomically. Tracks whose
// delete is still pending are dropped from the result.
func (s *TrackStore) Apply(fn func([]model.Track) []model.Track) {
	s.mu.Lock()
	next := fn(cloneAll(s.tracks))
	kept := make([]model.Track, 0, len(next))
	for _, t := range next {
		if t.RemoteID != "" {
			if _, pending := s.deleting[t.RemoteID]; pending {
				continue
			}
		}
		kept = append(kept, t.Clone())
	}
	s.tracks = kept
	s.mu.Unlock()
}

func (s *TrackStore) markDeletingLocked(t model.Track) {
	if t.RemoteID == "" {
		return
	}
	if _, ok := s.deleting[t.RemoteID]; !ok {
		s.deleting[t.RemoteID] = false
	}
}

// Deleting reports whether remoteID was removed locally and may still be
// listed by the backend.
func (s *TrackStore) Deleting(remoteID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleting[remoteID]
	return ok
}

// ConfirmDeleted records that the backend accepted the deletes. The ids
// stay hidden until a listing no longer returns them.
func (s *TrackStore) ConfirmDeleted(remoteIDs ...string) {
	s.mu.Lock()
	for _, id := range remoteIDs {
		if _, ok := s.deleting[id]; ok {
			s.deleting[id] = true
		}
	}
	s.mu.Unlock()
}

// SettleDeletions forgets confirmed deletes missing from a successful
// listing. Unconfirmed ones stay hidden for the rest of the session.
func (s *TrackStore) SettleDeletions(listed []model.Track) {
	present := make(map[string]bool, len(listed))
	for _, t := range listed {
		present[t.RemoteID] = true
	}
	s.mu.Lock()
	for id, confirmed := range s.deleting {
		if confirmed && !present[id] {
			delete(s.deleting, id)
		}
	}
	s.mu.Unlock()
}

// Clear empties the list and deletes the durable entry immediately.
func (s *TrackStore) Clear(ctx context.Context) ([]model.Track, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	removed := s.tracks
	s.tracks = nil
	for _, t := range removed {
		s.markDeletingLocked(t)
	}
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return removed, errors.Wrap(err, "delete library cache")
	}
	return removed, nil
}

// MarkInitialized enables durable writes.
func (s *TrackStore) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the first load has completed.
func (s *TrackStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Persist writes the list to the durable entry; a no-op before the
// initialized milestone.
func (s *TrackStore) Persist(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		logger.Debug("library not initialized, skipping durable write")
		return nil
	}
	data, err := model.MarshalTracks(s.tracks)
	s.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "encode library cache")
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return errors.Wrap(err, "write library cache")
	}
	return nil
}

func cloneAll(tracks []model.Track) []model.Track {
	if tracks == nil {
		return nil
	}
	out := make([]model.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}
