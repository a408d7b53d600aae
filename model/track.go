package model

import (
	"encoding/json"
	"strings"
)

// TrackFile is one named file of a track and its in-session locator.
// Blob is empty unless the file content lives in this session's blob
// registry; remote and cache locators are derived from the owning Track.
type TrackFile struct {
	Name string `json:"filename"`
	Blob string `json:"-"`
}

// Track represents one uploaded/processed song in the library.
type Track struct {
	ID        string      `json:"id"`                 // client-local identity
	RemoteID  string      `json:"songId,omitempty"`   // backend identity, set once confirmed
	Title     string      `json:"title"`
	AddedAt   Timestamp   `json:"addedAt"`
	Files     []TrackFile `json:"files"`
	OwnerID   string      `json:"ownerId,omitempty"`  // empty for anonymous/local-only entries
	Processed bool        `json:"processed"`
	CacheKey  string      `json:"cacheKey,omitempty"` // X-Cache-Key of a local-processing upload
	Layers    []Layer     `json:"-"`                  // derived from Files, never persisted
}

// FileNames returns the file names in order.
func (t Track) FileNames() []string {
	names := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		names = append(names, f.Name)
	}
	return names
}

// File looks a file up by name.
func (t Track) File(name string) (TrackFile, bool) {
	for _, f := range t.Files {
		if f.Name == name {
			return f, true
		}
	}
	return TrackFile{}, false
}

// WithLayers returns a copy with Layers regenerated from Files.
func (t Track) WithLayers() Track {
	t.Layers = GenerateLayersFromFiles(t.FileNames())
	return t
}

// Clone returns a deep copy, so callers can't mutate store-owned slices.
func (t Track) Clone() Track {
	c := t
	c.Files = append([]TrackFile(nil), t.Files...)
	c.Layers = append([]Layer(nil), t.Layers...)
	return c
}

// VisibleTo implements the ownership rule: owned tracks are only visible to
// their owner, anonymous sessions only see unowned tracks.
func (t Track) VisibleTo(userID string) bool {
	if t.OwnerID == "" {
		return true
	}
	return userID != "" && t.OwnerID == userID
}

// HasTitleFragment reports a case-insensitive substring match on the title.
func (t Track) HasTitleFragment(fragment string) bool {
	return strings.Contains(strings.ToLower(t.Title), strings.ToLower(fragment))
}

// persistedTrack is the durable form: files reduced to their names.
type persistedTrack struct {
	ID        string    `json:"id"`
	RemoteID  string    `json:"songId,omitempty"`
	Title     string    `json:"title"`
	AddedAt   Timestamp `json:"addedAt"`
	Files     []string  `json:"files"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Processed bool      `json:"processed"`
	CacheKey  string    `json:"cacheKey,omitempty"`
}

// MarshalTracks encodes tracks for durable storage. In-session blob
// references are dropped; they never outlive the session.
func MarshalTracks(tracks []Track) (string, error) {
	out := make([]persistedTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, persistedTrack{
			ID:        t.ID,
			RemoteID:  t.RemoteID,
			Title:     t.Title,
			AddedAt:   t.AddedAt,
			Files:     t.FileNames(),
			OwnerID:   t.OwnerID,
			Processed: t.Processed,
			CacheKey:  t.CacheKey,
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalTracks decodes the durable form and rehydrates layers. Files come
// back without blob locators; playback then falls through to the signed URL
// (remote mode) or the cache route (cache mode).
func UnmarshalTracks(data string) ([]Track, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var stored []persistedTrack
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(stored))
	for _, p := range stored {
		t := Track{
			ID:        p.ID,
			RemoteID:  p.RemoteID,
			Title:     p.Title,
			AddedAt:   p.AddedAt,
			OwnerID:   p.OwnerID,
			Processed: p.Processed,
			CacheKey:  p.CacheKey,
		}
		for _, name := range p.Files {
			t.Files = append(t.Files, TrackFile{Name: name})
		}
		tracks = append(tracks, t.WithLayers())
	}
	return tracks, nil
}
