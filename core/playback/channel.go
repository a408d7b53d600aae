package playback

import (
	"sort"
	"sync"
	"time"
)

// Key addresses one channel: one file of one track.
type Key struct {
	TrackID  string
	Filename string
}

func (k Key) String() string {
	return k.TrackID + "/" + k.Filename
}

// ChannelState is the playback state of a channel.
type ChannelState int

const (
	Idle ChannelState = iota
	Playing
	Paused
)

func (s ChannelState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Channel is one independently controllable audio source.
type Channel struct {
	Key    Key
	stream Stream
	state  ChannelState

	released bool
}

// keyLock serializes Play calls for one key.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Registry owns the live channels of one engine and the per-key locks
// that serialize channel creation.
type Registry struct {
	mu       sync.Mutex
	channels map[Key]*Channel
	locks    map[Key]*keyLock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[Key]*Channel),
		locks:    make(map[Key]*keyLock),
	}
}

// lockKey blocks until the caller holds key and returns the release func.
func (r *Registry) lockKey(key Key) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) get(key Key) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[key]
	return ch, ok
}

func (r *Registry) put(ch *Channel) {
	r.mu.Lock()
	r.channels[ch.Key] = ch
	r.mu.Unlock()
}

// removeIf drops ch only if it is still the channel registered for its key.
func (r *Registry) removeIf(ch *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.channels[ch.Key]; ok && cur == ch {
		delete(r.channels, ch.Key)
		ch.released = true
		return true
	}
	return false
}

// live reports whether ch has not been released yet.
func (r *Registry) live(ch *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !ch.released
}

func (r *Registry) state(key Key) ChannelState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[key]; ok {
		return ch.state
	}
	return Idle
}

func (r *Registry) setState(ch *Channel, s ChannelState) {
	r.mu.Lock()
	ch.state = s
	r.mu.Unlock()
}

// firstPlaying returns a playing channel other than key, in key order.
func (r *Registry) firstPlaying(except Key) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *Channel
	for k, ch := range r.channels {
		if k == except || ch.state != Playing {
			continue
		}
		if found == nil || k.String() < found.Key.String() {
			found = ch
		}
	}
	return found, found != nil
}

// take removes and returns the channels whose key matches.
func (r *Registry) take(match func(Key) bool) []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Channel
	for k, ch := range r.channels {
		if match(k) {
			out = append(out, ch)
			delete(r.channels, k)
			ch.released = true
		}
	}
	return out
}

func (r *Registry) keys(s ChannelState) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Key
	for k, ch := range r.channels {
		if ch.state == s {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Len returns the number of live channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

// Snapshot is a copy of the engine's observable state.
type Snapshot struct {
	Times     map[Key]time.Duration
	Durations map[Key]time.Duration
	Playing   []Key
	Paused    []Key
}
