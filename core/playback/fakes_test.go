package playback_test

import (
	"context"
	"sync"
	"time"

	"StemDeck/core/playback"
)

type fakeStream struct {
	mu      sync.Mutex
	src     playback.Source
	cb      playback.Callbacks
	playing bool
	closed  bool
	pos     time.Duration
	seeks   []time.Duration
}

func (s *fakeStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *fakeStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	s.seeks = append(s.seeks, pos)
	return nil
}

func (s *fakeStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

func (s *fakeStream) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOutput struct {
	mu      sync.Mutex
	streams []*fakeStream
	delay   time.Duration
}

func (o *fakeOutput) Open(_ context.Context, src playback.Source, cb playback.Callbacks) (playback.Stream, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	s := &fakeStream{src: src, cb: cb}
	o.mu.Lock()
	o.streams = append(o.streams, s)
	o.mu.Unlock()
	return s, nil
}

func (o *fakeOutput) opened() []*fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeStream(nil), o.streams...)
}

type fakeBlobs map[string]string

func (b fakeBlobs) Path(ref string) (string, bool) {
	p, ok := b[ref]
	return p, ok
}

type fakeSigner struct {
	err   error
	calls int
}

func (s *fakeSigner) ResolvePlayableURL(_ context.Context, remoteID, filename string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://signed/" + remoteID + "/" + filename, nil
}

type fakeCache struct{}

func (fakeCache) CacheFileURL(cacheKey, filename string) string {
	return "https://api/cache/" + cacheKey + "/" + filename
}
