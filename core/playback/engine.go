package playback

import (
	"context"
	"sync"
	"time"

	"StemDeck/logger"
	"StemDeck/model"

	"github.com/cockroachdb/errors"
)

// Engine owns every playback channel. Channels are independent sources;
// a new channel copies the position of a playing one once when it
// starts and is never resynchronized afterwards, so stems drift apart
// over long sessions.
type Engine struct {
	output   Output
	resolver SourceResolver
	reg      *Registry

	mu        sync.RWMutex
	times     map[Key]time.Duration
	durations map[Key]time.Duration
}

// NewEngine creates an engine playing through output.
func NewEngine(output Output, resolver SourceResolver) *Engine {
	return &Engine{
		output:    output,
		resolver:  resolver,
		reg:       NewRegistry(),
		times:     make(map[Key]time.Duration),
		durations: make(map[Key]time.Duration),
	}
}

// Play starts the channel for key, or toggles it when it already exists.
func (e *Engine) Play(ctx context.Context, key Key, file model.TrackFile, track model.Track) error {
	unlock := e.reg.lockKey(key)
	defer unlock()

	if ch, ok := e.reg.get(key); ok {
		return e.toggle(ch)
	}

	src, err := e.resolver.Resolve(ctx, file, track)
	if err != nil {
		return err
	}

	ch := &Channel{Key: key}
	stream, err := e.output.Open(ctx, src, Callbacks{
		OnProgress: func(pos time.Duration) {
			if e.reg.live(ch) {
				e.setTime(key, pos)
			}
		},
		OnDuration: func(d time.Duration) {
			if e.reg.live(ch) {
				e.setDuration(key, d)
			}
		},
		OnEnd: func() { e.ended(ch) },
	})
	if err != nil {
		return errors.Wrapf(err, "open %s", key)
	}
	ch.stream = stream

	// 对齐到正在播放的声道
	if other, ok := e.reg.firstPlaying(key); ok {
		pos := other.stream.Position()
		if err := stream.Seek(pos); err != nil {
			logger.Warn("align seek failed", logger.String("key", key.String()), logger.ErrorField(err))
		} else {
			e.setTime(key, pos)
		}
	}

	ch.state = Playing
	e.reg.put(ch)
	if err := stream.Play(); err != nil {
		e.reg.removeIf(ch)
		_ = stream.Close()
		e.forget(key)
		return errors.Wrapf(err, "start %s", key)
	}

	logger.Debug("channel started",
		logger.String("key", key.String()),
		logger.String("source", src.Kind.String()))
	return nil
}

func (e *Engine) toggle(ch *Channel) error {
	if e.reg.state(ch.Key) == Playing {
		if err := ch.stream.Pause(); err != nil {
			return errors.Wrapf(err, "pause %s", ch.Key)
		}
		e.reg.setState(ch, Paused)
		e.setTime(ch.Key, ch.stream.Position())
		return nil
	}
	if err := ch.stream.Play(); err != nil {
		return errors.Wrapf(err, "resume %s", ch.Key)
	}
	e.reg.setState(ch, Playing)
	return nil
}

// ended handles a natural end of stream.
func (e *Engine) ended(ch *Channel) {
	if !e.reg.removeIf(ch) {
		return
	}
	_ = ch.stream.Close()
	e.forget(ch.Key)
	logger.Debug("channel ended", logger.String("key", ch.Key.String()))
}

// Seek moves a channel; the time map is updated without waiting for the
// stream. No-op without a channel.
func (e *Engine) Seek(key Key, pos time.Duration) error {
	ch, ok := e.reg.get(key)
	if !ok {
		return nil
	}
	e.setTime(key, pos)
	if err := ch.stream.Seek(pos); err != nil {
		return errors.Wrapf(err, "seek %s", key)
	}
	return nil
}

// StopAll pauses and releases every channel.
func (e *Engine) StopAll() {
	chans := e.reg.take(func(Key) bool { return true })
	e.release(chans)

	e.mu.Lock()
	e.times = make(map[Key]time.Duration)
	e.durations = make(map[Key]time.Duration)
	e.mu.Unlock()
}

// StopTrack releases every channel of one track.
func (e *Engine) StopTrack(trackID string) {
	chans := e.reg.take(func(k Key) bool { return k.TrackID == trackID })
	e.release(chans)
	for _, ch := range chans {
		e.forget(ch.Key)
	}
}

func (e *Engine) release(chans []*Channel) {
	for _, ch := range chans {
		if err := ch.stream.Pause(); err != nil {
			logger.Debug("pause on release failed", logger.String("key", ch.Key.String()), logger.ErrorField(err))
		}
		if err := ch.stream.Close(); err != nil {
			logger.Warn("close channel failed", logger.String("key", ch.Key.String()), logger.ErrorField(err))
		}
	}
}

// PlayAll plays every file of track except the original mix, skipping
// keys that are already playing.
func (e *Engine) PlayAll(ctx context.Context, track model.Track) error {
	var errs error
	for _, f := range track.Files {
		layer, ok := model.ClassifyFile(f.Name)
		if !ok || layer.ID == model.OriginalLayerID {
			continue
		}
		key := Key{TrackID: track.ID, Filename: f.Name}
		if e.reg.state(key) == Playing {
			continue
		}
		if err := e.Play(ctx, key, f, track); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// State returns the state of one key.
func (e *Engine) State(key Key) ChannelState {
	return e.reg.state(key)
}

// Snapshot copies the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	s := Snapshot{
		Times:     make(map[Key]time.Duration, len(e.times)),
		Durations: make(map[Key]time.Duration, len(e.durations)),
	}
	for k, v := range e.times {
		s.Times[k] = v
	}
	for k, v := range e.durations {
		s.Durations[k] = v
	}
	e.mu.RUnlock()

	s.Playing = e.reg.keys(Playing)
	s.Paused = e.reg.keys(Paused)
	return s
}

func (e *Engine) setTime(key Key, pos time.Duration) {
	e.mu.Lock()
	e.times[key] = pos
	e.mu.Unlock()
}

func (e *Engine) setDuration(key Key, d time.Duration) {
	e.mu.Lock()
	e.durations[key] = d
	e.mu.Unlock()
}

func (e *Engine) forget(key Key) {
	e.mu.Lock()
	delete(e.times, key)
	delete(e.durations, key)
	e.mu.Unlock()
}
