package playback

import (
	"context"
	"time"
)

// SourceKind tells where a resolved source lives.
type SourceKind int

const (
	SourceBlob SourceKind = iota + 1
	SourceSigned
	SourceCache
)

func (k SourceKind) String() string {
	switch k {
	case SourceBlob:
		return "blob"
	case SourceSigned:
		return "signed"
	case SourceCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Source is a playable location: a local file path or a URL.
type Source struct {
	Kind     SourceKind
	Location string
}

// Callbacks are invoked by a Stream from its own goroutines.
type Callbacks struct {
	OnProgress func(pos time.Duration)
	OnDuration func(d time.Duration)
	OnEnd      func()
}

// Stream is one open audio source.
type Stream interface {
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	Close() error
}

// Output opens streams.
type Output interface {
	Open(ctx context.Context, src Source, cb Callbacks) (Stream, error)
}
