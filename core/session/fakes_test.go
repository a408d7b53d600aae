package session_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"StemDeck/core/backend"
	"StemDeck/core/playback"
)

type stubBackend struct {
	mu        sync.Mutex
	token     string
	archive   []byte
	stored    bool // answer uploads with a stored record
	stems     [][]string
	deleteErr error
}

func (b *stubBackend) SetToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *stubBackend) Upload(_ context.Context, req backend.UploadRequest) (*backend.UploadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stems = append(b.stems, req.Stems)
	if b.stored {
		return &backend.UploadResult{Record: &backend.UploadRecord{
			Title:  "Stored",
			SongID: "s1",
			Files:  backend.FileList{"vocals.mp3", "bass.mp3"},
		}}, nil
	}
	return &backend.UploadResult{Archive: b.archive, CacheKey: "ck"}, nil
}

func (b *stubBackend) ListSongs(context.Context) (*backend.SongListing, error) {
	return &backend.SongListing{}, nil
}

func (b *stubBackend) DeleteSong(context.Context, string) error { return b.deleteErr }
func (b *stubBackend) DeleteAllSongs(context.Context) error    { return b.deleteErr }

func (b *stubBackend) PresignedURL(context.Context, string, string) (string, error) {
	return "", errors.New("not stored")
}

func (b *stubBackend) DownloadSongArchive(context.Context, string, io.Writer) (int64, error) {
	return 0, errors.New("not stored")
}

func (b *stubBackend) DownloadCacheArchive(context.Context, string, io.Writer) (int64, error) {
	return 0, errors.New("not stored")
}

type nullStream struct{}

func (nullStream) Play() error              { return nil }
func (nullStream) Pause() error             { return nil }
func (nullStream) Seek(time.Duration) error { return nil }
func (nullStream) Position() time.Duration  { return 0 }
func (nullStream) Close() error             { return nil }

type nullOutput struct{}

func (nullOutput) Open(context.Context, playback.Source, playback.Callbacks) (playback.Stream, error) {
	return nullStream{}, nil
}
