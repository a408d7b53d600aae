package library

import (
	"context"
	"io"
	"os"
	"sync"

	"StemDeck/core/apperr"
	"StemDeck/core/archive"
	"StemDeck/logger"
	"StemDeck/model"
)

// Download is a running archive download. Cancel ends it without it
// counting as a failure.
type Download struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	written   int64
	err       error
	cancelled bool
}

// Cancel aborts the download.
func (d *Download) Cancel() {
	d.mu.Lock()
	select {
	case <-d.done:
	default:
		d.cancelled = true
	}
	d.mu.Unlock()
	d.cancel()
}

// Done is closed once the download has finished either way.
func (d *Download) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the download finishes and returns its error.
func (d *Download) Wait() error {
	<-d.done
	return d.Err()
}

// Loading reports whether the download is still running.
func (d *Download) Loading() bool {
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// Err is nil for successful and cancelled downloads.
func (d *Download) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Cancelled reports whether Cancel ended the download.
func (d *Download) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// Written returns the bytes copied to the destination.
func (d *Download) Written() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

func (d *Download) finish(n int64, err error) {
	d.mu.Lock()
	d.written = n
	if d.cancelled || apperr.Is(err, apperr.Cancelled) {
		d.cancelled = true
		err = nil
	}
	d.err = err
	close(d.done)
	d.mu.Unlock()
}

// DownloadArchive writes a zip of the track's stems to w. Stored tracks
// come from /songs/{id}/zip, cached uploads from /cache/{key}, and
// tracks only held in this session are zipped from their blobs.
func (e *Engine) DownloadArchive(ctx context.Context, trackID string, w io.Writer) (*Download, error) {
	t, ok := e.store.Get(trackID)
	if !ok {
		return nil, apperr.Message(apperr.Validation, "no such track: "+trackID)
	}

	var fetch func(ctx context.Context) (int64, error)
	switch {
	case t.RemoteID != "":
		fetch = func(ctx context.Context) (int64, error) {
			return e.backend.DownloadSongArchive(ctx, t.RemoteID, w)
		}
	case t.CacheKey != "":
		fetch = func(ctx context.Context) (int64, error) {
			return e.backend.DownloadCacheArchive(ctx, t.CacheKey, w)
		}
	case hasBlobs(t):
		fetch = func(context.Context) (int64, error) {
			return e.zipBlobs(t, w)
		}
	default:
		return nil, apperr.Message(apperr.Validation, "track has nothing to download")
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Download{cancel: cancel, done: make(chan struct{})}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		n, err := fetch(dctx)
		if err != nil && dctx.Err() != nil {
			err = apperr.Wrap(err, apperr.Cancelled, "download cancelled")
		}
		d.finish(n, err)

		switch {
		case d.Cancelled():
			logger.Info("download cancelled", logger.String("track", trackID))
		case d.Err() != nil:
			logger.Warn("download failed", logger.String("track", trackID), logger.ErrorField(d.Err()))
			e.publish(Event{Op: OpDownload, TrackID: trackID, Err: d.Err()})
		default:
			logger.Info("download finished", logger.String("track", trackID), logger.Int64("bytes", n))
		}
	}()
	return d, nil
}

func hasBlobs(t model.Track) bool {
	for _, f := range t.Files {
		if f.Blob != "" {
			return true
		}
	}
	return false
}

func (e *Engine) zipBlobs(t model.Track, w io.Writer) (int64, error) {
	var entries []archive.Entry
	for _, f := range t.Files {
		p, ok := e.blobs.Path(f.Blob)
		if !ok {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, apperr.Wrap(err, apperr.Transport, "read session stem")
		}
		entries = append(entries, archive.Entry{Name: f.Name, Data: data})
	}
	data, err := archive.Build(entries)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
