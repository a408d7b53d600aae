package library

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/core/archive"
	"StemDeck/core/auth"
	"StemDeck/core/backend"
	"StemDeck/logger"
	"StemDeck/model"

	"github.com/google/uuid"
)

// Backend is the part of the REST client the library needs.
type Backend interface {
	SetToken(token string)
	Upload(ctx context.Context, req backend.UploadRequest) (*backend.UploadResult, error)
	ListSongs(ctx context.Context) (*backend.SongListing, error)
	DeleteSong(ctx context.Context, songID string) error
	DeleteAllSongs(ctx context.Context) error
	PresignedURL(ctx context.Context, songID, filename string) (string, error)
	DownloadSongArchive(ctx context.Context, songID string, w io.Writer) (int64, error)
	DownloadCacheArchive(ctx context.Context, cacheKey string, w io.Writer) (int64, error)
}

// Signer signs object URLs directly, bypassing /presigned-url.
type Signer interface {
	SignedURL(ctx context.Context, ownerID, songID, filename string) (string, error)
}

// Blobs holds in-session file content.
type Blobs interface {
	Put(name string, data []byte) (string, error)
	Path(ref string) (string, bool)
	Release(refs ...string)
}

// ChannelCloser tears down playback for a track. The library never touches
// channels itself.
type ChannelCloser interface {
	StopTrack(trackID string)
}

// UploadFile is a file picked for upload.
type UploadFile struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Options configures an Engine.
type Options struct {
	Backend        Backend
	Store          *TrackStore
	Blobs          Blobs
	Signer         Signer // optional
	MaxUploadBytes int64  // 0 disables the size check
	RequestTimeout time.Duration
}

// Engine applies library mutations optimistically: the visible list
// changes before any network call starts, and background confirmations
// report failures on Events instead of rolling back.
type Engine struct {
	backend  Backend
	store    *TrackStore
	blobs    Blobs
	signer   Signer
	maxBytes int64
	timeout  time.Duration

	mu     sync.RWMutex
	who    auth.Identity
	closer ChannelCloser

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events chan Event
}

// NewEngine creates an Engine. Call SetIdentity or Sync before relying on
// durable writes.
func NewEngine(opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		backend:  opts.Backend,
		store:    opts.Store,
		blobs:    opts.Blobs,
		signer:   opts.Signer,
		maxBytes: opts.MaxUploadBytes,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, eventBuffer),
	}
}

// SetChannelCloser wires the playback side.
func (e *Engine) SetChannelCloser(c ChannelCloser) {
	e.mu.Lock()
	e.closer = c
	e.mu.Unlock()
}

// Identity returns the current session identity.
func (e *Engine) Identity() auth.Identity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.who
}

// Tracks returns the visible list, newest first.
func (e *Engine) Tracks() []model.Track {
	return e.store.Tracks()
}

// Track looks up one track.
func (e *Engine) Track(id string) (model.Track, bool) {
	return e.store.Get(id)
}

// Newest returns the head of the list.
func (e *Engine) Newest() (model.Track, bool) {
	tracks := e.store.Tracks()
	if len(tracks) == 0 {
		return model.Track{}, false
	}
	return tracks[0], true
}

// AddTrack validates and uploads f, then prepends the resulting track.
func (e *Engine) AddTrack(ctx context.Context, f UploadFile, termsAccepted bool, stems []string) (model.Track, error) {
	if !termsAccepted {
		return model.Track{}, apperr.Message(apperr.Validation, "terms of service must be accepted before uploading")
	}
	if stems != nil && len(stems) == 0 {
		return model.Track{}, apperr.Message(apperr.Validation, "select at least one stem")
	}
	if e.maxBytes > 0 && f.Size > e.maxBytes {
		return model.Track{}, apperr.Message(apperr.Validation, "file is too large")
	}
	if !model.IsAudioFile(f.Name) {
		return model.Track{}, apperr.Message(apperr.Validation, "unsupported file type: "+path.Ext(f.Name))
	}

	res, err := e.backend.Upload(ctx, backend.UploadRequest{
		FileName:      f.Name,
		Content:       f.Content,
		TermsAccepted: termsAccepted,
		Stems:         stems,
	})
	if err != nil {
		logger.Warn("upload failed", logger.String("file", f.Name), logger.ErrorField(err))
		return model.Track{}, err
	}

	var track model.Track
	if res.Record != nil {
		track = trackFromRecord(res.Record, f.Name)
	} else {
		track, err = e.trackFromArchive(res.Archive, res.CacheKey, f.Name)
		if err != nil {
			logger.Warn("upload archive unusable", logger.String("file", f.Name), logger.ErrorField(err))
			return model.Track{}, err
		}
	}

	track = track.WithLayers()
	e.store.Prepend(track)
	e.persist()

	logger.Info("track added",
		logger.String("id", track.ID),
		logger.String("title", track.Title),
		logger.Int("layers", len(track.Layers)))
	return track.Clone(), nil
}

func titleFromFile(name string) string {
	if base := model.BaseName(name); base != "" {
		return base
	}
	return name
}

func trackFromRecord(rec *backend.UploadRecord, fileName string) model.Track {
	t := model.Track{
		ID:        uuid.NewString(),
		RemoteID:  rec.SongID,
		Title:     rec.Title,
		AddedAt:   model.Now(),
		OwnerID:   rec.OwnerID,
		Processed: true,
	}
	if t.Title == "" {
		t.Title = titleFromFile(fileName)
	}
	for _, name := range rec.Files {
		t.Files = append(t.Files, model.TrackFile{Name: name})
	}
	return t
}

func (e *Engine) trackFromArchive(data []byte, cacheKey, fileName string) (model.Track, error) {
	entries, err := archive.Unpack(data)
	if err != nil {
		return model.Track{}, apperr.Wrap(err, apperr.Transport, "upload returned an unreadable archive")
	}

	t := model.Track{
		ID:        uuid.NewString(),
		Title:     titleFromFile(fileName),
		AddedAt:   model.Now(),
		Processed: true,
		CacheKey:  cacheKey,
	}
	var refs []string
	for _, entry := range entries {
		ref, err := e.blobs.Put(entry.Name, entry.Data)
		if err != nil {
			e.blobs.Release(refs...)
			return model.Track{}, apperr.Wrap(err, apperr.Transport, "store unpacked stem")
		}
		refs = append(refs, ref)
		t.Files = append(t.Files, model.TrackFile{Name: entry.Name, Blob: ref})
	}
	return t, nil
}

// RemoveTrack removes a track from the visible list. Unknown ids are a
// no-op. The backend delete runs in the background.
func (e *Engine) RemoveTrack(id string) bool {
	t, ok := e.store.Remove(id)
	if !ok {
		return false
	}
	// 先停播放再删文件
	e.stopChannels(t.ID)
	e.releaseBlobs(t)
	e.persist()

	if t.RemoteID != "" {
		remoteID := t.RemoteID
		e.background(OpDeleteSong, t.ID, func(ctx context.Context) error {
			if err := e.backend.DeleteSong(ctx, remoteID); err != nil {
				return err
			}
			e.store.ConfirmDeleted(remoteID)
			return nil
		})
	}
	logger.Info("track removed", logger.String("id", id))
	return true
}

// ClearLibrary empties the library and its durable entry.
func (e *Engine) ClearLibrary() {
	removed, err := e.store.Clear(e.ctx)
	if err != nil {
		logger.Error("failed to clear library cache", logger.ErrorField(err))
		e.publish(Event{Op: OpClearCache, Err: err})
	}

	var remoteIDs []string
	for _, t := range removed {
		e.stopChannels(t.ID)
		if t.RemoteID != "" {
			remoteIDs = append(remoteIDs, t.RemoteID)
		}
	}
	if len(remoteIDs) > 0 {
		e.background(OpDeleteAll, "", func(ctx context.Context) error {
			if err := e.backend.DeleteAllSongs(ctx); err != nil {
				return err
			}
			e.store.ConfirmDeleted(remoteIDs...)
			return nil
		})
	}
	for _, t := range removed {
		e.releaseBlobs(t)
	}
	logger.Info("library cleared", logger.Int("tracks", len(removed)))
}

// RenameTrack changes a title locally.
func (e *Engine) RenameTrack(id, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	ok := e.store.Update(id, func(t *model.Track) { t.Title = title })
	if ok {
		e.persist()
	}
	return ok
}

// ResolvePlayableURL returns a short-lived URL for a stored file.
func (e *Engine) ResolvePlayableURL(ctx context.Context, remoteID, filename string) (string, error) {
	who := e.Identity()
	if !who.Authenticated() {
		return "", apperr.Message(apperr.Unauthenticated, "sign in to stream stored stems")
	}
	if e.signer != nil {
		return e.signer.SignedURL(ctx, who.UserID, remoteID, filename)
	}
	return e.backend.PresignedURL(ctx, remoteID, filename)
}

// SetIdentity switches the session identity and reconciles.
func (e *Engine) SetIdentity(ctx context.Context, who auth.Identity) error {
	e.mu.Lock()
	e.who = who
	e.mu.Unlock()
	e.backend.SetToken(who.Token)
	return e.Sync(ctx)
}

// Sync runs a reconciliation pass: the durable cache is folded in on the
// first pass, the remote listing is fetched when authenticated, and the
// merged list replaces the visible one. Remote failures degrade to the
// local list. Tracks removed locally stay out even when the listing still
// returns them.
func (e *Engine) Sync(ctx context.Context) error {
	who := e.Identity()

	var cached []model.Track
	firstPass := !e.store.Initialized()
	if firstPass {
		var err error
		cached, err = e.store.LoadDurable(ctx)
		if err != nil {
			logger.Warn("library cache unreadable, starting empty", logger.ErrorField(err))
			e.publish(Event{Op: OpSync, Err: err})
		}
	}

	var remote []model.Track
	remoteOK := false
	if who.Authenticated() {
		listing, err := e.backend.ListSongs(ctx)
		if err != nil {
			logger.Warn("remote listing unavailable, using local library", logger.ErrorField(err))
			e.publish(Event{Op: OpSync, Err: err})
		} else {
			remote = TracksFromListing(listing, who)
			remoteOK = true
			e.store.SettleDeletions(remote)
		}
	}

	e.store.Apply(func(current []model.Track) []model.Track {
		local := current
		if firstPass {
			local = appendMissing(current, cached)
		}
		return Reconcile(local, remote, remoteOK, who)
	})
	e.store.MarkInitialized()

	logger.Info("library synced",
		logger.Bool("remote", remoteOK),
		logger.Int("tracks", e.store.Len()))
	return e.store.Persist(ctx)
}

// appendMissing adds cached records whose id isn't already in current.
func appendMissing(current, cached []model.Track) []model.Track {
	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[t.ID] = true
	}
	out := current
	for _, t := range cached {
		if !seen[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) releaseBlobs(t model.Track) {
	var refs []string
	for _, f := range t.Files {
		if f.Blob != "" {
			refs = append(refs, f.Blob)
		}
	}
	if len(refs) > 0 && e.blobs != nil {
		e.blobs.Release(refs...)
	}
}

func (e *Engine) stopChannels(trackID string) {
	e.mu.RLock()
	closer := e.closer
	e.mu.RUnlock()
	if closer != nil {
		closer.StopTrack(trackID)
	}
}

func (e *Engine) persist() {
	if err := e.store.Persist(e.ctx); err != nil {
		logger.Error("failed to write library cache", logger.ErrorField(err))
		e.publish(Event{Op: OpPersist, Err: err})
	}
}

// background runs a best-effort confirmation call.
func (e *Engine) background(op Op, trackID string, fn func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Warn("background confirmation failed",
				logger.String("op", string(op)),
				logger.String("track", trackID),
				logger.ErrorField(err))
			e.publish(Event{Op: op, TrackID: trackID, Err: err})
		}
	}()
}

// Wait blocks until background confirmations and downloads finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels outstanding background work and waits for it.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}
