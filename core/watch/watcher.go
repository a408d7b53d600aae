// Package watch uploads audio files that appear in a drop folder.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"StemDeck/core/library"
	"StemDeck/logger"
	"StemDeck/model"

	"github.com/fsnotify/fsnotify"
)

// Uploader adds a file to the library.
type Uploader interface {
	Upload(ctx context.Context, f library.UploadFile, termsAccepted bool) (model.Track, error)
}

// Options configures a Watcher.
type Options struct {
	Dir           string
	Settle        time.Duration // quiet time before a file counts as written
	Workers       int
	TermsAccepted bool
	OnUpload      func(path string, t model.Track, err error)
}

// Watcher uploads each new audio file in Dir once.
type Watcher struct {
	up   Uploader
	opts Options

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a watcher.
func New(up Uploader, opts Options) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Watcher{up: up, opts: opts, seen: make(map[string]bool)}
}

type pending struct {
	at   time.Time
	size int64
}

// Run watches until ctx ends. Files already in Dir are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	logger.Info("watching drop folder", logger.String("dir", w.opts.Dir))

	tasks := make(chan string, 16)
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range tasks {
				w.upload(ctx, path)
			}
		}()
	}
	defer func() {
		close(tasks)
		wg.Wait()
	}()

	pendingFiles := make(map[string]pending)
	check := time.NewTicker(w.opts.Settle / 4)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !model.IsAudioFile(event.Name) {
				continue
			}
			if w.wasSeen(event.Name) {
				continue
			}
			pendingFiles[event.Name] = pending{at: time.Now(), size: -1}

		case <-check.C:
			now := time.Now()
			for path, p := range pendingFiles {
				if now.Sub(p.at) < w.opts.Settle {
					continue
				}
				info, err := os.Stat(path)
				if err != nil {
					delete(pendingFiles, path)
					continue
				}
				if info.IsDir() {
					delete(pendingFiles, path)
					continue
				}
				if info.Size() != p.size {
					// still growing
					pendingFiles[path] = pending{at: now, size: info.Size()}
					continue
				}
				select {
				case tasks <- path:
					w.markSeen(path)
					delete(pendingFiles, path)
				default:
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) wasSeen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen[filepath.Clean(path)]
}

func (w *Watcher) markSeen(path string) {
	w.mu.Lock()
	w.seen[filepath.Clean(path)] = true
	w.mu.Unlock()
}

func (w *Watcher) upload(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("drop folder file vanished", logger.String("path", path), logger.ErrorField(err))
		return
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	t, err := w.up.Upload(ctx, library.UploadFile{Name: filepath.Base(path), Size: size, Content: f}, w.opts.TermsAccepted)
	if err != nil {
		logger.Warn("drop folder upload failed", logger.String("path", path), logger.ErrorField(err))
	} else {
		logger.Info("drop folder upload done", logger.String("path", path), logger.String("track", t.ID))
	}
	if w.opts.OnUpload != nil {
		w.opts.OnUpload(path, t, err)
	}
}
