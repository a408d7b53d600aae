// Package session ties the library, playback and voice engines into one
// state machine and implements the voice command targets.
package session

import (
	"context"
	"sync"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/core/auth"
	"StemDeck/core/command"
	"StemDeck/core/library"
	"StemDeck/core/playback"
	"StemDeck/core/voice"
	"StemDeck/logger"
	"StemDeck/model"
)

// Hooks are the UI side of actions the session can't perform itself.
type Hooks struct {
	Navigate        func(route command.Route)
	OpenFileChooser func()
	Split           func(stems []string)
	Status          func(msg string)
}

// Options configures a Session.
type Options struct {
	Library *library.Engine
	Player  *playback.Engine
	Voice   *voice.Pipeline // optional
	Hooks   Hooks
}

// Session is the client state machine.
type Session struct {
	lib    *library.Engine
	player *playback.Engine
	voice  *voice.Pipeline
	hooks  Hooks

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	route    command.Route
	stems    map[string]bool
	status   string
	statusAt time.Time
}

// New wires the engines together. Every stem starts selected.
func New(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		lib:    opts.Library,
		player: opts.Player,
		voice:  opts.Voice,
		hooks:  opts.Hooks,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		route:  command.RouteApp,
		stems:  make(map[string]bool, len(command.Stems)),
	}
	for _, stem := range command.Stems {
		s.stems[stem] = true
	}

	s.lib.SetChannelCloser(s.player)
	if s.voice != nil {
		s.voice.SetUtteranceHandler(func(text string) {
			s.HandleUtterance(s.ctx, text)
		})
	}
	go s.drainEvents()
	return s
}

// drainEvents turns background library failures into status messages.
func (s *Session) drainEvents() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.lib.Events():
			s.Status(eventMessage(ev))
		}
	}
}

func eventMessage(ev library.Event) string {
	switch ev.Op {
	case library.OpDeleteSong, library.OpDeleteAll:
		return "Removed locally; the server copy could not be deleted yet"
	case library.OpSync:
		return "Showing your saved library; could not reach the server"
	case library.OpDownload:
		return "Download failed: " + apperr.UserMessage(ev.Err)
	default:
		return "Something went wrong saving your library"
	}
}

// Close stops listening and playback.
func (s *Session) Close() {
	if s.voice != nil {
		s.voice.Stop()
	}
	s.player.StopAll()
	s.cancel()
	<-s.done
}

// Library returns the library engine.
func (s *Session) Library() *library.Engine { return s.lib }

// Player returns the playback engine.
func (s *Session) Player() *playback.Engine { return s.player }

// HandleUtterance dispatches text and applies the result.
func (s *Session) HandleUtterance(ctx context.Context, text string) command.Result {
	res := command.Dispatch(text, command.State{Tracks: s.lib.Tracks()})
	logger.Info("voice command",
		logger.String("text", text),
		logger.String("action", res.Action.String()),
		logger.Bool("matched", res.Matched))

	if err := command.Apply(ctx, res, s); err != nil {
		logger.Warn("voice command failed", logger.String("action", res.Action.String()), logger.ErrorField(err))
		s.Status(apperr.UserMessage(err))
	}
	return res
}

// StartListening starts the voice pipeline.
func (s *Session) StartListening(ctx context.Context) error {
	if s.voice == nil {
		return apperr.Message(apperr.Validation, "voice control is not configured")
	}
	return s.voice.Start(ctx)
}

// Upload adds a track with the current stem selection.
func (s *Session) Upload(ctx context.Context, f library.UploadFile, termsAccepted bool) (model.Track, error) {
	t, err := s.lib.AddTrack(ctx, f, termsAccepted, s.SelectedStems())
	if err != nil {
		s.Status(apperr.UserMessage(err))
		return t, err
	}
	s.Status("Added " + t.Title)
	return t, nil
}

// SelectedStems returns the selection in vocabulary order; never nil.
func (s *Session) SelectedStems() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, stem := range command.Stems {
		if s.stems[stem] {
			out = append(out, stem)
		}
	}
	return out
}

// Snapshot is the observable session state.
type Snapshot struct {
	Route      command.Route
	Status     string
	StatusAt   time.Time
	Stems      []string
	Voice      voice.State
	Transcript string
	Playback   playback.Snapshot
	Tracks     []model.Track
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Stems:    s.SelectedStems(),
		Playback: s.player.Snapshot(),
		Tracks:   s.lib.Tracks(),
	}
	if s.voice != nil {
		snap.Voice = s.voice.State()
		snap.Transcript = s.voice.Transcript()
	}
	s.mu.RLock()
	snap.Route = s.route
	snap.Status = s.status
	snap.StatusAt = s.statusAt
	s.mu.RUnlock()
	return snap
}

// SetIdentity switches users: playback stops and the library is
// reconciled for the new identity.
func (s *Session) SetIdentity(ctx context.Context, who auth.Identity) error {
	if !s.lib.Identity().Equal(who) {
		s.player.StopAll()
	}
	return s.lib.SetIdentity(ctx, who)
}
