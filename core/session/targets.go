package session

import (
	"context"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/core/auth"
	"StemDeck/core/command"
	"StemDeck/core/playback"
	"StemDeck/logger"
)

var _ command.Targets = (*Session)(nil)

func (s *Session) Navigate(route command.Route) {
	s.mu.Lock()
	s.route = route
	s.mu.Unlock()
	if s.hooks.Navigate != nil {
		s.hooks.Navigate(route)
	}
}

func (s *Session) PlayTrack(ctx context.Context, trackID string) error {
	t, ok := s.lib.Track(trackID)
	if !ok {
		return apperr.Message(apperr.Validation, "track is no longer in the library")
	}
	return s.player.PlayAll(ctx, t)
}

func (s *Session) PlayFile(ctx context.Context, trackID, filename string) error {
	t, ok := s.lib.Track(trackID)
	if !ok {
		return apperr.Message(apperr.Validation, "track is no longer in the library")
	}
	f, ok := t.File(filename)
	if !ok {
		return apperr.Message(apperr.NoPlayableSource, "no file "+filename)
	}
	return s.player.Play(ctx, playback.Key{TrackID: t.ID, Filename: f.Name}, f, t)
}

func (s *Session) StopAll() {
	s.player.StopAll()
}

func (s *Session) ClearLibrary() {
	s.lib.ClearLibrary()
}

// Reload re-runs reconciliation; the closest a client without a page has
// to a full reload.
func (s *Session) Reload(ctx context.Context) error {
	return s.lib.Sync(ctx)
}

func (s *Session) Logout(ctx context.Context) error {
	s.player.StopAll()
	if err := s.lib.SetIdentity(ctx, auth.Anonymous); err != nil {
		return err
	}
	s.Status("Signed out")
	return nil
}

func (s *Session) StopListening() {
	if s.voice != nil {
		s.voice.Stop()
	}
}

func (s *Session) OpenFileChooser() {
	if s.hooks.OpenFileChooser != nil {
		s.hooks.OpenFileChooser()
		return
	}
	logger.Debug("file chooser requested without a handler")
}

func (s *Session) TriggerSplit() {
	stems := s.SelectedStems()
	if len(stems) == 0 {
		s.Status("Select at least one stem before splitting")
		return
	}
	if s.hooks.Split != nil {
		s.hooks.Split(stems)
	}
}

func (s *Session) SelectAllStems() {
	s.mu.Lock()
	for _, stem := range command.Stems {
		s.stems[stem] = true
	}
	s.mu.Unlock()
}

func (s *Session) DeselectAllStems() {
	s.mu.Lock()
	for stem := range s.stems {
		s.stems[stem] = false
	}
	s.mu.Unlock()
}

// ToggleStem flips one stem of the selection.
func (s *Session) ToggleStem(stem string) {
	s.mu.Lock()
	s.stems[stem] = !s.stems[stem]
	on := s.stems[stem]
	s.mu.Unlock()
	if on {
		s.Status(stem + " selected")
	} else {
		s.Status(stem + " deselected")
	}
}

func (s *Session) Status(msg string) {
	s.mu.Lock()
	s.status = msg
	s.statusAt = time.Now()
	s.mu.Unlock()
	if s.hooks.Status != nil {
		s.hooks.Status(msg)
	}
}
