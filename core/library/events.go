package library

import "StemDeck/logger"

const eventBuffer = 64

// Op names a background operation.
type Op string

const (
	OpDeleteSong Op = "delete-song"
	OpDeleteAll  Op = "delete-all"
	OpClearCache Op = "clear-cache"
	OpPersist    Op = "persist"
	OpSync       Op = "sync"
	OpDownload   Op = "download"
)

// Event reports a failure that happened after the visible state had
// already been updated.
type Event struct {
	Op      Op
	TrackID string
	Err     error
}

// Events returns the failure side channel. Events are dropped when no one
// drains it; they are always logged.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
		logger.Debug("event buffer full, dropping", logger.String("op", string(ev.Op)))
	}
}
