// Package command turns finalized utterances into actions. Dispatch is a
// pure function over an ordered grammar, Apply performs the action on a
// set of targets.
package command

import (
	"context"
	"strings"

	"StemDeck/model"
)

// Action is what a matched utterance asks for.
type Action int

const (
	ActionNone Action = iota
	ActionNavigate
	ActionPlayAll
	ActionStopAll
	ActionClearLibrary
	ActionReload
	ActionLogout
	ActionStopListening
	ActionOpenFileChooser
	ActionSplit
	ActionSelectAllStems
	ActionDeselectAllStems
	ActionToggleStem
	ActionPlayStem
	ActionStatus
)

var actionNames = map[Action]string{
	ActionNone:             "none",
	ActionNavigate:         "navigate",
	ActionPlayAll:          "play-all",
	ActionStopAll:          "stop-all",
	ActionClearLibrary:     "clear-library",
	ActionReload:           "reload",
	ActionLogout:           "logout",
	ActionStopListening:    "stop-listening",
	ActionOpenFileChooser:  "open-file-chooser",
	ActionSplit:            "split",
	ActionSelectAllStems:   "select-all-stems",
	ActionDeselectAllStems: "deselect-all-stems",
	ActionToggleStem:       "toggle-stem",
	ActionPlayStem:         "play-stem",
	ActionStatus:           "status",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// Route is a navigation target.
type Route string

const (
	RouteProfile Route = "profile"
	RouteHome    Route = "home"
	RouteApp     Route = "app"
	RoutePricing Route = "pricing"
)

// State is what the grammar can see of the session.
type State struct {
	Tracks []model.Track // newest first
}

// Result is the outcome of one utterance. Consumed without Matched means
// the phrase was recognized but named nothing actionable.
type Result struct {
	Matched  bool
	Consumed bool
	Action   Action
	Route    Route
	Stem     string
	TrackID  string
	Filename string
	Message  string
}

// Normalize lower-cases, trims, collapses whitespace and strips trailing
// punctuation.
func Normalize(text string) string {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.TrimSpace(strings.TrimRight(text, ".!?,"))
}

// Dispatch evaluates the grammar top to bottom; the first rule that
// recognizes the text wins.
func Dispatch(text string, st State) Result {
	text = Normalize(text)
	if text == "" {
		return Result{}
	}
	for _, r := range grammar {
		if res, ok := r.match(text, st); ok {
			return res
		}
	}
	return Result{}
}

// Targets performs dispatched actions.
type Targets interface {
	Navigate(route Route)
	PlayTrack(ctx context.Context, trackID string) error
	PlayFile(ctx context.Context, trackID, filename string) error
	StopAll()
	ClearLibrary()
	Reload(ctx context.Context) error
	Logout(ctx context.Context) error
	StopListening()
	OpenFileChooser()
	TriggerSplit()
	SelectAllStems()
	DeselectAllStems()
	ToggleStem(stem string)
	Status(msg string)
}

// Apply runs the action of res on t and posts its message.
func Apply(ctx context.Context, res Result, t Targets) error {
	var err error
	switch res.Action {
	case ActionNavigate:
		t.Navigate(res.Route)
	case ActionPlayAll:
		err = t.PlayTrack(ctx, res.TrackID)
	case ActionPlayStem:
		err = t.PlayFile(ctx, res.TrackID, res.Filename)
	case ActionStopAll:
		t.StopAll()
	case ActionClearLibrary:
		t.ClearLibrary()
	case ActionReload:
		err = t.Reload(ctx)
	case ActionLogout:
		err = t.Logout(ctx)
	case ActionStopListening:
		t.StopListening()
	case ActionOpenFileChooser:
		t.OpenFileChooser()
	case ActionSplit:
		t.TriggerSplit()
	case ActionSelectAllStems:
		t.SelectAllStems()
	case ActionDeselectAllStems:
		t.DeselectAllStems()
	case ActionToggleStem:
		t.ToggleStem(res.Stem)
	}
	if res.Message != "" {
		t.Status(res.Message)
	}
	return err
}
