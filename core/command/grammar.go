package command

import (
	"fmt"
	"regexp"
	"strings"

	"StemDeck/model"

	"github.com/agnivade/levenshtein"
)

type rule struct {
	name  string
	match func(text string, st State) (Result, bool)
}

// phrases matches any exact phrase.
func phrases(res Result, list ...string) func(string, State) (Result, bool) {
	set := make(map[string]bool, len(list))
	for _, p := range list {
		set[p] = true
	}
	res.Matched, res.Consumed = true, true
	return func(text string, _ State) (Result, bool) {
		return res, set[text]
	}
}

var (
	selectStemRe = regexp.MustCompile(`^select (.+)$`)
	playStemRe   = regexp.MustCompile(`^play (.+?) (?:for|from) (.+)$`)
)

// grammar is evaluated in order. Deselect comes before the generic
// "select <stem>" pattern, and the exact playback phrases before the
// targeted pattern.
var grammar = []rule{
	{"profile", phrases(Result{Action: ActionNavigate, Route: RouteProfile}, "go to profile", "view profile", "show profile")},
	{"home", phrases(Result{Action: ActionNavigate, Route: RouteHome}, "go home", "go to home")},
	{"back", phrases(Result{Action: ActionNavigate, Route: RouteApp}, "go back", "back to app")},
	{"pricing", phrases(Result{Action: ActionNavigate, Route: RoutePricing}, "go to pricing", "view pricing", "show pricing")},

	{"play all", matchPlayAll},
	{"stop all", phrases(Result{Action: ActionStopAll, Message: "Stopped playback"}, "stop music", "stop all")},
	{"clear library", phrases(Result{Action: ActionClearLibrary, Message: "Library cleared"}, "clear library")},

	{"reload", phrases(Result{Action: ActionReload}, "refresh", "refresh page")},
	{"logout", phrases(Result{Action: ActionLogout}, "logout", "sign out")},

	{"stop listening", matchStopListening},

	{"upload", phrases(Result{Action: ActionOpenFileChooser}, "upload file", "upload music")},
	{"split", func(text string, _ State) (Result, bool) {
		return Result{Matched: true, Consumed: true, Action: ActionSplit}, strings.Contains(text, "split")
	}},

	{"select all", phrases(Result{Action: ActionSelectAllStems, Message: "All stems selected"}, "select all stems", "select all")},
	{"deselect all", phrases(Result{Action: ActionDeselectAllStems, Message: "Stem selection cleared"}, "deselect all stems", "deselect all", "clear stems")},
	{"select stem", matchSelectStem},

	{"play stem", matchPlayStem},
}

func matchPlayAll(text string, st State) (Result, bool) {
	if text != "play all" && text != "play music" {
		return Result{}, false
	}
	if len(st.Tracks) == 0 {
		return Result{Matched: true, Consumed: true, Action: ActionStatus, Message: "Your library is empty"}, true
	}
	newest := st.Tracks[0]
	return Result{
		Matched:  true,
		Consumed: true,
		Action:   ActionPlayAll,
		TrackID:  newest.ID,
		Message:  fmt.Sprintf("Playing %s", newest.Title),
	}, true
}

func matchStopListening(text string, _ State) (Result, bool) {
	ok := text == "stop listening" || text == "turn off" || text == "done" || strings.HasSuffix(text, " done")
	return Result{Matched: true, Consumed: true, Action: ActionStopListening}, ok
}

func matchSelectStem(text string, _ State) (Result, bool) {
	m := selectStemRe.FindStringSubmatch(text)
	if m == nil {
		return Result{}, false
	}
	stem, ok := NormalizeStem(m[1])
	if !ok {
		// recognized phrase, unknown stem
		return Result{Consumed: true}, true
	}
	return Result{Matched: true, Consumed: true, Action: ActionToggleStem, Stem: stem}, true
}

func matchPlayStem(text string, st State) (Result, bool) {
	m := playStemRe.FindStringSubmatch(text)
	if m == nil {
		return Result{}, false
	}
	stemSpoken, songSpoken := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])

	var song *model.Track
	for i := range st.Tracks {
		if st.Tracks[i].HasTitleFragment(songSpoken) {
			song = &st.Tracks[i]
			break
		}
	}
	if song == nil {
		msg := fmt.Sprintf("No song matching %q", songSpoken)
		if title, ok := closestTitle(songSpoken, st.Tracks); ok {
			msg += fmt.Sprintf(". Did you mean %q?", title)
		}
		return Result{Matched: true, Consumed: true, Action: ActionStatus, Message: msg}, true
	}

	layers := song.Layers
	if layers == nil {
		layers = model.GenerateLayersFromFiles(song.FileNames())
	}
	layer, ok := model.FindLayer(layers, layerFragment(stemSpoken))
	if !ok {
		return Result{
			Matched:  true,
			Consumed: true,
			Action:   ActionStatus,
			Message:  fmt.Sprintf("No %s layer in %q", stemSpoken, song.Title),
		}, true
	}
	return Result{
		Matched:  true,
		Consumed: true,
		Action:   ActionPlayStem,
		TrackID:  song.ID,
		Filename: layer.File,
		Message:  fmt.Sprintf("Playing %s from %s", layer.DisplayName, song.Title),
	}, true
}

// closestTitle suggests a title within edit distance of the spoken one.
func closestTitle(spoken string, tracks []model.Track) (string, bool) {
	best, bestDist := "", -1
	for _, t := range tracks {
		d := levenshtein.ComputeDistance(spoken, strings.ToLower(t.Title))
		if bestDist < 0 || d < bestDist {
			best, bestDist = t.Title, d
		}
	}
	limit := len(spoken) / 2
	if limit < 3 {
		limit = 3
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}
