package command_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/command"
	"StemDeck/model"
)

func song(id, title string, files ...string) model.Track {
	t := model.Track{ID: id, Title: title}
	for _, f := range files {
		t.Files = append(t.Files, model.TrackFile{Name: f})
	}
	return t.WithLayers()
}

type recorder struct {
	calls   []string
	status  []string
	playErr error
}

func (r *recorder) Navigate(route command.Route) { r.calls = append(r.calls, "navigate:"+string(route)) }
func (r *recorder) PlayTrack(_ context.Context, id string) error {
	r.calls = append(r.calls, "play-track:"+id)
	return r.playErr
}
func (r *recorder) PlayFile(_ context.Context, id, file string) error {
	r.calls = append(r.calls, "play-file:"+id+"/"+file)
	return r.playErr
}
func (r *recorder) StopAll()                     { r.calls = append(r.calls, "stop-all") }
func (r *recorder) ClearLibrary()                { r.calls = append(r.calls, "clear") }
func (r *recorder) Reload(context.Context) error { r.calls = append(r.calls, "reload"); return nil }
func (r *recorder) Logout(context.Context) error { r.calls = append(r.calls, "logout"); return nil }
func (r *recorder) StopListening()               { r.calls = append(r.calls, "stop-listening") }
func (r *recorder) OpenFileChooser()             { r.calls = append(r.calls, "chooser") }
func (r *recorder) TriggerSplit()                { r.calls = append(r.calls, "split") }
func (r *recorder) SelectAllStems()              { r.calls = append(r.calls, "select-all") }
func (r *recorder) DeselectAllStems()            { r.calls = append(r.calls, "deselect-all") }
func (r *recorder) ToggleStem(stem string)       { r.calls = append(r.calls, "toggle:"+stem) }
func (r *recorder) Status(msg string)            { r.status = append(r.status, msg) }

var _ = Describe("Dispatch", func() {
	library := command.State{Tracks: []model.Track{
		song("new", "Midnight City", "original.mp3", "vocals.mp3", "drums.mp3"),
		song("old", "Blue Monday", "bass.mp3", "other.mp3"),
	}}
	empty := command.State{}

	DescribeTable("exact phrases",
		func(text string, action command.Action) {
			res := command.Dispatch(text, library)
			Expect(res.Matched).To(BeTrue())
			Expect(res.Consumed).To(BeTrue())
			Expect(res.Action).To(Equal(action))
		},
		Entry(nil, "Go to profile.", command.ActionNavigate),
		Entry(nil, "  GO HOME ", command.ActionNavigate),
		Entry(nil, "back to app", command.ActionNavigate),
		Entry(nil, "show pricing!", command.ActionNavigate),
		Entry(nil, "stop music", command.ActionStopAll),
		Entry(nil, "stop all", command.ActionStopAll),
		Entry(nil, "clear library", command.ActionClearLibrary),
		Entry(nil, "refresh page", command.ActionReload),
		Entry(nil, "sign out", command.ActionLogout),
		Entry(nil, "ok I'm done", command.ActionStopListening),
		Entry(nil, "turn off", command.ActionStopListening),
		Entry(nil, "upload music", command.ActionOpenFileChooser),
		Entry(nil, "please split this one", command.ActionSplit),
		Entry(nil, "select all", command.ActionSelectAllStems),
		Entry(nil, "deselect all stems", command.ActionDeselectAllStems),
		Entry(nil, "clear stems", command.ActionDeselectAllStems),
	)

	It("routes navigation phrases", func() {
		Expect(command.Dispatch("view profile", library).Route).To(Equal(command.RouteProfile))
		Expect(command.Dispatch("go back", library).Route).To(Equal(command.RouteApp))
	})

	It("reports an empty library for play all without playing", func() {
		res := command.Dispatch("play all", empty)
		Expect(res.Matched).To(BeTrue())
		Expect(res.Action).To(Equal(command.ActionStatus))
		Expect(res.Message).NotTo(BeEmpty())

		r := &recorder{}
		Expect(command.Apply(context.Background(), res, r)).To(Succeed())
		Expect(r.calls).To(BeEmpty())
		Expect(r.status).To(HaveLen(1))
	})

	It("plays the newest track for play all", func() {
		res := command.Dispatch("Play music", library)
		Expect(res.Action).To(Equal(command.ActionPlayAll))
		Expect(res.TrackID).To(Equal("new"))
	})

	It("normalizes stem aliases", func() {
		res := command.Dispatch("select drums", empty)
		Expect(res.Matched).To(BeTrue())
		Expect(res.Action).To(Equal(command.ActionToggleStem))
		Expect(res.Stem).To(Equal("percussion"))

		Expect(command.Dispatch("select vocal", empty).Stem).To(Equal("vocals"))
		Expect(command.Dispatch("select instrument", empty).Stem).To(Equal("instrumental"))
		Expect(command.Dispatch("select source", empty).Stem).To(Equal("original audio"))
	})

	It("consumes unknown stems without matching", func() {
		res := command.Dispatch("select kazoo", empty)
		Expect(res.Consumed).To(BeTrue())
		Expect(res.Matched).To(BeFalse())
		Expect(res.Action).To(Equal(command.ActionNone))
	})

	It("plays a targeted stem", func() {
		res := command.Dispatch("play percussion from midnight", library)
		Expect(res.Action).To(Equal(command.ActionPlayStem))
		Expect(res.TrackID).To(Equal("new"))
		Expect(res.Filename).To(Equal("drums.mp3"))

		res = command.Dispatch("play original audio for midnight city", library)
		Expect(res.Filename).To(Equal("original.mp3"))

		res = command.Dispatch("play bass for blue", library)
		Expect(res.TrackID).To(Equal("old"))
		Expect(res.Filename).To(Equal("bass.mp3"))
	})

	It("matches with a status when the song or stem is missing", func() {
		res := command.Dispatch("play vocals from blue monday", library)
		Expect(res.Matched).To(BeTrue())
		Expect(res.Action).To(Equal(command.ActionStatus))
		Expect(res.Message).To(ContainSubstring("No vocals layer"))

		res = command.Dispatch("play vocals from midnight sity", library)
		Expect(res.Matched).To(BeTrue())
		Expect(res.Action).To(Equal(command.ActionStatus))
		Expect(res.Message).To(ContainSubstring(`Did you mean "Midnight City"?`))

		res = command.Dispatch("play vocals from something else entirely", library)
		Expect(res.Message).NotTo(ContainSubstring("Did you mean"))
	})

	It("does not match unknown utterances", func() {
		res := command.Dispatch("what a lovely day", library)
		Expect(res).To(Equal(command.Result{}))
		Expect(command.Dispatch("   ", library)).To(Equal(command.Result{}))
	})
})

var _ = Describe("Apply", func() {
	ctx := context.Background()

	It("dispatches each action to its target", func() {
		r := &recorder{}
		for _, res := range []command.Result{
			{Action: command.ActionNavigate, Route: command.RouteHome},
			{Action: command.ActionPlayAll, TrackID: "t"},
			{Action: command.ActionPlayStem, TrackID: "t", Filename: "bass.mp3"},
			{Action: command.ActionToggleStem, Stem: "bass"},
			{Action: command.ActionSplit},
			{Action: command.ActionNone},
		} {
			Expect(command.Apply(ctx, res, r)).To(Succeed())
		}
		Expect(r.calls).To(Equal([]string{"navigate:home", "play-track:t", "play-file:t/bass.mp3", "toggle:bass", "split"}))
	})

	It("returns playback errors and still posts the message", func() {
		r := &recorder{playErr: errors.New("no source")}
		err := command.Apply(ctx, command.Result{Action: command.ActionPlayAll, TrackID: "t", Message: "Playing"}, r)
		Expect(err).To(MatchError("no source"))
		Expect(r.status).To(Equal([]string{"Playing"}))
	})
})
