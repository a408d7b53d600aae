package cmd

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/command"
	"StemDeck/core/playback"
)

var _ = Describe("parseStems", func() {
	It("defaults to every stem", func() {
		Expect(parseStems(nil)).To(Equal(command.Stems))
	})

	It("normalizes aliases and drops duplicates", func() {
		stems, err := parseStems([]string{"voice", "drums, percussion", "original"})
		Expect(err).NotTo(HaveOccurred())
		Expect(stems).To(Equal([]string{"vocals", "percussion", "original audio"}))
	})

	It("rejects unknown stems", func() {
		_, err := parseStems([]string{"kazoo"})
		Expect(err).To(MatchError(ContainSubstring(`"kazoo"`)))
	})
})

var _ = Describe("archiveName", func() {
	It("replaces path separators", func() {
		Expect(archiveName("AC/DC: Live")).To(Equal("AC_DC_ Live.zip"))
	})

	It("names untitled archives", func() {
		Expect(archiveName("  ")).To(Equal("stems.zip"))
	})
})

var _ = Describe("progressLine", func() {
	It("shows the first playing channel against its duration", func() {
		vocals := playback.Key{TrackID: "t1", Filename: "vocals.mp3"}
		bass := playback.Key{TrackID: "t1", Filename: "bass.mp3"}
		line := progressLine(playback.Snapshot{
			Times:     map[playback.Key]time.Duration{bass: 61500 * time.Millisecond},
			Durations: map[playback.Key]time.Duration{bass: 3 * time.Minute},
			Playing:   []playback.Key{bass, vocals},
		})
		Expect(line).To(HavePrefix("1m1s / 3m0s"))
		Expect(line).To(HaveSuffix("bass, vocals"))
	})
})

var _ = Describe("unrecognized", func() {
	It("stays quiet for consumed utterances such as unknown stems", func() {
		res := command.Dispatch("select xyz", command.State{})
		Expect(res.Consumed).To(BeTrue())
		Expect(unrecognized(res)).To(BeFalse())
	})

	It("flags text no rule recognizes", func() {
		Expect(unrecognized(command.Dispatch("make me a sandwich", command.State{}))).To(BeTrue())
	})

	It("stays quiet for matched commands", func() {
		Expect(unrecognized(command.Dispatch("stop all", command.State{}))).To(BeFalse())
	})
})

var _ = Describe("commands", func() {
	It("registers every subcommand", func() {
		names := []string{}
		for _, c := range rootCmd.Commands() {
			names = append(names, c.Name())
		}
		Expect(names).To(ContainElements("library", "upload", "download", "play", "listen", "watch", "store", "url"))
	})
})
