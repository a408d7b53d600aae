package playback_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/playback"
)

// writeScript puts an executable shell script named name in dir.
func writeScript(dir, name, body string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)).To(Succeed())
	return path
}

var _ = Describe("FFplayOutput", func() {
	var (
		dir      string
		argsFile string
		ffprobe  string
		ctx      context.Context
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("shell stand-ins need a POSIX shell")
		}
		var err error
		dir, err = os.MkdirTemp("", "stemdeck-ffplay-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		ctx = context.Background()
		argsFile = filepath.Join(dir, "args")
		ffprobe = writeScript(dir, "ffprobe", `echo '{"format":{"duration":"12.5"}}'`)
	})

	longPlayer := func() string {
		return writeScript(dir, "ffplay", `echo "$@" >> "`+argsFile+`"
exec sleep 30`)
	}

	invocations := func() []string {
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return nil
		}
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	It("refuses to open without an ffplay binary", func() {
		out := playback.NewFFplayOutput(filepath.Join(dir, "missing"), ffprobe)
		_, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{})
		Expect(err).To(HaveOccurred())
	})

	It("reports the probed duration", func() {
		durations := make(chan time.Duration, 1)
		out := playback.NewFFplayOutput(longPlayer(), ffprobe)
		s, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{
			OnDuration: func(d time.Duration) { durations <- d },
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		Eventually(durations, "2s").Should(Receive(Equal(12500 * time.Millisecond)))
	})

	It("keeps the position across pause and restarts at the seek offset", func() {
		out := playback.NewFFplayOutput(longPlayer(), ffprobe)
		s, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		Expect(s.Seek(30 * time.Second)).To(Succeed())
		Expect(s.Position()).To(Equal(30 * time.Second))

		Expect(s.Play()).To(Succeed())
		Eventually(invocations, "2s").Should(HaveLen(1))
		Expect(invocations()[0]).To(ContainSubstring("-ss 30.000 a.mp3"))
		Eventually(s.Position, "2s").Should(BeNumerically(">", 30*time.Second))

		Expect(s.Pause()).To(Succeed())
		paused := s.Position()
		Consistently(s.Position, "200ms").Should(Equal(paused))

		Expect(s.Seek(5 * time.Second)).To(Succeed())
		Expect(s.Position()).To(Equal(5 * time.Second))
		Expect(s.Play()).To(Succeed())
		Eventually(invocations, "2s").Should(HaveLen(2))
		Expect(invocations()[1]).To(ContainSubstring("-ss 5.000 a.mp3"))

		// seeking while playing restarts the process at the new offset
		Expect(s.Seek(10 * time.Second)).To(Succeed())
		Eventually(invocations, "2s").Should(HaveLen(3))
		Expect(invocations()[2]).To(ContainSubstring("-ss 10.000 a.mp3"))
		Expect(s.Position()).To(BeNumerically(">=", 10*time.Second))
	})

	It("calls OnEnd when playback finishes on its own", func() {
		ended := make(chan struct{})
		quick := writeScript(dir, "ffplay-quick", "exit 0")
		out := playback.NewFFplayOutput(quick, ffprobe)
		s, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{
			OnEnd: func() { close(ended) },
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Play()).To(Succeed())
		Eventually(ended, "2s").Should(BeClosed())
	})

	It("does not report an end after pause", func() {
		ended := make(chan struct{}, 1)
		out := playback.NewFFplayOutput(longPlayer(), ffprobe)
		s, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{
			OnEnd: func() { ended <- struct{}{} },
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Play()).To(Succeed())
		Expect(s.Pause()).To(Succeed())
		Consistently(ended, "300ms").ShouldNot(Receive())
		Expect(s.Close()).To(Succeed())
	})

	It("refuses to play once closed", func() {
		out := playback.NewFFplayOutput(longPlayer(), ffprobe)
		s, err := out.Open(ctx, playback.Source{Location: "a.mp3"}, playback.Callbacks{})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Close()).To(Succeed())
		Expect(s.Play()).To(HaveOccurred())
		Expect(s.Close()).To(Succeed())
	})
})
