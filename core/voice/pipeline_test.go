package voice_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/apperr"
	"StemDeck/core/voice"
)

type hookLog struct {
	mu          sync.Mutex
	states      []voice.State
	notices     []voice.Notice
	utterances  []string
	transcripts []string
}

func (h *hookLog) hooks() voice.Hooks {
	return voice.Hooks{
		OnState: func(s voice.State) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
		OnNotice: func(n voice.Notice, _ error) {
			h.mu.Lock()
			h.notices = append(h.notices, n)
			h.mu.Unlock()
		},
		OnUtterance: func(text string) {
			h.mu.Lock()
			h.utterances = append(h.utterances, text)
			h.mu.Unlock()
		},
		OnTranscript: func(text string, _ bool) {
			h.mu.Lock()
			h.transcripts = append(h.transcripts, text)
			h.mu.Unlock()
		},
	}
}

func (h *hookLog) getNotices() []voice.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]voice.Notice(nil), h.notices...)
}

func (h *hookLog) getUtterances() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.utterances...)
}

var _ = Describe("Pipeline", func() {
	var (
		ctx  context.Context
		mic  *fakeMic
		srv  *transcriber
		log  *hookLog
		pipe *voice.Pipeline
		opts voice.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		mic = &fakeMic{}
		srv = newTranscriber()
		DeferCleanup(srv.server.Close)
		log = &hookLog{}
		opts = voice.Options{
			URL:            srv.url(),
			Microphone:     mic,
			Chunk:          20 * time.Millisecond,
			Inactivity:     2 * time.Second,
			TranscriptHold: 300 * time.Millisecond,
			Hooks:          log.hooks(),
		}
	})

	JustBeforeEach(func() {
		pipe = voice.NewPipeline(opts)
		DeferCleanup(pipe.Stop)
	})

	serverConn := func() *websocket.Conn {
		var conn *websocket.Conn
		Eventually(srv.conns).Should(Receive(&conn))
		return conn
	}

	It("goes online and streams audio chunks", func() {
		Expect(pipe.Start(ctx)).To(Succeed())
		Eventually(pipe.State).Should(Equal(voice.Online))
		Eventually(srv.chunks.Load).Should(BeNumerically(">=", 3))
	})

	It("hands a final transcript to the handler, then goes offline", func() {
		Expect(pipe.Start(ctx)).To(Succeed())
		conn := serverConn()
		Eventually(pipe.State).Should(Equal(voice.Online))

		Expect(conn.WriteJSON(map[string]interface{}{"transcript": "play", "isFinal": false})).To(Succeed())
		Eventually(pipe.Transcript).Should(Equal("play"))
		Expect(pipe.State()).To(Equal(voice.Online))

		Expect(conn.WriteJSON(map[string]interface{}{"transcript": "play all", "isFinal": true})).To(Succeed())
		Eventually(log.getUtterances).Should(Equal([]string{"play all"}))
		Eventually(pipe.State).Should(Equal(voice.Offline))
		Expect(mic.released()).To(BeTrue())

		Expect(pipe.Transcript()).To(Equal("play all"))
		Eventually(pipe.Transcript).Should(BeEmpty())
		Eventually(srv.closed.Load).Should(BeTrue())
	})

	It("ignores frames that are not transcripts", func() {
		Expect(pipe.Start(ctx)).To(Succeed())
		conn := serverConn()
		Eventually(pipe.State).Should(Equal(voice.Online))

		Expect(conn.WriteMessage(websocket.TextMessage, []byte("not json"))).To(Succeed())
		Consistently(pipe.State, 100*time.Millisecond).Should(Equal(voice.Online))
	})

	Context("with a short inactivity window", func() {
		BeforeEach(func() {
			opts.Inactivity = 150 * time.Millisecond
		})

		It("stops and releases the microphone when no transcript arrives", func() {
			Expect(pipe.Start(ctx)).To(Succeed())
			Eventually(pipe.State).Should(Equal(voice.Online))

			Eventually(pipe.State).Should(Equal(voice.Offline))
			Expect(mic.released()).To(BeTrue())
			Expect(log.getNotices()).To(BeEmpty())
		})

		It("resets the window on every transcript", func() {
			Expect(pipe.Start(ctx)).To(Succeed())
			conn := serverConn()
			Eventually(pipe.State).Should(Equal(voice.Online))

			for i := 0; i < 4; i++ {
				time.Sleep(80 * time.Millisecond)
				Expect(conn.WriteJSON(map[string]interface{}{"transcript": "hmm", "isFinal": false})).To(Succeed())
			}
			Expect(pipe.State()).To(Equal(voice.Online))
		})
	})

	It("returns to offline with a notice when the microphone is unavailable", func() {
		mic.err = errors.New("permission denied")
		err := pipe.Start(ctx)
		Expect(apperr.Is(err, apperr.Permission)).To(BeTrue())
		Expect(pipe.State()).To(Equal(voice.Offline))
		Expect(log.getNotices()).To(Equal([]voice.Notice{voice.NoticeMicrophone}))
	})

	It("raises a connection notice when the socket cannot open", func() {
		srv.server.Close()
		Expect(pipe.Start(ctx)).To(Succeed())
		Eventually(log.getNotices).Should(Equal([]voice.Notice{voice.NoticeConnection}))
		Expect(pipe.State()).To(Equal(voice.Offline))
		Expect(mic.released()).To(BeTrue())
	})

	It("treats a dropped socket as a stop", func() {
		Expect(pipe.Start(ctx)).To(Succeed())
		conn := serverConn()
		Eventually(pipe.State).Should(Equal(voice.Online))

		Expect(conn.Close()).To(Succeed())
		Eventually(pipe.State).Should(Equal(voice.Offline))
		Expect(mic.released()).To(BeTrue())
		Expect(log.getNotices()).To(BeEmpty())
	})

	It("stops idempotently", func() {
		pipe.Stop()
		Expect(pipe.Start(ctx)).To(Succeed())
		Eventually(pipe.State).Should(Equal(voice.Online))
		Expect(pipe.Start(ctx)).To(Succeed()) // already running

		pipe.Stop()
		pipe.Stop()
		Expect(pipe.State()).To(Equal(voice.Offline))
		Expect(mic.released()).To(BeTrue())
		Expect(mic.opened).To(HaveLen(1))
		Eventually(srv.closed.Load).Should(BeTrue())
	})
})
