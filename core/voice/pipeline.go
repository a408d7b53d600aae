// Package voice streams microphone audio to a transcription service over
// a websocket and hands finalized utterances to a handler.
package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// Hooks observe the pipeline. Every hook is optional and is called
// outside the pipeline's lock.
type Hooks struct {
	OnState      func(State)
	OnTranscript func(text string, final bool)
	OnNotice     func(n Notice, err error)
	OnUtterance  func(text string)
}

// Options configures a Pipeline.
type Options struct {
	URL            string
	Header         http.Header
	Dialer         *websocket.Dialer
	Microphone     Microphone
	SampleRate     int
	Chunk          time.Duration
	Inactivity     time.Duration
	TranscriptHold time.Duration
	Hooks          Hooks
}

// transcriptFrame is what the transcription service sends.
type transcriptFrame struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// Pipeline is one voice session at a time.
type Pipeline struct {
	opts Options

	mu         sync.Mutex
	state      State
	transcript string
	current    *session
	hold       *time.Timer
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	mic    io.ReadCloser
	conn   *websocket.Conn
	idle   *time.Timer
	once   sync.Once
}

// close releases the microphone and the socket.
func (s *session) close() {
	s.once.Do(func() {
		s.cancel()
		if s.idle != nil {
			s.idle.Stop()
		}
		if err := s.mic.Close(); err != nil {
			logger.Debug("microphone close failed", logger.ErrorField(err))
		}
		if s.conn != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = s.conn.Close()
		}
	})
}

// NewPipeline creates an offline pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Chunk <= 0 {
		opts.Chunk = 250 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Second
	}
	if opts.TranscriptHold <= 0 {
		opts.TranscriptHold = 3 * time.Second
	}
	return &Pipeline{opts: opts}
}

// SetUtteranceHandler replaces the OnUtterance hook.
func (p *Pipeline) SetUtteranceHandler(fn func(text string)) {
	p.mu.Lock()
	p.opts.Hooks.OnUtterance = fn
	p.mu.Unlock()
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transcript returns the live transcript.
func (p *Pipeline) Transcript() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcript
}

// chunkBytes is the size of one chunk of 16-bit mono PCM.
func (p *Pipeline) chunkBytes() int {
	n := int(int64(p.opts.SampleRate) * 2 * int64(p.opts.Chunk) / int64(time.Second))
	if n < 2 {
		n = 2
	}
	return n &^ 1
}

// Start opens the microphone and connects in the background. Calling it
// while a session is running does nothing.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Offline {
		p.mu.Unlock()
		return nil
	}
	p.state = next(p.state, EventStart)
	p.mu.Unlock()
	p.emitState(Connecting)

	mic, err := p.opts.Microphone.Open(ctx)
	if err != nil {
		if !apperr.Is(err, apperr.Permission) {
			err = apperr.Wrap(err, apperr.Permission, "microphone unavailable")
		}
		logger.Warn("microphone unavailable", logger.ErrorField(err))
		p.mu.Lock()
		p.state = next(p.state, EventMicFailed)
		p.mu.Unlock()
		p.emitNotice(NoticeMicrophone, err)
		p.emitState(Offline)
		return err
	}

	sctx, cancel := context.WithCancel(context.Background())
	sess := &session{ctx: sctx, cancel: cancel, mic: mic}

	p.mu.Lock()
	if p.state != Connecting {
		// stopped while the microphone was opening
		p.mu.Unlock()
		sess.close()
		return nil
	}
	p.current = sess
	p.mu.Unlock()

	go p.connect(sess)
	return nil
}

func (p *Pipeline) connect(sess *session) {
	conn, _, err := p.opts.Dialer.DialContext(sess.ctx, p.opts.URL, p.opts.Header)
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		logger.Warn("transcription socket failed", logger.String("url", p.opts.URL), logger.ErrorField(err))
		if p.end(sess, EventSocketError) {
			p.emitNotice(NoticeConnection, apperr.Wrap(err, apperr.Transport, "connect to transcription service"))
		}
		return
	}
	conn.SetReadLimit(maxFrameSize)

	p.mu.Lock()
	if p.current != sess {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	sess.conn = conn
	p.state = next(p.state, EventSocketOpen)
	sess.idle = time.AfterFunc(p.opts.Inactivity, func() {
		if p.end(sess, EventInactivity) {
			logger.Info("voice session idle, stopping", logger.Duration("timeout", p.opts.Inactivity))
		}
	})
	p.mu.Unlock()

	logger.Info("voice session online", logger.String("url", p.opts.URL))
	p.emitState(Online)

	go p.writePump(sess)
	go p.readPump(sess)
}

// writePump streams fixed-size microphone chunks as binary frames.
func (p *Pipeline) writePump(sess *session) {
	buf := make([]byte, p.chunkBytes())
	for {
		n, err := io.ReadFull(sess.mic, buf)
		if n > 0 {
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if werr := sess.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				if sess.ctx.Err() == nil {
					logger.Warn("audio chunk write failed", logger.ErrorField(werr))
				}
				p.end(sess, EventSocketError)
				return
			}
		}
		if err != nil {
			if sess.ctx.Err() == nil {
				logger.Warn("microphone stream ended", logger.ErrorField(err))
			}
			p.end(sess, EventStop)
			return
		}
	}
}

// readPump reads transcript frames until the socket closes.
func (p *Pipeline) readPump(sess *session) {
	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if sess.ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("transcription socket dropped", logger.ErrorField(err))
			}
			p.end(sess, EventSocketClosed)
			return
		}

		var frame transcriptFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Warn("invalid transcript frame", logger.ErrorField(err))
			continue
		}
		if done := p.onTranscript(sess, frame); done {
			return
		}
	}
}

// onTranscript reports whether the session ended.
func (p *Pipeline) onTranscript(sess *session, frame transcriptFrame) bool {
	p.mu.Lock()
	if p.current != sess {
		p.mu.Unlock()
		return true
	}
	sess.idle.Reset(p.opts.Inactivity)
	p.transcript = frame.Transcript
	handler := p.opts.Hooks.OnUtterance
	p.mu.Unlock()

	p.emitTranscript(frame.Transcript, frame.IsFinal)
	if !frame.IsFinal {
		return false
	}

	logger.Info("utterance", logger.String("text", frame.Transcript))
	if handler != nil {
		handler(frame.Transcript)
	}
	p.end(sess, EventFinalTranscript)
	p.holdTranscript(frame.Transcript)
	return true
}

// holdTranscript clears text after the hold period unless it was replaced.
func (p *Pipeline) holdTranscript(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hold != nil {
		p.hold.Stop()
	}
	p.hold = time.AfterFunc(p.opts.TranscriptHold, func() {
		p.mu.Lock()
		cleared := p.transcript == text && p.current == nil
		if cleared {
			p.transcript = ""
		}
		p.mu.Unlock()
		if cleared {
			p.emitTranscript("", false)
		}
	})
}

// end finishes sess with ev. It reports false when sess was already over.
func (p *Pipeline) end(sess *session, ev Event) bool {
	p.mu.Lock()
	if p.current != sess {
		p.mu.Unlock()
		return false
	}
	p.current = nil
	p.state = next(p.state, ev)
	state := p.state
	p.mu.Unlock()

	sess.close()
	p.emitState(state)
	return true
}

// Stop ends the running session. Safe to call at any time, any number of
// times.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	sess := p.current
	if sess == nil {
		wasConnecting := p.state == Connecting
		p.state = next(p.state, EventStop)
		p.mu.Unlock()
		if wasConnecting {
			p.emitState(Offline)
		}
		return
	}
	p.mu.Unlock()

	if p.end(sess, EventStop) {
		logger.Info("voice session stopped")
	}
}

func (p *Pipeline) emitState(s State) {
	if fn := p.opts.Hooks.OnState; fn != nil {
		fn(s)
	}
}

func (p *Pipeline) emitTranscript(text string, final bool) {
	if fn := p.opts.Hooks.OnTranscript; fn != nil {
		fn(text, final)
	}
}

func (p *Pipeline) emitNotice(n Notice, err error) {
	if fn := p.opts.Hooks.OnNotice; fn != nil {
		fn(n, err)
	}
}
