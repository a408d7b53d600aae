package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"StemDeck/logger"

	"github.com/cockroachdb/errors"
)

var errClosed = errors.New("stream closed")

// FFplayOutput plays each stream in its own ffplay process. Position is
// tracked by wall clock; pausing stops the process and keeps the
// position, resuming restarts it there.
type FFplayOutput struct {
	ffplayPath  string
	ffprobePath string
	tick        time.Duration
}

// NewFFplayOutput creates an output; an empty ffprobePath is derived from
// ffplayPath.
func NewFFplayOutput(ffplayPath, ffprobePath string) *FFplayOutput {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	if ffprobePath == "" {
		ffprobePath = strings.Replace(ffplayPath, "ffplay", "ffprobe", 1)
	}
	return &FFplayOutput{ffplayPath: ffplayPath, ffprobePath: ffprobePath, tick: 250 * time.Millisecond}
}

func (o *FFplayOutput) Open(ctx context.Context, src Source, cb Callbacks) (Stream, error) {
	if _, err := exec.LookPath(o.ffplayPath); err != nil {
		return nil, fmt.Errorf("ffplay not available: %w", err)
	}
	s := &ffplayStream{out: o, location: src.Location, cb: cb}
	go s.probe(ctx)
	return s, nil
}

// probe reports the duration of the source.
func (o *FFplayOutput) probe(ctx context.Context, location string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, o.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		location,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	secs, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

type ffplayStream struct {
	out      *FFplayOutput
	location string
	cb       Callbacks

	mu        sync.Mutex
	cmd       *exec.Cmd
	gen       int // bumped on every start/stop so stale waiters can tell
	offset    time.Duration
	startedAt time.Time
	playing   bool
	closed    bool
}

func (s *ffplayStream) probe(ctx context.Context) {
	d, err := s.out.probe(context.WithoutCancel(ctx), s.location)
	if err != nil {
		logger.Debug("duration probe failed", logger.String("source", s.location), logger.ErrorField(err))
		return
	}
	if s.cb.OnDuration != nil {
		s.cb.OnDuration(d)
	}
}

func (s *ffplayStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if s.playing {
		return nil
	}
	return s.startLocked()
}

func (s *ffplayStream) startLocked() error {
	cmd := exec.Command(s.out.ffplayPath,
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(s.offset.Seconds(), 'f', 3, 64),
		s.location,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}

	s.gen++
	s.cmd = cmd
	s.startedAt = time.Now()
	s.playing = true

	gen := s.gen
	go s.wait(cmd, gen, &stderr)
	go s.report(gen)
	return nil
}

// stopLocked kills the running process, keeping the position.
func (s *ffplayStream) stopLocked() {
	if !s.playing {
		return
	}
	s.offset = s.positionLocked()
	s.playing = false
	s.gen++
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
}

func (s *ffplayStream) wait(cmd *exec.Cmd, gen int, stderr *bytes.Buffer) {
	err := cmd.Wait()

	s.mu.Lock()
	if s.gen != gen {
		// killed by Pause/Seek/Close
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.offset = s.positionLocked()
	s.cmd = nil
	s.mu.Unlock()

	if err != nil {
		logger.Warn("ffplay exited with error",
			logger.String("source", s.location),
			logger.String("stderr", strings.TrimSpace(stderr.String())),
			logger.ErrorField(err))
	}
	if s.cb.OnEnd != nil {
		s.cb.OnEnd()
	}
}

func (s *ffplayStream) report(gen int) {
	ticker := time.NewTicker(s.out.tick)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.gen != gen || !s.playing {
			s.mu.Unlock()
			return
		}
		pos := s.positionLocked()
		s.mu.Unlock()

		if s.cb.OnProgress != nil {
			s.cb.OnProgress(pos)
		}
	}
}

func (s *ffplayStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.stopLocked()
	return nil
}

func (s *ffplayStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if pos < 0 {
		pos = 0
	}
	if !s.playing {
		s.offset = pos
		return nil
	}
	s.stopLocked()
	s.offset = pos
	return s.startLocked()
}

func (s *ffplayStream) positionLocked() time.Duration {
	if !s.playing {
		return s.offset
	}
	return s.offset + time.Since(s.startedAt)
}

func (s *ffplayStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *ffplayStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.stopLocked()
	s.closed = true
	return nil
}
