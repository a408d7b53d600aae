package voice

import (
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"StemDeck/core/apperr"
	"StemDeck/logger"
)

// Microphone opens a raw capture stream: mono signed 16-bit little endian
// PCM at the pipeline's sample rate.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FFmpegMicrophone captures through an ffmpeg input device.
type FFmpegMicrophone struct {
	Path       string // ffmpeg binary
	Format     string // input format, e.g. pulse, alsa, avfoundation, dshow
	Device     string
	SampleRate int
}

func (m *FFmpegMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	path := m.Path
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, apperr.Wrap(err, apperr.Permission, "ffmpeg not found for microphone capture")
	}
	format, device := m.Format, m.Device
	if format == "" {
		format = "pulse"
	}
	if device == "" {
		device = "default"
	}
	rate := m.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "s16le",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Permission, "open microphone pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrap(err, apperr.Permission, "start microphone capture")
	}
	logger.Debug("microphone capture started", logger.String("format", format), logger.String("device", device))
	return &captureProcess{cmd: cmd, stdout: stdout}, nil
}

type captureProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (c *captureProcess) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

func (c *captureProcess) Close() error {
	c.once.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
	})
	return nil
}
