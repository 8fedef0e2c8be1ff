// Package audio captures and plays sound through the ffmpeg tool suite.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure Microphone implements the port
var _ driven.Microphone = (*Microphone)(nil)

const (
	// DefaultCaptureSampleRate is the rate speech providers expect
	DefaultCaptureSampleRate = 16000

	// DefaultMaxRecording bounds a single clip
	DefaultMaxRecording = 2 * time.Minute

	// DefaultStartupTimeout is how long Open waits for the first audio bytes
	DefaultStartupTimeout = 300 * time.Millisecond
)

// Microphone records 16-bit mono PCM from the system input device with ffmpeg
type Microphone struct {
	binary       string
	args         []string
	sampleRate   int
	maxRecording time.Duration
	startup      time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	active *capture
}

// MicrophoneConfig holds configuration for the microphone adapter
type MicrophoneConfig struct {
	Binary       string        // default: ffmpeg
	Args         []string      // default: pulse on linux, avfoundation on darwin
	SampleRate   int           // default: 16000
	MaxRecording time.Duration // default: 2 minutes

	// StartupTimeout bounds the wait for the first audio bytes. A process
	// that exits within it failed to open the device. Default: 300ms.
	StartupTimeout time.Duration
	Logger         *slog.Logger
}

// NewMicrophone creates a microphone adapter
func NewMicrophone(cfg MicrophoneConfig) *Microphone {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultCaptureSampleRate
	}
	maxRecording := cfg.MaxRecording
	if maxRecording <= 0 {
		maxRecording = DefaultMaxRecording
	}
	startup := cfg.StartupTimeout
	if startup <= 0 {
		startup = DefaultStartupTimeout
	}
	return &Microphone{
		binary:       binary,
		args:         cfg.Args,
		sampleRate:   sampleRate,
		maxRecording: maxRecording,
		startup:      startup,
		logger:       logger,
	}
}

// CaptureArgs returns the ffmpeg arguments that read the default input device
func CaptureArgs(goos string, sampleRate int) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "linux":
		input = []string{"-f", "pulse", "-i", "default"}
	default:
		return nil, fmt.Errorf("microphone capture is not supported on %s", goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args, "-ac", "1", "-ar", strconv.Itoa(sampleRate), "-f", "s16le", "-"), nil
}

// Open starts ffmpeg and begins buffering audio. Only one capture may be
// open at a time. It waits up to the startup timeout for audio so that a
// denied or missing input device fails here rather than at Finish.
func (m *Microphone) Open(ctx context.Context) (driven.AudioCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w: microphone already in use", domain.ErrMicrophoneUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, err)
	}

	path, err := exec.LookPath(m.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", domain.ErrMicrophoneUnavailable, m.binary)
	}

	args := m.args
	if len(args) == 0 {
		args, err = CaptureArgs(runtime.GOOS, m.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, err)
		}
	}

	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: open stdout: %v", domain.ErrMicrophoneUnavailable, err)
	}
	c := &capture{
		mic:      m,
		cmd:      cmd,
		maxBytes: int(m.maxRecording.Seconds() * float64(m.sampleRate) * bitsPerSample / 8),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	cmd.Stderr = &c.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrMicrophoneUnavailable, m.binary, err)
	}

	go c.read(stdout)

	timer := time.NewTimer(m.startup)
	defer timer.Stop()
	select {
	case <-c.started:
	case <-timer.C:
		// Silent so far but still running; Finish reports an empty clip.
	case <-c.done:
		if c.hasAudio() {
			break
		}
		c.stop()
		m.logger.Warn("microphone failed to start", "binary", m.binary, "error", c.failure())
		return nil, fmt.Errorf("%w: %s", domain.ErrMicrophoneUnavailable, c.failure())
	case <-ctx.Done():
		c.stop()
		return nil, fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, ctx.Err())
	}

	m.active = c
	m.logger.Debug("microphone opened", "binary", m.binary, "max_bytes", c.maxBytes)
	return c, nil
}

func (m *Microphone) release(c *capture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == c {
		m.active = nil
	}
}

// capture is one running ffmpeg process
type capture struct {
	mic      *Microphone
	cmd      *exec.Cmd
	maxBytes int
	stderr   bytes.Buffer

	mu        sync.Mutex
	pcm       bytes.Buffer
	readErr   error
	started   chan struct{} // closed on the first audio bytes
	startOnce sync.Once
	done      chan struct{}
	killOnce sync.Once
	waitOnce sync.Once
	closed   bool
}

// read buffers stdout until EOF or the recording bound
func (c *capture) read(r io.Reader) {
	defer close(c.done)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.startOnce.Do(func() { close(c.started) })
			c.mu.Lock()
			room := c.maxBytes - c.pcm.Len()
			if n > room {
				n = room
			}
			c.pcm.Write(buf[:n])
			full := c.pcm.Len() >= c.maxBytes
			c.mu.Unlock()
			if full {
				c.kill()
				_, _ = io.Copy(io.Discard, r)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// kill stops ffmpeg; the reader sees EOF once the process is gone
func (c *capture) kill() {
	c.killOnce.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	})
}

// stop kills ffmpeg, drains the reader and reaps the process
func (c *capture) stop() {
	c.kill()
	<-c.done
	c.waitOnce.Do(func() { _ = c.cmd.Wait() })
}

// Finish stops capturing and returns the buffered audio as WAV
func (c *capture) Finish() (*domain.AudioClip, error) {
	c.stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readErr != nil {
		return nil, fmt.Errorf("%w: read audio: %v", domain.ErrMicrophoneUnavailable, c.readErr)
	}
	if c.pcm.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMicrophoneUnavailable, c.failure())
	}
	return &domain.AudioClip{
		Data:       PCMToWAV(c.pcm.Bytes(), c.mic.sampleRate),
		Format:     domain.AudioFormatWAV,
		SampleRate: c.mic.sampleRate,
	}, nil
}

func (c *capture) hasAudio() bool {
	select {
	case <-c.started:
		return true
	default:
		return false
	}
}

// failure describes why no audio arrived. Only valid once the process is reaped.
func (c *capture) failure() string {
	if msg := strings.TrimSpace(c.stderr.String()); msg != "" {
		return msg
	}
	return "no audio captured"
}

// Close releases the device. Safe to call more than once.
func (c *capture) Close() error {
	c.stop()

	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()

	if !already {
		c.mic.release(c)
	}
	return nil
}
