package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure Speaker implements the port
var _ driven.Speaker = (*Speaker)(nil)

// Speaker plays clips by piping them into ffplay
type Speaker struct {
	binary  string
	argsFor func(clip *domain.AudioClip) []string
	logger  *slog.Logger
}

// SpeakerConfig holds configuration for the speaker adapter
type SpeakerConfig struct {
	Binary  string                                // default: ffplay
	ArgsFor func(clip *domain.AudioClip) []string // default: PlaybackArgs
	Logger  *slog.Logger
}

// NewSpeaker creates a speaker adapter
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "ffplay"
	}
	argsFor := cfg.ArgsFor
	if argsFor == nil {
		argsFor = PlaybackArgs
	}
	return &Speaker{
		binary:  binary,
		argsFor: argsFor,
		logger:  logger,
	}
}

// PlaybackArgs returns the ffplay arguments for clip read from stdin.
// Raw PCM needs its layout spelled out; containers are probed.
func PlaybackArgs(clip *domain.AudioClip) []string {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	if clip.Format == domain.AudioFormatPCM {
		rate := clip.SampleRate
		if rate <= 0 {
			rate = 24000
		}
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(rate), "-ac", "1")
	}
	return append(args, "-i", "pipe:0")
}

// Play starts ffplay and feeds it the clip
func (s *Speaker) Play(ctx context.Context, clip *domain.AudioClip) (driven.Playback, error) {
	if clip.Empty() {
		return nil, fmt.Errorf("%w: empty clip", domain.ErrPlaybackFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, err)
	}

	path, err := exec.LookPath(s.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", domain.ErrPlaybackFailed, s.binary)
	}

	cmd := exec.Command(path, s.argsFor(clip)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: open stdin: %v", domain.ErrPlaybackFailed, err)
	}
	p := &playback{
		cmd:  cmd,
		done: make(chan error, 1),
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrPlaybackFailed, s.binary, err)
	}

	go func() {
		// A killed player closes the pipe; the write error is expected then.
		_, _ = io.Copy(stdin, bytes.NewReader(clip.Data))
		_ = stdin.Close()
	}()
	go p.wait(s.logger)
	return p, nil
}

// playback is one running ffplay process
type playback struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan error

	mu      sync.Mutex
	stopped bool
}

func (p *playback) wait(logger *slog.Logger) {
	err := p.cmd.Wait()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if err != nil && !stopped {
		msg := strings.TrimSpace(p.stderr.String())
		logger.Warn("playback exited with error", "error", err, "stderr", msg)
		p.done <- fmt.Errorf("%w: %v %s", domain.ErrPlaybackFailed, err, msg)
	}
	close(p.done)
}

// Stop kills the player. Safe to call more than once.
func (p *playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}

// Done yields the playback error, if any, then closes
func (p *playback) Done() <-chan error {
	return p.done
}
