package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// PlaybackController owns the speaker. At most one playback is active; a new
// Speak or a Stop ends the current one before anything else can play.
//
// Every Speak and Stop bumps a generation counter. A Speak whose synthesis
// returns after a newer Speak or Stop sees a stale generation and discards
// its audio.
type PlaybackController struct {
	synth   driven.Synthesizer
	speaker driven.Speaker
	onState func(domain.PlaybackSession)
	onError func(messageID string, err error)
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	session    domain.PlaybackSession
	active     driven.Playback
	cancel     context.CancelFunc // aborts the pending synthesis
}

// PlaybackConfig holds configuration for the playback controller.
type PlaybackConfig struct {
	Synthesizer driven.Synthesizer
	Speaker     driven.Speaker
	OnState     func(domain.PlaybackSession)      // Called with the controller locked
	OnError     func(messageID string, err error) // Non-fatal failures, wrapped in domain.ErrPlaybackFailed
	Logger      *slog.Logger
}

// NewPlaybackController creates a new PlaybackController.
func NewPlaybackController(cfg PlaybackConfig) *PlaybackController {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackController{
		synth:   cfg.Synthesizer,
		speaker: cfg.Speaker,
		onState: cfg.OnState,
		onError: cfg.OnError,
		logger:  logger,
		session: domain.PlaybackSession{State: domain.PlaybackIdle},
	}
}

// Session returns a snapshot of the playback state
func (c *PlaybackController) Session() domain.PlaybackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Speak stops any current playback, synthesizes text and plays it, tagged
// with messageID. It returns once playback has started, been superseded or
// failed. Failures are also reported through OnError.
func (c *PlaybackController) Speak(ctx context.Context, text, messageID string) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.stopLocked()
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.setSessionLocked(domain.PlaybackSession{State: domain.PlaybackSpeaking, MessageID: messageID})
	c.mu.Unlock()

	clip, err := c.synth.Synthesize(sctx, text)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded speech", "message_id", messageID)
		return nil
	}
	c.cancel = nil
	if err == nil && clip.Empty() {
		err = errors.New("no audio")
	}
	if err != nil {
		c.setSessionLocked(domain.PlaybackSession{State: domain.PlaybackIdle})
		c.mu.Unlock()
		return c.fail(messageID, fmt.Errorf("synthesize: %w", err))
	}

	pb, err := c.speaker.Play(ctx, clip)
	if err != nil {
		c.setSessionLocked(domain.PlaybackSession{State: domain.PlaybackIdle})
		c.mu.Unlock()
		return c.fail(messageID, fmt.Errorf("play: %w", err))
	}
	c.active = pb
	c.mu.Unlock()

	go c.watch(gen, messageID, pb)
	return nil
}

// Stop ends the current playback immediately. Idempotent.
func (c *PlaybackController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.generation++
}

// stopLocked halts the active playback before returning.
func (c *PlaybackController) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.active != nil {
		if err := c.active.Stop(); err != nil {
			c.logger.Warn("failed to stop playback", "error", err)
		}
		c.active = nil
	}
	c.setSessionLocked(domain.PlaybackSession{State: domain.PlaybackIdle})
}

// watch clears the session when playback ends on its own.
func (c *PlaybackController) watch(gen uint64, messageID string, pb driven.Playback) {
	err, _ := <-pb.Done()

	c.mu.Lock()
	current := gen == c.generation && c.active == pb
	if current {
		c.active = nil
		c.setSessionLocked(domain.PlaybackSession{State: domain.PlaybackIdle})
	}
	c.mu.Unlock()

	if current && err != nil {
		_ = c.fail(messageID, err)
	}
}

func (c *PlaybackController) fail(messageID string, err error) error {
	wrapped := fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, err)
	c.logger.Warn("playback failed", "message_id", messageID, "error", err)
	if c.onError != nil {
		c.onError(messageID, wrapped)
	}
	return wrapped
}

func (c *PlaybackController) setSessionLocked(s domain.PlaybackSession) {
	if c.session == s {
		return
	}
	c.session = s
	if c.onState != nil {
		c.onState(s)
	}
}
