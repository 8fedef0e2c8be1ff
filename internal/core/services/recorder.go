package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// PlaybackStopper silences any active playback
type PlaybackStopper interface {
	Stop()
}

// Recorder drives the capture pipeline idle -> recording -> transcribing -> idle.
// It owns the microphone handle while recording and never submits a transcript
// by itself.
type Recorder struct {
	mic         driven.Microphone
	transcriber driven.Transcriber
	playback    PlaybackStopper
	timeout     time.Duration
	onState     func(domain.RecordingState)
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	state     domain.RecordingState
	startedAt time.Time
	capture   driven.AudioCapture
	cancel    context.CancelFunc
}

// RecorderConfig holds configuration for the recorder.
type RecorderConfig struct {
	Microphone        driven.Microphone
	Transcriber       driven.Transcriber
	Playback          PlaybackStopper             // Optional: stopped before every recording
	TranscribeTimeout time.Duration               // default: 30s
	OnState           func(domain.RecordingState) // Called with the recorder locked; must not call back into it
	Clock             func() time.Time
	Logger            *slog.Logger
}

// NewRecorder creates a new Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.TranscribeTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		mic:         cfg.Microphone,
		transcriber: cfg.Transcriber,
		playback:    cfg.Playback,
		timeout:     timeout,
		onState:     cfg.OnState,
		now:         clock,
		logger:      logger,
		state:       domain.RecordingIdle,
	}
}

// Session returns a snapshot of the recorder state
func (r *Recorder) Session() domain.RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RecordingSession{State: r.state, StartedAt: r.startedAt}
}

// StartRecording stops playback and begins capturing.
// It is a no-op while already recording and fails with domain.ErrRecorderBusy
// while a clip is being transcribed.
func (r *Recorder) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case domain.RecordingActive:
		return nil
	case domain.RecordingTranscribing:
		return domain.ErrRecorderBusy
	}

	if r.playback != nil {
		r.playback.Stop()
	}

	capture, err := r.mic.Open(ctx)
	if err != nil {
		r.logger.Warn("microphone unavailable", "error", err)
		if errors.Is(err, domain.ErrMicrophoneUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrMicrophoneUnavailable, err)
	}

	r.capture = capture
	r.startedAt = r.now()
	r.setStateLocked(domain.RecordingActive)
	return nil
}

// StopRecording finalizes the clip, releases the microphone and returns the
// transcript. It returns "", nil when not recording. Failures and empty
// transcripts are domain.ErrTranscriptionFailed.
func (r *Recorder) StopRecording(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state != domain.RecordingActive {
		r.mu.Unlock()
		return "", nil
	}
	capture := r.capture
	r.capture = nil
	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancel = cancel
	r.setStateLocked(domain.RecordingTranscribing)
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		r.cancel = nil
		r.startedAt = time.Time{}
		r.setStateLocked(domain.RecordingIdle)
		r.mu.Unlock()
	}()

	clip, err := capture.Finish()
	if closeErr := capture.Close(); closeErr != nil {
		r.logger.Warn("failed to release microphone", "error", closeErr)
	}
	if errors.Is(err, domain.ErrMicrophoneUnavailable) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: finalize clip: %v", domain.ErrTranscriptionFailed, err)
	}
	if clip.Empty() {
		return "", fmt.Errorf("%w: no audio captured", domain.ErrTranscriptionFailed)
	}

	text, err := r.transcriber.Transcribe(tctx, clip)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptionFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

// Cancel discards a recording in progress or aborts an in-flight transcription.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case domain.RecordingActive:
		if err := r.capture.Close(); err != nil {
			r.logger.Warn("failed to release microphone", "error", err)
		}
		r.capture = nil
		r.startedAt = time.Time{}
		r.setStateLocked(domain.RecordingIdle)
	case domain.RecordingTranscribing:
		if r.cancel != nil {
			r.cancel()
		}
	}
}

func (r *Recorder) setStateLocked(state domain.RecordingState) {
	if r.state == state {
		return
	}
	r.state = state
	if r.onState != nil {
		r.onState(state)
	}
}
