package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Orchestrator sequences a chat session: typed or transcribed questions go
// to the answer API one at a time, answers are appended to the transcript
// and optionally read aloud.
type Orchestrator struct {
	answerer      driven.Answerer
	recorder      *Recorder
	playback      *PlaybackController
	submitTimeout time.Duration
	onEvent       func(domain.ConversationEvent)
	now           func() time.Time
	logger        *slog.Logger

	mu          sync.Mutex
	state       domain.ConversationState
	transcript  []domain.Turn
	voiceOutput bool
	submits     uint64 // bumped by every Submit; stale auto-speech checks it
}

// OrchestratorConfig holds configuration for the orchestrator.
type OrchestratorConfig struct {
	Answerer      driven.Answerer
	Recorder      *Recorder           // Optional: voice input
	Playback      *PlaybackController // Optional: voice output
	VoiceOutput   bool                // Read answers aloud
	SubmitTimeout time.Duration       // default: 60s
	OnEvent       func(domain.ConversationEvent)
	Clock         func() time.Time
	Logger        *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		answerer:      cfg.Answerer,
		recorder:      cfg.Recorder,
		playback:      cfg.Playback,
		submitTimeout: timeout,
		onEvent:       cfg.OnEvent,
		now:           clock,
		logger:        logger,
		state:         domain.ConversationIdle,
		voiceOutput:   cfg.VoiceOutput && cfg.Playback != nil,
	}
}

// State returns the answer state
func (o *Orchestrator) State() domain.ConversationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transcript returns a copy of the answered turns in submission order
func (o *Orchestrator) Transcript() []domain.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Turn, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// SetVoiceOutput toggles reading answers aloud. Turning it off stops playback.
func (o *Orchestrator) SetVoiceOutput(enabled bool) {
	o.mu.Lock()
	o.voiceOutput = enabled && o.playback != nil
	o.mu.Unlock()
	if !enabled {
		o.StopSpeaking()
	}
}

// VoiceOutput reports whether answers are read aloud
func (o *Orchestrator) VoiceOutput() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voiceOutput
}

// Submit asks one question. Only one question may be in flight; the error
// kinds map to fixed messages through domain.UserMessage.
func (o *Orchestrator) Submit(ctx context.Context, question string) (*domain.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrInvalidInput
	}

	o.mu.Lock()
	if o.state == domain.ConversationAwaitingAnswer {
		o.mu.Unlock()
		return nil, domain.ErrSubmissionInFlight
	}
	o.state = domain.ConversationAwaitingAnswer
	o.submits++
	seq := o.submits
	o.mu.Unlock()
	o.emit(nil)

	o.StopSpeaking()

	turn, err := o.ask(ctx, question)

	o.mu.Lock()
	o.state = domain.ConversationIdle
	if err == nil {
		o.transcript = append(o.transcript, *turn)
	}
	speak := err == nil && o.voiceOutput
	o.mu.Unlock()
	o.emit(err)

	if err != nil {
		o.logger.Info("question not answered", "error", err)
		return nil, err
	}

	if speak {
		go o.autoSpeak(seq, turn)
	}
	return turn, nil
}

func (o *Orchestrator) ask(ctx context.Context, question string) (*domain.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, o.submitTimeout)
	defer cancel()

	askedAt := o.now()
	answer, err := o.answerer.Ask(ctx, question)
	if err != nil {
		if domain.ErrorCode(err) == domain.CodeInternal && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
		}
		return nil, err
	}

	return &domain.Turn{
		ID:         uuid.NewString(),
		Question:   question,
		Answer:     answer.Text,
		Sources:    answer.Sources,
		TokensUsed: answer.TokensUsed,
		AskedAt:    askedAt,
	}, nil
}

// StartRecording begins voice capture, stopping any playback first.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	if o.recorder == nil {
		return domain.ErrMicrophoneUnavailable
	}
	err := o.recorder.StartRecording(ctx)
	o.emit(err)
	return err
}

// StopRecording ends voice capture and returns the transcript for the user
// to review. It is never submitted automatically.
func (o *Orchestrator) StopRecording(ctx context.Context) (string, error) {
	if o.recorder == nil {
		return "", nil
	}
	text, err := o.recorder.StopRecording(ctx)
	o.emit(err)
	return text, err
}

// CancelRecording discards the current recording or transcription
func (o *Orchestrator) CancelRecording() {
	if o.recorder != nil {
		o.recorder.Cancel()
		o.emit(nil)
	}
}

// Speak reads a past answer aloud
func (o *Orchestrator) Speak(ctx context.Context, turnID string) error {
	if o.playback == nil {
		return domain.ErrPlaybackFailed
	}
	o.mu.Lock()
	var text string
	for _, t := range o.transcript {
		if t.ID == turnID {
			text = t.Answer
			break
		}
	}
	o.mu.Unlock()
	if text == "" {
		return domain.ErrNotFound
	}
	return o.speak(ctx, text, turnID)
}

// autoSpeak reads a fresh answer aloud unless the session has moved on:
// another question was submitted or voice capture started.
func (o *Orchestrator) autoSpeak(seq uint64, turn *domain.Turn) {
	o.mu.Lock()
	current := o.submits == seq && o.state == domain.ConversationIdle
	o.mu.Unlock()
	if !current {
		return
	}
	if err := o.speak(context.Background(), turn.Answer, turn.ID); err != nil {
		o.logger.Debug("answer not spoken", "turn_id", turn.ID, "error", err)
	}
}

// speak plays text unless the microphone is in use. The recorder state is
// checked again once playback has started, so a recording that began during
// synthesis still wins the audio device.
func (o *Orchestrator) speak(ctx context.Context, text, turnID string) error {
	if o.recorderBusy() {
		return domain.ErrRecorderBusy
	}
	if err := o.playback.Speak(ctx, text, turnID); err != nil {
		return err
	}
	if o.recorderBusy() {
		o.playback.Stop()
		return domain.ErrRecorderBusy
	}
	return nil
}

func (o *Orchestrator) recorderBusy() bool {
	return o.recorder != nil && o.recorder.Session().State != domain.RecordingIdle
}

// StopSpeaking silences playback. Idempotent.
func (o *Orchestrator) StopSpeaking() {
	if o.playback != nil {
		o.playback.Stop()
	}
}

func (o *Orchestrator) emit(err error) {
	if o.onEvent == nil {
		return
	}
	ev := domain.ConversationEvent{State: o.State(), Recording: domain.RecordingIdle, Err: err}
	if o.recorder != nil {
		ev.Recording = o.recorder.Session().State
	}
	if o.playback != nil {
		if s := o.playback.Session(); s.State == domain.PlaybackSpeaking {
			ev.Speaking = s.MessageID
		}
	}
	o.onEvent(ev)
}
