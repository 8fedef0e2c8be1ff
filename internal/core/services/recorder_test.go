package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven/mocks"
)

type stopCounter struct {
	mu    sync.Mutex
	stops int
}

func (s *stopCounter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *stopCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type recorderFixture struct {
	rec         *Recorder
	mic         *mocks.MockMicrophone
	transcriber *mocks.MockTranscriber
	playback    *stopCounter

	mu     sync.Mutex
	states []domain.RecordingState
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	f := &recorderFixture{
		mic:         mocks.NewMockMicrophone(),
		transcriber: mocks.NewMockTranscriber("What is cap rate?"),
		playback:    &stopCounter{},
	}
	f.rec = NewRecorder(RecorderConfig{
		Microphone:        f.mic,
		Transcriber:       f.transcriber,
		Playback:          f.playback,
		TranscribeTimeout: time.Second,
		OnState: func(s domain.RecordingState) {
			f.mu.Lock()
			f.states = append(f.states, s)
			f.mu.Unlock()
		},
	})
	return f
}

func (f *recorderFixture) seen() []domain.RecordingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RecordingState(nil), f.states...)
}

func TestRecorder_RecordAndTranscribe(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	assert.Equal(t, domain.RecordingActive, f.rec.Session().State)
	assert.False(t, f.rec.Session().StartedAt.IsZero())
	assert.Equal(t, 1, f.playback.count(), "playback is stopped before recording")
	assert.Equal(t, 1, f.mic.Held())

	text, err := f.rec.StopRecording(ctx)

	require.NoError(t, err)
	assert.Equal(t, "What is cap rate?", text)
	assert.Equal(t, 0, f.mic.Held(), "microphone released")
	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
	assert.Equal(t, []domain.RecordingState{
		domain.RecordingActive, domain.RecordingTranscribing, domain.RecordingIdle,
	}, f.seen())
}

func TestRecorder_StartWhileRecordingIsNoop(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	require.NoError(t, f.rec.StartRecording(ctx))

	assert.Equal(t, 1, f.mic.Opened())
}

func TestRecorder_StopWhenIdle(t *testing.T) {
	f := newRecorderFixture(t)

	text, err := f.rec.StopRecording(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, f.transcriber.Clips())
}

func TestRecorder_BusyWhileTranscribing(t *testing.T) {
	f := newRecorderFixture(t)
	gate := make(chan struct{})
	f.transcriber.Gate = gate
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	done := make(chan string, 1)
	go func() {
		text, _ := f.rec.StopRecording(ctx)
		done <- text
	}()

	require.Eventually(t, func() bool {
		return f.rec.Session().State == domain.RecordingTranscribing
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.rec.StartRecording(ctx), domain.ErrRecorderBusy)

	close(gate)
	assert.Equal(t, "What is cap rate?", <-done)
	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
}

func TestRecorder_MicrophoneUnavailable(t *testing.T) {
	f := newRecorderFixture(t)
	f.mic.Err = errors.New("device busy")

	err := f.rec.StartRecording(context.Background())

	assert.ErrorIs(t, err, domain.ErrMicrophoneUnavailable)
	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
}

func TestRecorder_DeviceFailureKeepsKind(t *testing.T) {
	f := newRecorderFixture(t)
	f.mic.FinishErr = fmt.Errorf("%w: default: Permission denied", domain.ErrMicrophoneUnavailable)
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	_, err := f.rec.StopRecording(ctx)

	assert.ErrorIs(t, err, domain.ErrMicrophoneUnavailable)
	assert.NotErrorIs(t, err, domain.ErrTranscriptionFailed)
	assert.Equal(t, domain.MessageMicrophoneFailed, domain.UserMessage(err))
	assert.Empty(t, f.transcriber.Clips())
	assert.Equal(t, 0, f.mic.Held())
	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
}

func TestRecorder_TranscriptionFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *recorderFixture)
	}{
		{"provider error", func(f *recorderFixture) { f.transcriber.Err = errors.New("503") }},
		{"empty transcript", func(f *recorderFixture) { f.transcriber.Text = "  " }},
		{"no audio", func(f *recorderFixture) { f.mic.Clip = &domain.AudioClip{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRecorderFixture(t)
			tt.setup(f)
			ctx := context.Background()

			require.NoError(t, f.rec.StartRecording(ctx))
			_, err := f.rec.StopRecording(ctx)

			assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
			assert.Equal(t, 0, f.mic.Held())
			assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
		})
	}
}

func TestRecorder_TranscriptionTimeout(t *testing.T) {
	f := newRecorderFixture(t)
	f.transcriber.Gate = make(chan struct{})
	f.rec.timeout = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	_, err := f.rec.StopRecording(ctx)

	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
}

func TestRecorder_Cancel(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.StartRecording(ctx))
	f.rec.Cancel()

	assert.Equal(t, domain.RecordingIdle, f.rec.Session().State)
	assert.Equal(t, 0, f.mic.Held())
	assert.Empty(t, f.transcriber.Clips())

	// Cancelling an in-flight transcription unblocks StopRecording.
	f.transcriber.Gate = make(chan struct{})
	require.NoError(t, f.rec.StartRecording(ctx))
	errCh := make(chan error, 1)
	go func() {
		_, err := f.rec.StopRecording(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return f.rec.Session().State == domain.RecordingTranscribing
	}, time.Second, 5*time.Millisecond)

	f.rec.Cancel()
	assert.ErrorIs(t, <-errCh, domain.ErrTranscriptionFailed)
}
