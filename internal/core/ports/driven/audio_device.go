package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// Microphone opens exclusive audio captures
type Microphone interface {
	// Open acquires the input device and starts capturing.
	// Permission or device failures are reported as domain.ErrMicrophoneUnavailable.
	Open(ctx context.Context) (AudioCapture, error)
}

// AudioCapture is an owned handle on a running capture
type AudioCapture interface {
	// Finish stops capturing and returns the recorded clip
	Finish() (*domain.AudioClip, error)

	// Close releases the device. Safe to call more than once and after Finish.
	Close() error
}

// Speaker starts audio playback
type Speaker interface {
	Play(ctx context.Context, clip *domain.AudioClip) (Playback, error)
}

// Playback is an owned handle on a playing clip
type Playback interface {
	// Stop halts playback immediately. Safe to call more than once.
	Stop() error

	// Done is closed when playback ends; it yields the playback error, if any
	Done() <-chan error
}
