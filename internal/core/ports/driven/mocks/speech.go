package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var (
	_ driven.Transcriber = (*MockTranscriber)(nil)
	_ driven.Synthesizer = (*MockSynthesizer)(nil)
)

// MockTranscriber returns Text for every clip.
// When Gate is set, Transcribe waits for it to be closed or for ctx to end.
type MockTranscriber struct {
	mu    sync.Mutex
	clips []*domain.AudioClip

	Text string
	Err  error
	Gate chan struct{}
}

// NewMockTranscriber creates a MockTranscriber returning text
func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Text: text}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error) {
	m.mu.Lock()
	m.clips = append(m.clips, clip)
	gate, text, err := m.Gate, m.Text, m.Err
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Clips returns every clip received
func (m *MockTranscriber) Clips() []*domain.AudioClip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.AudioClip, len(m.clips))
	copy(out, m.clips)
	return out
}

// MockSynthesizer returns the text bytes as audio so playback can be traced
// back to the text that produced it. Gates delay specific texts.
type MockSynthesizer struct {
	mu    sync.Mutex
	texts []string
	gates map[string]chan struct{}

	Err error
}

// NewMockSynthesizer creates a new MockSynthesizer
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{gates: make(map[string]chan struct{})}
}

// Hold makes Synthesize(text) block until the returned func is called
func (m *MockSynthesizer) Hold(text string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gates[text] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (*domain.AudioClip, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	gate, err := m.gates[text], m.Err
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.AudioClip{Data: []byte(text), Format: domain.AudioFormatPCM, SampleRate: 24000}, nil
}

// Texts returns every text synthesized
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}
