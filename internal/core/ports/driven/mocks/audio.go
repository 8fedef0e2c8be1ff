package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var (
	_ driven.Microphone   = (*MockMicrophone)(nil)
	_ driven.AudioCapture = (*MockCapture)(nil)
	_ driven.Speaker      = (*MockSpeaker)(nil)
	_ driven.Playback     = (*MockPlayback)(nil)
)

// MockMicrophone hands out MockCaptures and tracks how many are held
type MockMicrophone struct {
	mu     sync.Mutex
	opened int
	open   int

	// Err is returned by Open when set
	Err error
	// Clip is returned by every Finish
	Clip *domain.AudioClip
	// FinishErr is handed to every capture opened
	FinishErr error
}

// NewMockMicrophone creates a MockMicrophone producing a short WAV clip
func NewMockMicrophone() *MockMicrophone {
	return &MockMicrophone{
		Clip: &domain.AudioClip{Data: []byte("RIFFmock"), Format: domain.AudioFormatWAV, SampleRate: 16000},
	}
}

func (m *MockMicrophone) Open(ctx context.Context) (driven.AudioCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.opened++
	m.open++
	return &MockCapture{mic: m, clip: m.Clip, FinishErr: m.FinishErr}, nil
}

// Held returns the number of captures not yet closed
func (m *MockMicrophone) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Opened returns the total number of captures opened
func (m *MockMicrophone) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// MockCapture is a capture handle owned by its caller
type MockCapture struct {
	mic    *MockMicrophone
	clip   *domain.AudioClip
	once   sync.Once
	closed bool

	// FinishErr is returned by Finish when set
	FinishErr error
}

func (c *MockCapture) Finish() (*domain.AudioClip, error) {
	if c.FinishErr != nil {
		return nil, c.FinishErr
	}
	return c.clip, nil
}

func (c *MockCapture) Close() error {
	c.once.Do(func() {
		c.mic.mu.Lock()
		c.mic.open--
		c.mic.mu.Unlock()
		c.closed = true
	})
	return nil
}

// MockSpeaker plays clips instantly and records play/stop events by clip data
type MockSpeaker struct {
	mu        sync.Mutex
	events    []string
	active    map[*MockPlayback]struct{}
	maxActive int
	last      *MockPlayback

	// Err is returned by Play when set
	Err error
}

// NewMockSpeaker creates a new MockSpeaker
func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{active: make(map[*MockPlayback]struct{})}
}

func (s *MockSpeaker) Play(ctx context.Context, clip *domain.AudioClip) (driven.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	pb := &MockPlayback{speaker: s, label: string(clip.Data), done: make(chan error, 1)}
	s.active[pb] = struct{}{}
	if len(s.active) > s.maxActive {
		s.maxActive = len(s.active)
	}
	s.events = append(s.events, "play:"+pb.label)
	s.last = pb
	return pb, nil
}

// Events returns the ordered play/stop log
func (s *MockSpeaker) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// Active returns the number of playbacks currently playing
func (s *MockSpeaker) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// MaxActive returns the highest number of simultaneous playbacks seen
func (s *MockSpeaker) MaxActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// Last returns the most recent playback
func (s *MockSpeaker) Last() *MockPlayback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// MockPlayback ends when stopped or when the test calls Finish
type MockPlayback struct {
	speaker *MockSpeaker
	label   string
	once    sync.Once
	done    chan error
}

func (p *MockPlayback) Stop() error {
	p.end("stop:"+p.label, nil)
	return nil
}

func (p *MockPlayback) Done() <-chan error {
	return p.done
}

// Finish simulates playback reaching its natural end, or failing with err
func (p *MockPlayback) Finish(err error) {
	p.end("end:"+p.label, err)
}

func (p *MockPlayback) end(event string, err error) {
	p.once.Do(func() {
		p.speaker.mu.Lock()
		delete(p.speaker.active, p)
		p.speaker.events = append(p.speaker.events, event)
		p.speaker.mu.Unlock()
		if err != nil {
			p.done <- err
		}
		close(p.done)
	})
}
