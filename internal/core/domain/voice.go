package domain

import "time"

// RecordingState is the microphone pipeline state
type RecordingState string

const (
	RecordingIdle         RecordingState = "idle"
	RecordingActive       RecordingState = "recording"
	RecordingTranscribing RecordingState = "transcribing"
)

// RecordingSession is a snapshot of the capture pipeline
type RecordingSession struct {
	State     RecordingState
	StartedAt time.Time
}

// PlaybackState is the speaker state
type PlaybackState string

const (
	PlaybackIdle     PlaybackState = "idle"
	PlaybackSpeaking PlaybackState = "speaking"
)

// PlaybackSession is a snapshot of the playback controller.
// MessageID identifies the answer being spoken.
type PlaybackSession struct {
	State     PlaybackState
	MessageID string
}

// Audio formats exchanged with speech providers
const (
	AudioFormatWAV = "wav"
	AudioFormatMP3 = "mp3"
	AudioFormatPCM = "pcm_s16le"
)

// AudioClip is an encoded piece of audio
type AudioClip struct {
	Data       []byte
	Format     string
	SampleRate int
}

// Empty reports whether the clip carries no audio
func (c *AudioClip) Empty() bool {
	return c == nil || len(c.Data) == 0
}
