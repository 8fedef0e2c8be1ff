package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure ElevenLabsSynthesizer implements Synthesizer
var _ driven.Synthesizer = (*ElevenLabsSynthesizer)(nil)

const (
	elevenLabsDefaultWSBase = "wss://api.elevenlabs.io"
	elevenLabsDefaultModel  = "eleven_flash_v2_5"
	elevenLabsDefaultVoice  = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsOutputFormat  = "pcm_24000"
	elevenLabsWriteTimeout  = 5 * time.Second
)

// ElevenLabsSynthesizer implements Synthesizer over the ElevenLabs
// stream-input websocket. Each call opens one connection, sends the whole
// text with a flush and collects audio frames until the final marker.
type ElevenLabsSynthesizer struct {
	apiKey  string
	wsBase  string
	model   string
	voiceID string
	dialer  *websocket.Dialer
}

// NewElevenLabsSynthesizer creates an ElevenLabs text-to-speech client
func NewElevenLabsSynthesizer(settings *domain.SpeechSettings) (*ElevenLabsSynthesizer, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	model := settings.Model
	if model == "" {
		model = elevenLabsDefaultModel
	}
	voiceID := settings.VoiceID
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	return &ElevenLabsSynthesizer{
		apiKey:  settings.APIKey,
		wsBase:  baseURLOrDefault(settings.BaseURL, elevenLabsDefaultWSBase),
		model:   model,
		voiceID: voiceID,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
	}, nil
}

// elevenLabsMessage is one server frame
type elevenLabsMessage struct {
	Audio        string `json:"audio"`
	IsFinal      *bool  `json:"isFinal"`
	IsFinalSnake *bool  `json:"is_final"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

func (m *elevenLabsMessage) final() bool {
	return (m.IsFinal != nil && *m.IsFinal) || (m.IsFinalSnake != nil && *m.IsFinalSnake)
}

// Synthesize renders text as raw 16-bit PCM at 24 kHz
func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (*domain.AudioClip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	wsURL, err := e.streamURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: ElevenLabs handshake failed with status %d: %v",
				domain.ErrPlaybackFailed, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: ElevenLabs dial failed: %v", domain.ErrPlaybackFailed, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, msg := range []map[string]any{
		{"text": " "},
		{"text": text + " "},
		{"text": "", "flush": true},
	} {
		_ = conn.SetWriteDeadline(time.Now().Add(elevenLabsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("%w: failed to send text: %v", domain.ErrPlaybackFailed, err)
		}
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, ctx.Err())
			}
			// The server may close normally right after the last frame.
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure && audio.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("%w: stream read failed: %v", domain.ErrPlaybackFailed, err)
		}

		var msg elevenLabsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("%w: ElevenLabs error: %s %s", domain.ErrPlaybackFailed, msg.Error, msg.Message)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid audio frame: %v", domain.ErrPlaybackFailed, err)
			}
			audio.Write(chunk)
		}
		if msg.final() {
			break
		}
	}

	if audio.Len() == 0 {
		return nil, fmt.Errorf("%w: empty audio stream", domain.ErrPlaybackFailed)
	}

	return &domain.AudioClip{
		Data:       audio.Bytes(),
		Format:     domain.AudioFormatPCM,
		SampleRate: DefaultSampleRate,
	}, nil
}

func (e *ElevenLabsSynthesizer) streamURL() (string, error) {
	u, err := url.Parse(e.wsBase)
	if err != nil {
		return "", fmt.Errorf("invalid ElevenLabs websocket URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https", "":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/text-to-speech/" + url.PathEscape(e.voiceID) + "/stream-input"

	q := u.Query()
	q.Set("model_id", e.model)
	q.Set("output_format", elevenLabsOutputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
