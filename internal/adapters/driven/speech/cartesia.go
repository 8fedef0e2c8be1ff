package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure Cartesia adapters implement the speech ports
var (
	_ driven.Transcriber = (*CartesiaTranscriber)(nil)
	_ driven.Synthesizer = (*CartesiaSynthesizer)(nil)
)

const (
	cartesiaDefaultBaseURL = "https://api.cartesia.ai"
	cartesiaAPIVersion     = "2025-04-16"
	cartesiaSTTModel       = "ink-whisper"
	cartesiaTTSModel       = "sonic-3"
	cartesiaDefaultVoice   = "a0e99841-438c-4a64-b679-ae501e7d6091"

	// DefaultSampleRate is the PCM rate requested from synthesis providers
	DefaultSampleRate = 24000
)

// CartesiaTranscriber implements Transcriber using Cartesia's batch STT endpoint
type CartesiaTranscriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewCartesiaTranscriber creates a Cartesia speech-to-text client
func NewCartesiaTranscriber(settings *domain.SpeechSettings) (*CartesiaTranscriber, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("Cartesia API key is required")
	}
	model := settings.Model
	if model == "" {
		model = cartesiaSTTModel
	}
	return &CartesiaTranscriber{
		apiKey:  settings.APIKey,
		baseURL: baseURLOrDefault(settings.BaseURL, cartesiaDefaultBaseURL),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type cartesiaSTTResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the clip and returns the recognized text
func (c *CartesiaTranscriber) Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fmt.Errorf("%w: empty audio", domain.ErrInvalidInput)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio."+fileExtension(clip.Format))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	endpoint := c.baseURL + "/stt"
	// Raw PCM carries no header, so the encoding must be declared.
	if clip.Format == domain.AudioFormatPCM {
		q := url.Values{}
		q.Set("encoding", "pcm_s16le")
		if clip.SampleRate > 0 {
			q.Set("sample_rate", strconv.Itoa(clip.SampleRate))
		}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setHeaders(req)

	respBody, err := doSpeechRequest(c.client, req, domain.ErrTranscriptionFailed, "Cartesia")
	if err != nil {
		return "", err
	}

	var result cartesiaSTTResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", domain.ErrTranscriptionFailed, err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

func (c *CartesiaTranscriber) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)
}

// CartesiaSynthesizer implements Synthesizer using Cartesia's /tts/bytes endpoint
type CartesiaSynthesizer struct {
	apiKey     string
	baseURL    string
	model      string
	voiceID    string
	sampleRate int
	client     *http.Client
}

// NewCartesiaSynthesizer creates a Cartesia text-to-speech client
func NewCartesiaSynthesizer(settings *domain.SpeechSettings) (*CartesiaSynthesizer, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("Cartesia API key is required")
	}
	model := settings.Model
	if model == "" {
		model = cartesiaTTSModel
	}
	voiceID := settings.VoiceID
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	return &CartesiaSynthesizer{
		apiKey:     settings.APIKey,
		baseURL:    baseURLOrDefault(settings.BaseURL, cartesiaDefaultBaseURL),
		model:      model,
		voiceID:    voiceID,
		sampleRate: DefaultSampleRate,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type cartesiaTTSRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize renders text as raw 16-bit PCM
func (c *CartesiaSynthesizer) Synthesize(ctx context.Context, text string) (*domain.AudioClip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(cartesiaTTSRequest{
		ModelID:    c.model,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.sampleRate,
		},
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)

	audio, err := doSpeechRequest(c.client, req, domain.ErrPlaybackFailed, "Cartesia")
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", domain.ErrPlaybackFailed)
	}

	return &domain.AudioClip{
		Data:       audio,
		Format:     domain.AudioFormatPCM,
		SampleRate: c.sampleRate,
	}, nil
}

// doSpeechRequest executes req and returns the body of a 2xx response.
// Every failure wraps kind.
func doSpeechRequest(client *http.Client, req *http.Request, kind error, vendor string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", kind, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s API returned status %d: %s",
			kind, vendor, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}
	return body, nil
}

func baseURLOrDefault(base, def string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return def
	}
	return base
}

func fileExtension(format string) string {
	switch format {
	case domain.AudioFormatMP3:
		return "mp3"
	case domain.AudioFormatPCM:
		return "pcm"
	default:
		return "wav"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
