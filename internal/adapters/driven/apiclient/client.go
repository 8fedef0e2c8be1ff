// Package apiclient talks to the Ask Richie HTTP API on behalf of a chat client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure Client implements the ports a chat session needs
var (
	_ driven.Answerer    = (*Client)(nil)
	_ driven.Transcriber = (*Client)(nil)
	_ driven.Synthesizer = (*Client)(nil)
)

// ErrTransport indicates the API could not be reached or answered with
// something other than the documented error body
var ErrTransport = errors.New("api unreachable")

// Client is an authenticated HTTP client for the Ask Richie API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration // default: 90s
}

// New creates an API client
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type askRequest struct {
	Question string `json:"question"`
}

type errorBody struct {
	Error       string     `json:"error"`
	Code        string     `json:"code"`
	RateLimited bool       `json:"rateLimited"`
	Limit       int        `json:"limit"`
	Used        int        `json:"used"`
	ResetAt     *time.Time `json:"resetAt"`
	NoContent   bool       `json:"noContent"`
}

type interactionsResponse struct {
	Interactions []*domain.Interaction `json:"interactions"`
}

type transcribeRequest struct {
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakResponse struct {
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

// Ask submits a question and returns the cited answer
func (c *Client) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	var answer domain.Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/ask", askRequest{Question: question}, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Usage returns the caller's quota for today
func (c *Client) Usage(ctx context.Context) (*domain.UsageStatus, error) {
	var status domain.UsageStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/usage", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// History returns the caller's past interactions, newest first
func (c *Client) History(ctx context.Context, limit int) ([]*domain.Interaction, error) {
	path := "/api/v1/interactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp interactionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Interactions, nil
}

// Transcribe sends a clip to the server's speech proxy.
// Every failure is domain.ErrTranscriptionFailed.
func (c *Client) Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fmt.Errorf("%w: empty audio", domain.ErrTranscriptionFailed)
	}
	var resp transcribeResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/voice/transcribe", transcribeRequest{
		Audio:      base64.StdEncoding.EncodeToString(clip.Data),
		Format:     clip.Format,
		SampleRate: clip.SampleRate,
	}, &resp)
	if err != nil {
		return "", asKind(err, domain.ErrTranscriptionFailed)
	}
	text := strings.TrimSpace(resp.Transcript)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

// Synthesize asks the server's speech proxy to render text.
// Every failure is domain.ErrPlaybackFailed.
func (c *Client) Synthesize(ctx context.Context, text string) (*domain.AudioClip, error) {
	var resp speakResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/voice/speak", speakRequest{Text: text}, &resp); err != nil {
		return nil, asKind(err, domain.ErrPlaybackFailed)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audio encoding: %v", domain.ErrPlaybackFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", domain.ErrPlaybackFailed)
	}
	return &domain.AudioClip{Data: data, Format: resp.Format, SampleRate: resp.SampleRate}, nil
}

// do sends a JSON request and decodes a 2xx body into out. Error bodies are
// rebuilt into domain errors from their code.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: failed to parse response: %v", ErrTransport, err)
		}
	}
	return nil
}

// decodeError rebuilds the server's error taxonomy from a response body
func decodeError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Code == "" {
		return fmt.Errorf("%w: status %d", ErrTransport, status)
	}

	if eb.Code == domain.CodeRateLimited || eb.RateLimited {
		rle := &domain.RateLimitError{Limit: eb.Limit, Used: eb.Used}
		if eb.ResetAt != nil {
			rle.ResetAt = eb.ResetAt.UTC()
		}
		return rle
	}

	sentinel := domain.ErrorFromCode(eb.Code)
	if sentinel == nil {
		return fmt.Errorf("%w: status %d: %s", ErrTransport, status, eb.Error)
	}
	return fmt.Errorf("%w: status %d", sentinel, status)
}

// asKind keeps err when it already matches kind and wraps it otherwise
func asKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
