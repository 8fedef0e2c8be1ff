package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

func cartesiaSettings(baseURL string) *domain.SpeechSettings {
	return &domain.SpeechSettings{
		Provider: domain.SpeechProviderCartesia,
		APIKey:   "ck-test",
		BaseURL:  baseURL,
	}
}

func TestCartesiaTranscriber_Transcribe(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt ")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stt", r.URL.Path)
		assert.Equal(t, "Bearer ck-test", r.Header.Get("Authorization"))
		assert.Equal(t, cartesiaAPIVersion, r.Header.Get("Cartesia-Version"))
		assert.Empty(t, r.URL.Query().Get("encoding"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ink-whisper", r.FormValue("model"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "audio.wav", header.Filename)
		got, _ := io.ReadAll(file)
		assert.Equal(t, wav, got)

		_, _ = w.Write([]byte(`{"text":"  What did Richie say about Houston?  "}`))
	}))
	defer server.Close()

	stt, err := NewCartesiaTranscriber(cartesiaSettings(server.URL))
	require.NoError(t, err)

	text, err := stt.Transcribe(context.Background(), &domain.AudioClip{Data: wav, Format: domain.AudioFormatWAV})
	require.NoError(t, err)
	assert.Equal(t, "What did Richie say about Houston?", text)
}

func TestCartesiaTranscriber_RawPCMDeclaresEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pcm_s16le", r.URL.Query().Get("encoding"))
		assert.Equal(t, "16000", r.URL.Query().Get("sample_rate"))
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	stt, err := NewCartesiaTranscriber(cartesiaSettings(server.URL))
	require.NoError(t, err)

	text, err := stt.Transcribe(context.Background(), &domain.AudioClip{
		Data: []byte{1, 2, 3, 4}, Format: domain.AudioFormatPCM, SampleRate: 16000,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestCartesiaTranscriber_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`},
		{"empty transcript", http.StatusOK, `{"text":"   "}`},
		{"malformed body", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			stt, err := NewCartesiaTranscriber(cartesiaSettings(server.URL))
			require.NoError(t, err)

			_, err = stt.Transcribe(context.Background(), &domain.AudioClip{Data: []byte("x"), Format: domain.AudioFormatWAV})
			assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
		})
	}
}

func TestCartesiaTranscriber_EmptyClip(t *testing.T) {
	stt, err := NewCartesiaTranscriber(cartesiaSettings("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = stt.Transcribe(context.Background(), &domain.AudioClip{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCartesiaSynthesizer_Synthesize(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/bytes", r.URL.Path)
		assert.Equal(t, cartesiaAPIVersion, r.Header.Get("Cartesia-Version"))

		var req cartesiaTTSRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonic-3", req.ModelID)
		assert.Equal(t, "Houston is in Texas.", req.Transcript)
		assert.Equal(t, cartesiaVoice{Mode: "id", ID: cartesiaDefaultVoice}, req.Voice)
		assert.Equal(t, "raw", req.OutputFormat.Container)
		assert.Equal(t, "pcm_s16le", req.OutputFormat.Encoding)
		assert.Equal(t, DefaultSampleRate, req.OutputFormat.SampleRate)

		_, _ = w.Write(pcm)
	}))
	defer server.Close()

	tts, err := NewCartesiaSynthesizer(cartesiaSettings(server.URL))
	require.NoError(t, err)

	clip, err := tts.Synthesize(context.Background(), "  Houston is in Texas.  ")
	require.NoError(t, err)
	assert.Equal(t, pcm, clip.Data)
	assert.Equal(t, domain.AudioFormatPCM, clip.Format)
	assert.Equal(t, DefaultSampleRate, clip.SampleRate)
}

func TestCartesiaSynthesizer_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tts, err := NewCartesiaSynthesizer(cartesiaSettings(server.URL))
	require.NoError(t, err)

	_, err = tts.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrPlaybackFailed)

	_, err = tts.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// elevenLabsServer upgrades the stream-input socket and hands every
// received text message to script, which writes the replies.
func elevenLabsServer(t *testing.T, script func(conn *websocket.Conn, received []map[string]any)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1/stream-input", r.URL.Path)
		assert.Equal(t, "xi-api-key-test", r.Header.Get("xi-api-key"))
		assert.Equal(t, "eleven_flash_v2_5", r.URL.Query().Get("model_id"))
		assert.Equal(t, "pcm_24000", r.URL.Query().Get("output_format"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var received []map[string]any
		for len(received) < 3 {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received = append(received, msg)
		}
		script(conn, received)
	}))
}

func elevenLabsSettings(serverURL string) *domain.SpeechSettings {
	return &domain.SpeechSettings{
		Provider: domain.SpeechProviderElevenLabs,
		APIKey:   "xi-api-key-test",
		BaseURL:  serverURL,
		VoiceID:  "voice-1",
	}
}

func TestElevenLabsSynthesizer_Synthesize(t *testing.T) {
	gotCh := make(chan []map[string]any, 1)
	server := elevenLabsServer(t, func(conn *websocket.Conn, received []map[string]any) {
		gotCh <- received
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{1, 2})})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{3, 4})})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
	})
	defer server.Close()

	tts, err := NewElevenLabsSynthesizer(elevenLabsSettings(server.URL))
	require.NoError(t, err)

	clip, err := tts.Synthesize(context.Background(), "Dallas is bigger.")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, clip.Data)
	assert.Equal(t, domain.AudioFormatPCM, clip.Format)
	assert.Equal(t, 24000, clip.SampleRate)

	got := <-gotCh
	require.Len(t, got, 3)
	assert.Equal(t, " ", got[0]["text"])
	assert.Equal(t, "Dallas is bigger. ", got[1]["text"])
	assert.Equal(t, "", got[2]["text"])
	assert.Equal(t, true, got[2]["flush"])
}

func TestElevenLabsSynthesizer_SnakeCaseFinal(t *testing.T) {
	server := elevenLabsServer(t, func(conn *websocket.Conn, _ []map[string]any) {
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{9})})
		_ = conn.WriteJSON(map[string]any{"is_final": true})
		// Hold the socket open; only the final marker may end the read loop.
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	tts, err := NewElevenLabsSynthesizer(elevenLabsSettings(server.URL))
	require.NoError(t, err)

	clip, err := tts.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, clip.Data)
}

func TestElevenLabsSynthesizer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script func(conn *websocket.Conn, _ []map[string]any)
	}{
		{
			name: "provider error frame",
			script: func(conn *websocket.Conn, _ []map[string]any) {
				_ = conn.WriteJSON(map[string]any{"error": "quota_exceeded", "message": "out of credits"})
			},
		},
		{
			name: "no audio before final",
			script: func(conn *websocket.Conn, _ []map[string]any) {
				_ = conn.WriteJSON(map[string]any{"isFinal": true})
			},
		},
		{
			name: "connection dropped",
			script: func(conn *websocket.Conn, _ []map[string]any) {
				_ = conn.Close()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := elevenLabsServer(t, tt.script)
			defer server.Close()

			tts, err := NewElevenLabsSynthesizer(elevenLabsSettings(server.URL))
			require.NoError(t, err)

			_, err = tts.Synthesize(context.Background(), "hello")
			assert.ErrorIs(t, err, domain.ErrPlaybackFailed)
		})
	}
}

func TestElevenLabsSynthesizer_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsSynthesizer(elevenLabsSettings(server.URL))
	require.NoError(t, err)

	_, err = tts.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrPlaybackFailed)
}

func TestElevenLabsSynthesizer_StreamURL(t *testing.T) {
	tts, err := NewElevenLabsSynthesizer(&domain.SpeechSettings{
		Provider: domain.SpeechProviderElevenLabs,
		APIKey:   "k",
	})
	require.NoError(t, err)

	got, err := tts.streamURL()
	require.NoError(t, err)
	assert.Equal(t,
		"wss://api.elevenlabs.io/v1/text-to-speech/21m00Tcm4TlvDq8ikWAM/stream-input?model_id=eleven_flash_v2_5&output_format=pcm_24000",
		got)
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	stt, err := f.CreateTranscriber(nil)
	require.NoError(t, err)
	assert.Nil(t, stt)

	stt, err = f.CreateTranscriber(&domain.SpeechSettings{Provider: domain.SpeechProviderCartesia, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &CartesiaTranscriber{}, stt)

	_, err = f.CreateTranscriber(&domain.SpeechSettings{Provider: domain.SpeechProviderElevenLabs, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	tts, err := f.CreateSynthesizer(&domain.SpeechSettings{Provider: domain.SpeechProviderElevenLabs, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ElevenLabsSynthesizer{}, tts)

	tts, err = f.CreateSynthesizer(&domain.SpeechSettings{Provider: domain.SpeechProviderCartesia})
	require.NoError(t, err)
	assert.Nil(t, tts)

	_, err = f.CreateSynthesizer(&domain.SpeechSettings{Provider: "polly", APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)
}
