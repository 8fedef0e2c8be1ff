package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driving"
)

// maxRequestBytes bounds JSON bodies; audio arrives base64 encoded
const maxRequestBytes = 16 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error       string     `json:"error" example:"You've reached today's question limit."`
	Code        string     `json:"code" example:"rate_limited"`
	RateLimited bool       `json:"rateLimited,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Used        int        `json:"used,omitempty"`
	ResetAt     *time.Time `json:"resetAt,omitempty"`
	NoContent   bool       `json:"noContent,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// AskRequest is the body of POST /api/v1/ask
// @Description Question from the authenticated user
type AskRequest struct {
	Question string `json:"question" example:"Which city did Richie pick, Houston or Dallas?"`
	UserID   string `json:"userId,omitempty"`
}

// InteractionsResponse lists past interactions
type InteractionsResponse struct {
	Interactions []*domain.Interaction `json:"interactions"`
}

// TranscribeRequest is the body of POST /api/v1/voice/transcribe
type TranscribeRequest struct {
	Audio      string `json:"audio"` // base64
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// TranscribeResponse carries the recognized text
type TranscribeResponse struct {
	Transcript string `json:"transcript"`
}

// SpeakRequest is the body of POST /api/v1/voice/speak
type SpeakRequest struct {
	Text string `json:"text"`
}

// SpeakResponse carries synthesized audio
type SpeakResponse struct {
	Audio      string `json:"audio"` // base64
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "component", "postgres", "error", err)
			writeErrorCode(w, http.StatusServiceUnavailable, "database unavailable", domain.CodeInternal)
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "component", "redis", "error", err)
			writeErrorCode(w, http.StatusServiceUnavailable, "redis unavailable", domain.CodeInternal)
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Question endpoints

// handleAsk godoc
// @Summary      Ask a question
// @Description  Answers from the private corpus with numbered citations. Metered per UTC day.
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      AskRequest  true  "Question"
// @Success      200      {object}  domain.Answer
// @Failure      400      {object}  ErrorResponse  "Invalid question"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "userId does not match the token"
// @Failure      404      {object}  ErrorResponse  "No relevant content"
// @Failure      409      {object}  ErrorResponse  "Another question is being answered"
// @Failure      429      {object}  ErrorResponse  "Daily limit reached"
// @Failure      503      {object}  ErrorResponse  "Embedding or generation unavailable"
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req AskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID != "" && req.UserID != authCtx.UserID {
		writeDomainError(w, domain.ErrForbidden)
		return
	}

	answer, err := s.questionService.Ask(r.Context(), driving.AskRequest{
		UserID:   authCtx.UserID,
		Question: req.Question,
	})
	if err != nil {
		s.logFailure(r, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleUsage godoc
// @Summary      Get quota usage
// @Description  Returns the caller's tier and question count for the current UTC day
// @Tags         Questions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UsageStatus
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /usage [get]
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	status, err := s.questionService.Usage(r.Context(), authCtx.UserID)
	if err != nil {
		s.logFailure(r, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleListInteractions godoc
// @Summary      List past interactions
// @Description  Returns the caller's answered questions, newest first
// @Tags         Questions
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum results"  default(20)
// @Success      200    {object}  InteractionsResponse
// @Failure      400    {object}  ErrorResponse  "Invalid limit"
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Router       /interactions [get]
func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeErrorCode(w, http.StatusBadRequest, "limit must be between 1 and 100", domain.CodeInvalidInput)
			return
		}
		limit = n
	}

	interactions, err := s.questionService.History(r.Context(), authCtx.UserID, limit)
	if err != nil {
		s.logFailure(r, err)
		writeDomainError(w, err)
		return
	}
	if interactions == nil {
		interactions = []*domain.Interaction{}
	}

	writeJSON(w, http.StatusOK, InteractionsResponse{Interactions: interactions})
}

// Voice endpoints

// handleTranscribe godoc
// @Summary      Transcribe speech
// @Description  Converts a recorded clip to text
// @Tags         Voice
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      TranscribeRequest  true  "Base64 audio"
// @Success      200      {object}  TranscribeResponse
// @Failure      400      {object}  ErrorResponse  "Invalid audio"
// @Failure      422      {object}  ErrorResponse  "Transcription failed"
// @Router       /voice/transcribe [post]
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.speechService == nil {
		writeDomainError(w, domain.ErrTranscriptionFailed)
		return
	}

	var req TranscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "audio must be base64 encoded", domain.CodeInvalidInput)
		return
	}

	format := req.Format
	if format == "" {
		format = domain.AudioFormatWAV
	}
	text, err := s.speechService.Transcribe(r.Context(), &domain.AudioClip{
		Data:       data,
		Format:     format,
		SampleRate: req.SampleRate,
	})
	if err != nil {
		s.logFailure(r, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TranscribeResponse{Transcript: text})
}

// handleSpeak godoc
// @Summary      Synthesize speech
// @Description  Renders answer text as audio; citation markers are not spoken
// @Tags         Voice
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SpeakRequest  true  "Text"
// @Success      200      {object}  SpeakResponse
// @Failure      400      {object}  ErrorResponse  "Invalid text"
// @Failure      502      {object}  ErrorResponse  "Synthesis failed"
// @Router       /voice/speak [post]
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.speechService == nil {
		writeDomainError(w, domain.ErrPlaybackFailed)
		return
	}

	var req SpeakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	clip, err := s.speechService.Synthesize(r.Context(), req.Text)
	if err != nil {
		s.logFailure(r, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SpeakResponse{
		Audio:      base64.StdEncoding.EncodeToString(clip.Data),
		Format:     clip.Format,
		SampleRate: clip.SampleRate,
	})
}

// Helper functions

func (s *Server) logFailure(r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
		return
	}
	s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid request body", domain.CodeInvalidInput)
		return false
	}
	return true
}

// statusForError maps the domain taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNoContentAvailable), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTranscriptionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPlaybackFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes the fixed user-facing message for err. Raw
// provider errors never reach the body.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error: domain.UserMessage(err),
		Code:  domain.ErrorCode(err),
	}

	var rle *domain.RateLimitError
	if errors.As(err, &rle) {
		resetAt := rle.ResetAt.UTC()
		resp.RateLimited = true
		resp.Limit = rle.Limit
		resp.Used = rle.Used
		resp.ResetAt = &resetAt
	} else if errors.Is(err, domain.ErrRateLimited) {
		resp.RateLimited = true
	}
	if errors.Is(err, domain.ErrNoContentAvailable) {
		resp.NoContent = true
	}

	writeJSON(w, statusForError(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
