package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller may not act on behalf of another user
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI or speech provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrEmbeddingUnavailable indicates the embedding model could not produce a vector.
	// Retryable.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDimensionMismatch indicates an embedding vector does not match the corpus dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNoContentAvailable indicates retrieval found nothing to ground an answer on.
	// It is an expected outcome, not a fault.
	ErrNoContentAvailable = errors.New("no content available")

	// ErrRateLimited indicates the daily question quota is exhausted
	ErrRateLimited = errors.New("rate limited")

	// ErrGenerationUnavailable indicates the generation model failed
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrSubmissionInFlight indicates another question from the same user is being answered
	ErrSubmissionInFlight = errors.New("submission in flight")

	// ErrMicrophoneUnavailable indicates the microphone could not be acquired
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")

	// ErrTranscriptionFailed indicates speech-to-text failed or returned nothing
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrPlaybackFailed indicates synthesis or audio playback failed
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrRecorderBusy indicates the audio device is taken by voice capture: a
	// recording cannot start while transcribing, nor playback while recording
	ErrRecorderBusy = errors.New("recorder busy")
)

// RateLimitError carries the quota details of a rejected question.
// errors.Is(err, ErrRateLimited) holds for any *RateLimitError.
type RateLimitError struct {
	Limit   int
	Used    int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %d of %d questions used, resets at %s",
		e.Used, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Fixed user-facing messages. Raw provider or transport errors never reach the UI.
const (
	MessageRateLimited          = "You've reached today's question limit. Upgrade your plan or come back tomorrow."
	MessageNoContent            = "I couldn't find anything in the library that answers that. Try rephrasing your question."
	MessageGenerationFailed     = "I couldn't put an answer together right now. Please try again in a moment."
	MessageEmbeddingFailed      = "The search service is temporarily unavailable. Please try again in a moment."
	MessageSubmissionInFlight   = "Hang on, I'm still answering your last question."
	MessageInvalidQuestion      = "Please type a question first."
	MessageMicrophoneFailed     = "I couldn't access your microphone. Check the device and permissions."
	MessageTranscriptionFailed  = "I couldn't make out what you said. Please try again or type your question."
	MessagePlaybackFailed       = "Audio playback isn't available right now."
	MessageRecorderBusy         = "Finish or cancel your recording first."
	MessageUnauthorized         = "Please sign in again."
	MessageForbidden            = "You can only ask questions for your own account."
	MessageConfigurationProblem = "The service is misconfigured. Please contact support."
	MessageUnexpected           = "Something went wrong. Please try again."
)

// UserMessage maps an error to its fixed user-facing message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return MessageRateLimited
	case errors.Is(err, ErrNoContentAvailable):
		return MessageNoContent
	case errors.Is(err, ErrGenerationUnavailable):
		return MessageGenerationFailed
	case errors.Is(err, ErrEmbeddingUnavailable):
		return MessageEmbeddingFailed
	case errors.Is(err, ErrDimensionMismatch):
		return MessageConfigurationProblem
	case errors.Is(err, ErrSubmissionInFlight):
		return MessageSubmissionInFlight
	case errors.Is(err, ErrInvalidInput):
		return MessageInvalidQuestion
	case errors.Is(err, ErrMicrophoneUnavailable):
		return MessageMicrophoneFailed
	case errors.Is(err, ErrTranscriptionFailed):
		return MessageTranscriptionFailed
	case errors.Is(err, ErrPlaybackFailed):
		return MessagePlaybackFailed
	case errors.Is(err, ErrRecorderBusy):
		return MessageRecorderBusy
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return MessageUnauthorized
	case errors.Is(err, ErrForbidden):
		return MessageForbidden
	default:
		return MessageUnexpected
	}
}

// Error codes carried on the wire so clients can rebuild the taxonomy.
const (
	CodeRateLimited         = "rate_limited"
	CodeNoContent           = "no_content"
	CodeGenerationFailed    = "generation_unavailable"
	CodeEmbeddingFailed     = "embedding_unavailable"
	CodeDimensionMismatch   = "dimension_mismatch"
	CodeSubmissionInFlight  = "submission_in_flight"
	CodeInvalidInput        = "invalid_input"
	CodeTranscriptionFailed = "transcription_failed"
	CodePlaybackFailed      = "playback_failed"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal"
)

var codeErrors = map[string]error{
	CodeRateLimited:         ErrRateLimited,
	CodeNoContent:           ErrNoContentAvailable,
	CodeGenerationFailed:    ErrGenerationUnavailable,
	CodeEmbeddingFailed:     ErrEmbeddingUnavailable,
	CodeDimensionMismatch:   ErrDimensionMismatch,
	CodeSubmissionInFlight:  ErrSubmissionInFlight,
	CodeInvalidInput:        ErrInvalidInput,
	CodeTranscriptionFailed: ErrTranscriptionFailed,
	CodePlaybackFailed:      ErrPlaybackFailed,
	CodeUnauthorized:        ErrUnauthorized,
	CodeForbidden:           ErrForbidden,
	CodeNotFound:            ErrNotFound,
}

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	for _, code := range []string{
		CodeRateLimited, CodeNoContent, CodeGenerationFailed, CodeEmbeddingFailed,
		CodeDimensionMismatch, CodeSubmissionInFlight, CodeInvalidInput,
		CodeTranscriptionFailed, CodePlaybackFailed, CodeForbidden, CodeNotFound,
	} {
		if errors.Is(err, codeErrors[code]) {
			return code
		}
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
		return CodeUnauthorized
	}
	return CodeInternal
}

// ErrorFromCode returns the sentinel for a wire code, or nil when the code is unknown.
func ErrorFromCode(code string) error {
	return codeErrors[code]
}
