package domain

import "time"

// ConversationState is the client-side answer state
type ConversationState string

const (
	ConversationIdle           ConversationState = "idle"
	ConversationAwaitingAnswer ConversationState = "awaitingAnswer"
)

// Turn is one answered question in a chat transcript
type Turn struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Sources    []Citation `json:"sources"`
	TokensUsed int        `json:"tokensUsed"`
	AskedAt    time.Time  `json:"askedAt"`
}

// ConversationEvent is emitted on every observable state change
type ConversationEvent struct {
	State     ConversationState
	Recording RecordingState
	Speaking  string // message id being spoken, empty when silent
	Err       error
}
