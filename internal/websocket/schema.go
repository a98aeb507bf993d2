package websocket

import "github.com/ruangujian/asesmen-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionSignal   Action = "signal"
	ActionSubmit   Action = "submit"
	ActionExit     Action = "exit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest upserts the answer for one question. The runtime debounces
// persistence; every request is acknowledged with the autosave status.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// NavigateRequest moves the current-question cursor.
type NavigateRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// SignalRequest reports one environment event observed by the client.
type SignalRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
}

// SubmitRequest finalizes the session.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ExitRequest leaves the session without submitting; answers are flushed
// so the student can resume later.
type ExitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventViolation Event = "violation"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// SavedResponse reports the autosave status after an answer or a debounced
// flush cycle.
type SavedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// ViolationResponse reports a counted integrity violation and how many
// remain before forced submission.
type ViolationResponse struct {
	Event     Event  `json:"event"`
	Signal    string `json:"signal"`
	Count     int    `json:"count"`
	Remaining int    `json:"remaining"`
}

// SubmittedResponse reports a finalized session, whatever the trigger.
type SubmittedResponse struct {
	Event   Event                 `json:"event"`
	Trigger string                `json:"trigger"`
	Stats   model.SubmissionStats `json:"stats"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
