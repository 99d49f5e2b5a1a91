package events

import "time"

// Type represents an emitted event type.
type Type string

const (
	RunStarted       Type = "RunStarted"
	RoundStarted     Type = "RoundStarted"
	ToolCallStarted  Type = "ToolCallStarted"
	ToolCallFinished Type = "ToolCallFinished"
	ToolCallFailed   Type = "ToolCallFailed"
	ModelDelta       Type = "ModelStreamingDelta"
	FinalAnswerReady Type = "FinalAnswerReady"
	RunFinished      Type = "RunFinished"
	RunError         Type = "RunError"
)

// Event is the common envelope for renderer events.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RunStartedPayload is emitted at the beginning of a run.
type RunStartedPayload struct {
	Version   string    `json:"version"`
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// RoundStartedPayload marks one model round trip.
type RoundStartedPayload struct {
	Round int `json:"round"`
}

// ToolCallStartedPayload marks tool call start.
type ToolCallStartedPayload struct {
	CallID    string    `json:"call_id"`
	ToolName  string    `json:"tool_name"`
	Input     any       `json:"input"`
	StartedAt time.Time `json:"started_at"`
}

// ToolCallFinishedPayload marks tool call end, success or failure.
type ToolCallFinishedPayload struct {
	CallID     string `json:"call_id"`
	ToolName   string `json:"tool_name"`
	Status     string `json:"status"`
	Output     any    `json:"output,omitempty"`
	Preview    string `json:"preview,omitempty"`
	ByteCount  int    `json:"byte_count"`
	Truncated  bool   `json:"truncated"`
	DurationMs int64  `json:"duration_ms"`
}

// ModelDeltaPayload is streamed as tokens arrive.
type ModelDeltaPayload struct {
	Delta string `json:"delta"`
}

// FinalAnswerPayload is emitted when the final answer is ready.
type FinalAnswerPayload struct {
	Answer string `json:"answer"`
}

// RunFinishedPayload closes the run.
type RunFinishedPayload struct {
	State      string    `json:"state"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunErrorPayload records a run error.
type RunErrorPayload struct {
	Message string `json:"message"`
}
