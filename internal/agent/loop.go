package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"
	"go.uber.org/zap"

	"toolflow/internal/config"
	"toolflow/internal/engine"
	"toolflow/internal/events"
	"toolflow/internal/llm"
	"toolflow/internal/render"
	"toolflow/internal/session"
	"toolflow/internal/tools"
	"toolflow/internal/util"
	"toolflow/internal/version"
)

// State names the conversation loop's states. The terminal states are
// final for one run; the session stays open for later turns.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateTerminalText   State = "terminal_text"
	StateTerminalError  State = "terminal_error"
	StateRoundLimit     State = "round_limit_reached"
)

// RunResult captures one run for JSON output and auditing.
type RunResult struct {
	RunID       string           `json:"run_id"`
	SessionID   string           `json:"session_id"`
	StartedAt   time.Time        `json:"timestamp_start"`
	FinishedAt  time.Time        `json:"timestamp_end"`
	Message     string           `json:"message"`
	Model       string           `json:"model"`
	RoundsUsed  int              `json:"rounds_used"`
	State       State            `json:"state"`
	FinalAnswer string           `json:"final_answer"`
	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	Events      []events.Event   `json:"events"`
}

// ToolCallRecord records tool call history for one run.
type ToolCallRecord struct {
	CallID     string    `json:"call_id"`
	ToolName   string    `json:"tool_name"`
	Input      any       `json:"input"`
	Output     any       `json:"output"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Loop drives the model/tool round trips for one session at a time.
type Loop struct {
	client   llm.Client
	tools    *tools.Registry
	engine   *engine.Engine
	renderer render.Renderer
	logger   *zap.Logger
	cfg      config.Config
}

// NewLoop constructs a conversation loop.
func NewLoop(client llm.Client, registry *tools.Registry, eng *engine.Engine, renderer render.Renderer, logger *zap.Logger, cfg config.Config) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{client: client, tools: registry, engine: eng, renderer: renderer, logger: logger, cfg: cfg}
}

// Run processes one user message against the session: rounds of model
// calls and tool executions until the model answers in text, the model
// call fails, or the round budget runs out. The returned error is
// non-nil only for model call failures; hitting the round budget is an
// outcome, not an error.
func (l *Loop) Run(ctx context.Context, sess *session.Session, message string) (RunResult, error) {
	started := time.Now()
	result := RunResult{
		RunID:     uuid.NewString(),
		SessionID: sess.ID(),
		StartedAt: started,
		Message:   message,
		Model:     l.cfg.Model,
		State:     StateAwaitingModel,
	}

	emit := func(event events.Event) {
		result.Events = append(result.Events, event)
		if l.renderer != nil {
			l.renderer.Emit(event)
		}
	}

	emit(events.Event{Type: events.RunStarted, Timestamp: time.Now(), Payload: events.RunStartedPayload{
		Version:   version.Version,
		SessionID: sess.ID(),
		Model:     l.cfg.Model,
		RunID:     result.RunID,
		StartedAt: started,
	}})

	messages := l.seedMessages(sess, message)
	sess.AppendMessage("user", message)

	toolDefs := l.tools.Specs()
	toolChoice := openai.ChatCompletionToolChoiceOptionUnionParam{}
	if len(toolDefs) > 0 {
		toolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("auto")}
	}

	for result.RoundsUsed < l.cfg.MaxRounds {
		result.RoundsUsed++
		result.State = StateAwaitingModel
		emit(events.Event{Type: events.RoundStarted, Timestamp: time.Now(), Payload: events.RoundStartedPayload{Round: result.RoundsUsed}})

		req := llm.Request{
			Model:              l.cfg.Model,
			Messages:           messages,
			Tools:              toolDefs,
			ToolChoice:         toolChoice,
			PreviousResponseID: sess.LastResponseID(),
		}
		response, err := l.call(ctx, req, emit)
		if err != nil {
			l.logger.Error("model request failed", zap.Error(err), zap.Int("round", result.RoundsUsed))
			errText := fmt.Sprintf("model call failed: %v", err)
			emit(events.Event{Type: events.RunError, Timestamp: time.Now(), Payload: events.RunErrorPayload{Message: errText}})
			sess.AppendMessage("assistant", errText)
			result.State = StateTerminalError
			result.FinalAnswer = errText
			result.FinishedAt = time.Now()
			l.finish(&result, emit)
			return result, err
		}
		sess.SetLastResponseID(response.ID)

		if len(response.ToolCalls) == 0 {
			answer := strings.TrimSpace(response.Content)
			sess.AppendMessage("assistant", answer)
			result.State = StateTerminalText
			result.FinalAnswer = answer
			result.FinishedAt = time.Now()
			emit(events.Event{Type: events.FinalAnswerReady, Timestamp: time.Now(), Payload: events.FinalAnswerPayload{Answer: answer}})
			l.finish(&result, emit)
			return result, nil
		}

		result.State = StateExecutingTools
		messages = append(messages, assistantToolCallMessage(response.ToolCalls))
		messages = l.executeRound(ctx, sess, response.ToolCalls, messages, &result, emit)
	}

	// Round budget exhausted without a text answer. Surfaced as a
	// distinct outcome so the caller can decide whether to continue
	// with a fresh budget.
	answer := fmt.Sprintf("Round limit of %d reached after %d tool call(s) without a final answer.", l.cfg.MaxRounds, len(result.ToolCalls))
	sess.AppendMessage("assistant", answer)
	result.State = StateRoundLimit
	result.FinalAnswer = answer
	result.FinishedAt = time.Now()
	emit(events.Event{Type: events.FinalAnswerReady, Timestamp: time.Now(), Payload: events.FinalAnswerPayload{Answer: answer}})
	l.finish(&result, emit)
	return result, nil
}

// call dispatches to streaming or one-shot mode; both return the same
// normalized response shape.
func (l *Loop) call(ctx context.Context, req llm.Request, emit func(events.Event)) (llm.Response, error) {
	if !l.cfg.Stream {
		return l.client.Create(ctx, req)
	}
	return l.client.Stream(ctx, req, func(delta string) {
		emit(events.Event{Type: events.ModelDelta, Timestamp: time.Now(), Payload: events.ModelDeltaPayload{Delta: delta}})
	})
}

// executeRound fans the round's tool calls out to the engine, folds the
// results into the session audit log and the message history, and
// returns the extended message slice for the next round.
func (l *Loop) executeRound(ctx context.Context, sess *session.Session, calls []llm.ToolCall, messages []openai.ChatCompletionMessageParamUnion, result *RunResult, emit func(events.Event)) []openai.ChatCompletionMessageParamUnion {
	for _, call := range calls {
		emit(events.Event{Type: events.ToolCallStarted, Timestamp: time.Now(), Payload: events.ToolCallStartedPayload{
			CallID:    call.ID,
			ToolName:  call.Name,
			Input:     sanitizeInput(call.Arguments),
			StartedAt: time.Now(),
		}})
	}

	startedAt := time.Now()
	results := l.engine.ExecuteMany(ctx, calls)

	for i, res := range results {
		call := calls[i]
		input := sanitizeInput(call.Arguments)
		record := ToolCallRecord{
			CallID:     res.CallID,
			ToolName:   call.Name,
			Input:      input,
			Status:     "success",
			StartedAt:  startedAt,
			DurationMs: res.DurationMs,
		}

		var content string
		if res.OK {
			record.Output = res.Payload
			content = l.encodeToolPayload(res.Payload)
			emit(events.Event{Type: events.ToolCallFinished, Timestamp: time.Now(), Payload: events.ToolCallFinishedPayload{
				CallID:     res.CallID,
				ToolName:   call.Name,
				Status:     "success",
				Output:     res.Payload,
				Preview:    res.Preview,
				ByteCount:  len(content),
				Truncated:  res.Truncated,
				DurationMs: res.DurationMs,
			}})
		} else {
			failure := map[string]any{"error": res.Error, "kind": string(res.Kind)}
			record.Output = failure
			record.Status = "error"
			content = l.encodeToolPayload(failure)
			emit(events.Event{Type: events.ToolCallFailed, Timestamp: time.Now(), Payload: events.ToolCallFinishedPayload{
				CallID:     res.CallID,
				ToolName:   call.Name,
				Status:     "error",
				Preview:    res.Error,
				ByteCount:  len(res.Error),
				DurationMs: res.DurationMs,
			}})
		}

		result.ToolCalls = append(result.ToolCalls, record)
		sess.RecordToolCall(call.Name, input, record.Output)
		messages = append(messages, openai.ToolMessage(content, res.CallID))
	}
	return messages
}

func (l *Loop) finish(result *RunResult, emit func(events.Event)) {
	emit(events.Event{Type: events.RunFinished, Timestamp: time.Now(), Payload: events.RunFinishedPayload{
		State:      string(result.State),
		Rounds:     result.RoundsUsed,
		FinishedAt: result.FinishedAt,
	}})
}

// seedMessages rebuilds the model message slice from the session's
// stored history plus the new user message. Intra-round tool exchanges
// are not replayed; their outcomes live in the audit log and in the
// assistant answers that followed them.
func (l *Loop) seedMessages(sess *session.Session, message string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt()),
		openai.DeveloperMessage(developerPrompt(l.tools.Names())),
	}
	for _, msg := range sess.Messages() {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return append(messages, openai.UserMessage(message))
}

// encodeToolPayload marshals a result payload for the next model call,
// capping oversized payloads so a chatty tool cannot blow the context.
func (l *Loop) encodeToolPayload(payload any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded, _ = json.Marshal(map[string]any{"error": fmt.Sprintf("unserializable tool payload: %v", err)})
		return string(encoded)
	}
	maxBytes := l.cfg.ToolLimits.ResultMaxBytes
	if maxBytes <= 0 || len(encoded) <= maxBytes {
		return string(encoded)
	}
	capped, _ := json.Marshal(map[string]any{
		"truncated": true,
		"preview":   util.Preview(string(encoded), l.cfg.ToolLimits.PreviewLines, maxBytes),
	})
	return string(capped)
}

func assistantToolCallMessage(calls []llm.ToolCall) openai.ChatCompletionMessageParamUnion {
	toolCallParams := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, call := range calls {
		toolCallParams = append(toolCallParams, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
				Type: constant.Function("function"),
			},
		})
	}
	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCallParams}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func sanitizeInput(args json.RawMessage) any {
	if len(args) == 0 {
		return map[string]any{}
	}
	var data any
	if err := json.Unmarshal(args, &data); err != nil {
		return map[string]any{"raw": util.RedactSecrets(string(args))}
	}
	if encoded, err := json.Marshal(data); err == nil {
		return util.RedactSecrets(string(encoded))
	}
	return data
}
