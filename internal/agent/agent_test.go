package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"toolflow/internal/config"
	"toolflow/internal/engine"
	"toolflow/internal/events"
	"toolflow/internal/llm"
	"toolflow/internal/session"
	"toolflow/internal/tools"

	"go.uber.org/zap"
)

type failingClient struct{}

func (failingClient) Create(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, errors.New("connection refused")
}

func (failingClient) Stream(ctx context.Context, req llm.Request, onDelta func(string)) (llm.Response, error) {
	return llm.Response{}, errors.New("connection refused")
}

func testConfig() config.Config {
	return config.Config{
		Model:            config.DefaultModel,
		MaxRounds:        4,
		MaxParallelTools: 2,
		ToolTimeout:      5 * time.Second,
		ToolLimits:       config.ToolLimits{ResultMaxBytes: 4096, PreviewLines: 3},
	}
}

func newTestLoop(t *testing.T, client llm.Client, cfg config.Config) (*Loop, *session.Store) {
	t.Helper()
	calc, err := tools.NewCalcTool()
	if err != nil {
		t.Fatalf("calc tool: %v", err)
	}
	registry, err := tools.NewRegistry(calc, tools.NewWeatherTool())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	logger := zap.NewNop()
	eng := engine.New(registry, logger, engine.Options{MaxParallel: cfg.MaxParallelTools, CallTimeout: cfg.ToolTimeout})
	return NewLoop(client, registry, eng, nil, logger, cfg), session.NewStore(0, logger)
}

func TestRunWithMockClient(t *testing.T) {
	loop, store := newTestLoop(t, llm.NewMockClient(), testConfig())
	sess := store.GetOrCreate("s1")

	result, err := loop.Run(context.Background(), sess, "what is 42*17 and the weather in New York?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateTerminalText {
		t.Fatalf("expected terminal_text, got %s", result.State)
	}
	if result.FinalAnswer == "" {
		t.Fatalf("expected a final answer")
	}
	if result.RoundsUsed != 2 {
		t.Fatalf("expected 2 rounds, got %d", result.RoundsUsed)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool call records, got %d", len(result.ToolCalls))
	}
	for _, record := range result.ToolCalls {
		if record.Status != "success" {
			t.Fatalf("tool %s failed: %+v", record.ToolName, record.Output)
		}
		if record.CallID == "" {
			t.Fatalf("tool call record missing call id")
		}
	}
	if len(sess.ToolCalls()) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(sess.ToolCalls()))
	}
	msgs := sess.Messages()
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected session history: %+v", msgs)
	}
}

func TestTextOnlyRunTakesOneRound(t *testing.T) {
	client := llm.NewScriptedClient(llm.Response{ID: "r1", Content: "Paris is the capital of France."})
	loop, store := newTestLoop(t, client, testConfig())

	result, err := loop.Run(context.Background(), store.GetOrCreate("s1"), "capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateTerminalText {
		t.Fatalf("expected terminal_text, got %s", result.State)
	}
	if result.RoundsUsed != 1 {
		t.Fatalf("expected exactly 1 round, got %d", result.RoundsUsed)
	}
	if len(result.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(result.ToolCalls))
	}
}

func TestRoundLimitIsExactAndNotAnError(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"expression": "1+1"})
	client := llm.NewScriptedClient(llm.Response{ToolCalls: []llm.ToolCall{
		{ID: "c1", Name: "calculate", Arguments: args},
	}})
	cfg := testConfig()
	cfg.MaxRounds = 3
	loop, store := newTestLoop(t, client, cfg)

	result, err := loop.Run(context.Background(), store.GetOrCreate("s1"), "loop forever")
	if err != nil {
		t.Fatalf("hitting the round budget must not be an error, got: %v", err)
	}
	if result.State != StateRoundLimit {
		t.Fatalf("expected round_limit_reached, got %s", result.State)
	}
	if result.RoundsUsed != 3 {
		t.Fatalf("expected exactly 3 rounds, got %d", result.RoundsUsed)
	}
	if client.Calls() != 3 {
		t.Fatalf("expected exactly 3 model calls, got %d", client.Calls())
	}
	if result.FinalAnswer == "" {
		t.Fatalf("expected a visible round limit message")
	}
}

func TestModelFailureIsTerminal(t *testing.T) {
	loop, store := newTestLoop(t, failingClient{}, testConfig())

	result, err := loop.Run(context.Background(), store.GetOrCreate("s1"), "hello")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if result.State != StateTerminalError {
		t.Fatalf("expected terminal_error, got %s", result.State)
	}
	if result.FinalAnswer == "" {
		t.Fatalf("expected the failure surfaced as the visible response")
	}
}

func TestToolFailuresDoNotAbortTheRun(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Response{ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "calculate", Arguments: json.RawMessage(`{"expression": "1/0"}`)},
			{ID: "c2", Name: "no_such_tool", Arguments: json.RawMessage(`{}`)},
		}},
		llm.Response{Content: "Division by zero is undefined."},
	)
	loop, store := newTestLoop(t, client, testConfig())

	result, err := loop.Run(context.Background(), store.GetOrCreate("s1"), "what is 1/0?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateTerminalText {
		t.Fatalf("expected the run to recover, got %s", result.State)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected both failures recorded, got %d", len(result.ToolCalls))
	}
	for _, record := range result.ToolCalls {
		if record.Status != "error" {
			t.Fatalf("expected error status for call %s", record.CallID)
		}
	}
}

func TestStreamingEmitsDeltaEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Stream = true
	client := llm.NewScriptedClient(llm.Response{Content: "streamed final answer over several chunks"})
	loop, store := newTestLoop(t, client, cfg)

	result, err := loop.Run(context.Background(), store.GetOrCreate("s1"), "stream please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deltas := 0
	for _, ev := range result.Events {
		if ev.Type == events.ModelDelta {
			deltas++
		}
	}
	if deltas < 2 {
		t.Fatalf("expected several delta events, got %d", deltas)
	}
	if result.FinalAnswer != "streamed final answer over several chunks" {
		t.Fatalf("unexpected final answer: %q", result.FinalAnswer)
	}
}

func TestSecondTurnSeesPriorHistory(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Response{Content: "first answer"},
		llm.Response{Content: "second answer"},
	)
	loop, store := newTestLoop(t, client, testConfig())
	sess := store.GetOrCreate("s1")

	if _, err := loop.Run(context.Background(), sess, "first question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := loop.Run(context.Background(), sess, "second question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := sess.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages across two turns, got %d", len(msgs))
	}
	if msgs[2].Content != "second question" || msgs[3].Content != "second answer" {
		t.Fatalf("unexpected history ordering: %+v", msgs)
	}
}
