package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockClient is a deterministic client for tests and offline demos. It
// walks a scripted sequence of responses; once the script is exhausted
// the last response repeats.
type MockClient struct {
	mu     sync.Mutex
	calls  int
	script []Response
}

// NewMockClient returns a mock with a two-round demo script: one round
// of tool calls, then a final text answer.
func NewMockClient() *MockClient {
	calcArgs, _ := json.Marshal(map[string]any{"expression": "42*17"})
	weatherArgs, _ := json.Marshal(map[string]any{"location": "New York", "units": "celsius"})
	return NewScriptedClient(
		Response{ID: "mock-resp-1", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "calculate", Arguments: calcArgs},
			{ID: "call_2", Name: "get_weather", Arguments: weatherArgs},
		}},
		Response{ID: "mock-resp-2", Content: "42*17 is 714, and it is currently 15°C and partly cloudy in New York."},
	)
}

// NewScriptedClient returns a mock that replays the given responses in
// order.
func NewScriptedClient(script ...Response) *MockClient {
	return &MockClient{script: script}
}

// Calls reports how many model calls the mock has served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) next() Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.script) == 0 {
		return Response{}
	}
	idx := m.calls - 1
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	return m.script[idx]
}

func (m *MockClient) Create(ctx context.Context, req Request) (Response, error) {
	return m.next(), nil
}

// Stream replays the same script, feeding content to onDelta in small
// chunks to mimic token-by-token arrival.
func (m *MockClient) Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error) {
	resp := m.next()
	if onDelta != nil && resp.Content != "" {
		const chunkSize = 12
		for i := 0; i < len(resp.Content); i += chunkSize {
			end := i + chunkSize
			if end > len(resp.Content) {
				end = len(resp.Content)
			}
			onDelta(resp.Content[i:end])
		}
	}
	return resp, nil
}
