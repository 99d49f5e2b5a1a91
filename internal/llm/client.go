package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go/v3"
)

// ToolCall is the normalized shape of a model tool call, whether it
// arrived complete or was reassembled from streamed fragments. No
// downstream component sees provider-specific shapes.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response represents one model turn.
type Response struct {
	// ID is the provider response identifier, recorded as the session's
	// continuation cursor for providers that support resuming from it.
	ID        string
	Content   string
	ToolCalls []ToolCall
}

// Request is a simplified chat completion request.
type Request struct {
	Model      string
	Messages   []openai.ChatCompletionMessageParamUnion
	Tools      []openai.ChatCompletionToolUnionParam
	ToolChoice openai.ChatCompletionToolChoiceOptionUnionParam
	// PreviousResponseID carries the session's continuation cursor.
	// Providers without server-side state ignore it and rely on the
	// resent message history.
	PreviousResponseID string
}

// Client is an LLM client interface. Stream delivers text deltas through
// onDelta as they arrive and returns the fully assembled response,
// including tool calls reconstructed from argument fragments.
type Client interface {
	Create(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error)
}
