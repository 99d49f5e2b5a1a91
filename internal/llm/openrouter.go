package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"toolflow/internal/stream"
)

// OpenRouterClient implements Client against any OpenAI-compatible chat
// completions endpoint (OpenRouter, OpenAI, llama.cpp server, ...).
type OpenRouterClient struct {
	client openai.Client
}

// NewOpenRouterClient constructs a client with base URL and headers.
func NewOpenRouterClient(apiKey, baseURL, referer, title string) *OpenRouterClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", referer))
	}
	if title != "" {
		opts = append(opts, option.WithHeader("X-Title", title))
	}
	client := openai.NewClient(opts...)
	return &OpenRouterClient{client: client}
}

func (c *OpenRouterClient) params(req Request) openai.ChatCompletionNewParams {
	// Chat completions carry no server-side cursor; the full message
	// history in req.Messages stands in for req.PreviousResponseID.
	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    req.Messages,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		Temperature: param.NewOpt(0.2),
	}
}

func (c *OpenRouterClient) Create(ctx context.Context, req Request) (Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return Response{}, err
	}
	return parseChatCompletion(resp)
}

// Stream issues a streaming completion. Text deltas are forwarded to
// onDelta as they arrive; tool-call fragments are reassembled and
// returned with the final response. OpenAI keys fragments by choice
// index and only carries the call id on the first fragment, so the index
// is mapped back to the id before the accumulator sees it.
func (c *OpenRouterClient) Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error) {
	s := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))

	var builder strings.Builder
	var responseID string
	acc := stream.NewAccumulator()
	idByIndex := map[int64]string{}

	for s.Next() {
		chunk := s.Current()
		if chunk.ID != "" {
			responseID = chunk.ID
		}
		for _, choice := range chunk.Choices {
			if delta := choice.Delta.Content; delta != "" {
				builder.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				if tc.ID != "" {
					idByIndex[tc.Index] = tc.ID
				}
				acc.Add(stream.Fragment{
					CallID:    idByIndex[tc.Index],
					Name:      tc.Function.Name,
					ArgsChunk: tc.Function.Arguments,
				})
			}
		}
	}
	if err := s.Err(); err != nil {
		return Response{}, err
	}

	response := Response{ID: responseID, Content: builder.String()}
	for _, call := range acc.Finalize() {
		// Invalid calls keep their raw argument text; the execution
		// engine turns them into per-call failures.
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Args,
		})
	}
	return response, nil
}

func parseChatCompletion(resp *openai.ChatCompletion) (Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("empty response")
	}
	msg := resp.Choices[0].Message
	response := Response{ID: resp.ID, Content: msg.Content}
	for _, toolCall := range msg.ToolCalls {
		if toolCall.Type != "function" {
			continue
		}
		fn := toolCall.AsFunction()
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        fn.ID,
			Name:      fn.Function.Name,
			Arguments: json.RawMessage(fn.Function.Arguments),
		})
	}
	return response, nil
}
