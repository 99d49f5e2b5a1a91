package tools

import (
	"context"
	"encoding/json"
)

// Meta provides execution context to tools.
type Meta struct {
	TimeoutSeconds int
	MaxBytes       int
}

// Result is a structured tool execution result. Payload must be
// JSON-serializable; it is sent back to the model verbatim.
type Result struct {
	ToolName  string
	Payload   any
	Preview   string
	ByteCount int
	Truncated bool
}

// Tool describes a callable tool. Schema returns the JSON-schema
// parameter specification that is sent to the model and used to
// validate incoming arguments.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error)
}
