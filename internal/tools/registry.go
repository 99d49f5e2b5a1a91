package tools

import (
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

// ErrDuplicateTool is returned when a tool name is registered twice.
// Registration is reject-on-duplicate rather than last-write-wins so a
// misconfigured tool set fails loudly at startup instead of silently
// shadowing an earlier tool.
var ErrDuplicateTool = fmt.Errorf("tool already registered")

// Registry stores available tools. The schema list sent to the model
// preserves registration order, so ordering is stable across runs.
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry builds a registry from tools. Duplicate names are an error.
func NewRegistry(items ...Tool) (*Registry, error) {
	reg := &Registry{byName: map[string]Tool{}}
	for _, item := range items {
		if err := reg.Register(item); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a tool, rejecting duplicates.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.byName[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Resolve returns a tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Specs converts tool definitions to OpenAI tool schema, in
// registration order.
func (r *Registry) Specs() []openai.ChatCompletionToolUnionParam {
	defs := make([]openai.ChatCompletionToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		tool := r.byName[name]
		defs = append(defs, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        tool.Name(),
					Description: param.NewOpt(tool.Description()),
					Parameters:  tool.Schema(),
				},
			},
		})
	}
	return defs
}
