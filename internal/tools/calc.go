package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// CalcTool evaluates arithmetic expressions with CEL, which gives a
// sandboxed evaluator with no access to variables or host functions.
type CalcTool struct {
	env *cel.Env
}

// NewCalcTool constructs the calculator tool.
func NewCalcTool() (*CalcTool, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &CalcTool{env: env}, nil
}

func (c *CalcTool) Name() string { return "calculate" }

func (c *CalcTool) Description() string {
	return "Evaluate a mathematical expression and return the numeric result."
}

func (c *CalcTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Mathematical expression to evaluate, e.g. \"2+2\" or \"(3*7.5)/2\"",
			},
		},
		"required":             []string{"expression"},
		"additionalProperties": false,
	}
}

type calcInput struct {
	Expression string `json:"expression"`
}

func (c *CalcTool) Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error) {
	var args calcInput
	if err := json.Unmarshal(input, &args); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(args.Expression) == "" {
		return Result{}, errors.New("expression is required")
	}

	value, err := c.eval(args.Expression)
	if err != nil {
		return Result{}, err
	}

	payload := map[string]any{"expression": args.Expression, "result": value}
	preview := fmt.Sprintf("%s = %g", args.Expression, value)
	return Result{ToolName: c.Name(), Payload: payload, Preview: preview, ByteCount: len(preview)}, nil
}

func (c *CalcTool) eval(expr string) (float64, error) {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return 0, fmt.Errorf("invalid expression: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		return 0, err
	}

	switch v := out.Value().(type) {
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expression did not produce a number (got %T)", out.Value())
	}
}
