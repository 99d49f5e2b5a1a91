// Package engine executes batches of tool calls on behalf of the
// conversation loop. Failures are returned as data, never as errors:
// one bad call must not abort its siblings or the turn.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"toolflow/internal/llm"
	"toolflow/internal/tools"
)

// FailureKind classifies a failed tool call.
type FailureKind string

const (
	FailureUnknownTool   FailureKind = "unknown_tool"
	FailureBadArguments  FailureKind = "argument_parse_error"
	FailureToolExecution FailureKind = "tool_execution_error"
	FailureCancelled     FailureKind = "cancelled"
)

// Result is the outcome of exactly one tool call. CallID always matches
// the originating request so callers can correlate after concurrent
// completion.
type Result struct {
	CallID     string      `json:"call_id"`
	ToolName   string      `json:"tool_name"`
	OK         bool        `json:"ok"`
	Kind       FailureKind `json:"failure_kind,omitempty"`
	Payload    any         `json:"payload,omitempty"`
	Error      string      `json:"error,omitempty"`
	Preview    string      `json:"-"`
	Truncated  bool        `json:"truncated,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Options tunes engine behavior.
type Options struct {
	MaxParallel    int
	CallTimeout    time.Duration
	ResultMaxBytes int
}

// Engine resolves and runs tool calls against a registry.
type Engine struct {
	registry *tools.Registry
	logger   *zap.Logger
	opts     Options
}

// New constructs an engine. Zero option fields fall back to defaults.
func New(registry *tools.Registry, logger *zap.Logger, opts Options) *Engine {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 5
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger, opts: opts}
}

// Execute runs a single tool call to completion.
func (e *Engine) Execute(ctx context.Context, call llm.ToolCall) Result {
	start := time.Now()
	result := e.run(ctx, call)
	result.DurationMs = time.Since(start).Milliseconds()
	if !result.OK {
		e.logger.Debug("tool call failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.String("kind", string(result.Kind)),
			zap.String("error", result.Error))
	}
	return result
}

// ExecuteMany runs the calls of one model turn concurrently, bounded by
// MaxParallel, and joins before returning. Result i corresponds to call
// i; completion order is not input order, which is why every result
// carries its call id.
func (e *Engine) ExecuteMany(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}
	if len(calls) == 1 {
		results[0] = e.Execute(ctx, calls[0])
		return results
	}

	sem := make(chan struct{}, e.opts.MaxParallel)
	var wg conc.WaitGroup
	for i, call := range calls {
		wg.Go(func() {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result{
					CallID:   call.ID,
					ToolName: call.Name,
					Kind:     FailureCancelled,
					Error:    ctx.Err().Error(),
				}
				return
			}
			results[i] = e.Execute(ctx, call)
		})
	}
	wg.Wait()
	return results
}

func (e *Engine) run(ctx context.Context, call llm.ToolCall) Result {
	result := Result{CallID: call.ID, ToolName: call.Name}

	tool, ok := e.registry.Resolve(call.Name)
	if !ok {
		result.Kind = FailureUnknownTool
		result.Error = fmt.Sprintf("unknown tool: %s", call.Name)
		return result
	}

	if err := tools.ValidateArgs(tool.Schema(), call.Arguments); err != nil {
		result.Kind = FailureBadArguments
		result.Error = err.Error()
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	res, err := e.invoke(callCtx, tool, call)
	if err != nil {
		result.Kind = FailureToolExecution
		result.Error = err.Error()
		return result
	}

	result.OK = true
	result.Payload = res.Payload
	result.Preview = res.Preview
	result.Truncated = res.Truncated
	return result
}

// invoke shields the engine from panicking tools.
func (e *Engine) invoke(ctx context.Context, tool tools.Tool, call llm.ToolCall) (res tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	meta := tools.Meta{
		TimeoutSeconds: int(e.opts.CallTimeout.Seconds()),
		MaxBytes:       e.opts.ResultMaxBytes,
	}
	return tool.Execute(ctx, call.Arguments, meta)
}
