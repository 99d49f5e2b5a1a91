package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ClockTool reports the current time in a requested timezone.
type ClockTool struct {
	now func() time.Time
}

// NewClockTool constructs the current-time tool.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (c *ClockTool) Name() string { return "get_current_time" }

func (c *ClockTool) Description() string {
	return "Get the current time in a specified IANA timezone."
}

func (c *ClockTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name (e.g. UTC, America/New_York)",
				"default":     "UTC",
			},
		},
		"additionalProperties": false,
	}
}

type clockInput struct {
	Timezone string `json:"timezone"`
}

func (c *ClockTool) Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error) {
	var args clockInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return Result{}, err
		}
	}
	if args.Timezone == "" {
		args.Timezone = "UTC"
	}

	loc, err := time.LoadLocation(args.Timezone)
	if err != nil {
		return Result{}, fmt.Errorf("unknown timezone %q", args.Timezone)
	}

	now := c.now().In(loc)
	payload := map[string]any{
		"timezone": args.Timezone,
		"time":     now.Format("2006-01-02 15:04:05 MST"),
		"unix":     now.Unix(),
	}
	preview := now.Format("2006-01-02 15:04:05 MST")
	return Result{ToolName: c.Name(), Payload: payload, Preview: preview, ByteCount: len(preview)}, nil
}
