package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WeatherTool returns canned weather conditions. It exists to exercise
// the tool-calling path end to end without a paid weather API; swap the
// lookup table for a real client in production use.
type WeatherTool struct{}

// NewWeatherTool constructs the demo weather tool.
func NewWeatherTool() *WeatherTool { return &WeatherTool{} }

func (w *WeatherTool) Name() string { return "get_weather" }

func (w *WeatherTool) Description() string {
	return "Get current weather conditions for a location."
}

func (w *WeatherTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "City name",
			},
			"units": map[string]any{
				"type":        "string",
				"enum":        []string{"celsius", "fahrenheit"},
				"description": "Temperature units",
				"default":     "celsius",
			},
		},
		"required":             []string{"location"},
		"additionalProperties": false,
	}
}

type weatherInput struct {
	Location string `json:"location"`
	Units    string `json:"units"`
}

func (w *WeatherTool) Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error) {
	var args weatherInput
	if err := json.Unmarshal(input, &args); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(args.Location) == "" {
		return Result{}, errors.New("location is required")
	}
	if args.Units == "" {
		args.Units = "celsius"
	}

	temp := baseTemperature(args.Location)
	symbol := "°C"
	if args.Units == "fahrenheit" {
		temp = temp*9/5 + 32
		symbol = "°F"
	}

	payload := map[string]any{
		"location":    args.Location,
		"temperature": fmt.Sprintf("%.0f%s", temp, symbol),
		"conditions":  "Partly cloudy",
		"humidity":    "65%",
		"wind":        "10 km/h",
	}
	preview := fmt.Sprintf("%s: %.0f%s, partly cloudy", args.Location, temp, symbol)
	return Result{ToolName: w.Name(), Payload: payload, Preview: preview, ByteCount: len(preview)}, nil
}

func baseTemperature(location string) float64 {
	switch {
	case strings.Contains(strings.ToLower(location), "new york"):
		return 15
	case strings.Contains(strings.ToLower(location), "miami"):
		return 28
	case strings.Contains(strings.ToLower(location), "london"):
		return 12
	default:
		return 20
	}
}
