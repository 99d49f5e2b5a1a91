package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"toolflow/internal/util"
)

// WebFetchTool performs an HTTP GET and returns the body text, capped by
// the configured byte limit.
type WebFetchTool struct {
	client *retryablehttp.Client
}

// NewWebFetchTool constructs the web fetch tool.
func NewWebFetchTool() *WebFetchTool {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &WebFetchTool{client: client}
}

func (w *WebFetchTool) Name() string { return "web_fetch" }

func (w *WebFetchTool) Description() string {
	return "Fetch a URL over HTTP GET and return the response body as text."
}

func (w *WebFetchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http(s) URL to fetch",
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}

type webFetchInput struct {
	URL string `json:"url"`
}

func (w *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error) {
	var args webFetchInput
	if err := json.Unmarshal(input, &args); err != nil {
		return Result{}, err
	}
	parsed, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Result{}, errors.New("url must be an absolute http(s) URL")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "toolflow/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	maxBytes := meta.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 30 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)+1))
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	text, truncated := util.TruncateBytes(string(body), maxBytes)
	payload := map[string]any{
		"url":       parsed.String(),
		"status":    resp.StatusCode,
		"body":      text,
		"truncated": truncated,
	}
	return Result{
		ToolName:  w.Name(),
		Payload:   payload,
		Preview:   util.Preview(text, 5, 400),
		ByteCount: len(text),
		Truncated: truncated,
	}, nil
}
