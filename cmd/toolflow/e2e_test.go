package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCLIJSONOutput(t *testing.T) {
	cmd := exec.Command("go", "run", "./cmd/toolflow", "--json", "what is 42*17?")
	cmd.Env = append(os.Environ(), "TOOLFLOW_MOCK_LLM=1")
	wd, _ := os.Getwd()
	cmd.Dir = filepath.Dir(filepath.Dir(wd))

	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if payload["run_id"] == "" {
		t.Fatalf("expected run_id")
	}
	if payload["session_id"] == "" {
		t.Fatalf("expected session_id")
	}
	if payload["state"] != "terminal_text" {
		t.Fatalf("expected terminal_text, got %v", payload["state"])
	}
	if payload["final_answer"] == "" {
		t.Fatalf("expected final_answer")
	}
}
