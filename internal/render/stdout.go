package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"toolflow/internal/events"
)

// StdoutRenderer streams events to a plain text writer.
type StdoutRenderer struct {
	w                  io.Writer
	mu                 sync.Mutex
	verbose            bool
	quiet              bool
	printedFinalHeader bool
	sawDelta           bool
	endedWithNewline   bool
}

// NewStdoutRenderer creates a renderer for plain text streaming.
func NewStdoutRenderer(w io.Writer, verbose bool, quiet bool) *StdoutRenderer {
	return &StdoutRenderer{w: w, verbose: verbose, quiet: quiet}
}

func (r *StdoutRenderer) Emit(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case events.RunStarted:
		if payload, ok := event.Payload.(events.RunStartedPayload); ok {
			if r.quiet {
				return
			}
			fmt.Fprintf(r.w, "toolflow v%s | session: %s | model: %s | run: %s\n", payload.Version, payload.SessionID, payload.Model, payload.RunID)
		}
	case events.RoundStarted:
		if payload, ok := event.Payload.(events.RoundStartedPayload); ok {
			if r.quiet || !r.verbose {
				return
			}
			fmt.Fprintf(r.w, "round %d\n", payload.Round)
		}
	case events.ToolCallStarted:
		if payload, ok := event.Payload.(events.ToolCallStartedPayload); ok {
			if r.quiet || !r.verbose {
				return
			}
			fmt.Fprintf(r.w, "tool: %s start (%s)\n", payload.ToolName, payload.CallID)
			fmt.Fprintf(r.w, "input: %v\n", payload.Input)
		}
	case events.ToolCallFinished, events.ToolCallFailed:
		if payload, ok := event.Payload.(events.ToolCallFinishedPayload); ok {
			if r.quiet {
				return
			}
			status := payload.Status
			if status == "success" {
				status = "ok"
			} else {
				status = "err"
			}
			trunc := ""
			if payload.Truncated {
				trunc = ", truncated"
			}
			fmt.Fprintf(r.w, "tool: %s %s (%dms, %d bytes%s)\n", payload.ToolName, status, payload.DurationMs, payload.ByteCount, trunc)
			if r.verbose && payload.Preview != "" {
				fmt.Fprintln(r.w, "preview:")
				for _, line := range strings.Split(payload.Preview, "\n") {
					fmt.Fprintf(r.w, "  %s\n", line)
				}
			}
		}
	case events.ModelDelta:
		if payload, ok := event.Payload.(events.ModelDeltaPayload); ok {
			if !r.printedFinalHeader {
				fmt.Fprint(r.w, "assistant: ")
				r.printedFinalHeader = true
			}
			if payload.Delta != "" {
				fmt.Fprint(r.w, payload.Delta)
				r.sawDelta = true
				r.endedWithNewline = strings.HasSuffix(payload.Delta, "\n")
			}
		}
	case events.FinalAnswerReady:
		if payload, ok := event.Payload.(events.FinalAnswerPayload); ok {
			if r.sawDelta {
				if !r.endedWithNewline {
					fmt.Fprintln(r.w)
				}
				r.resetTurn()
				return
			}
			if !r.printedFinalHeader {
				fmt.Fprint(r.w, "assistant: ")
			}
			fmt.Fprintln(r.w, payload.Answer)
			r.resetTurn()
		}
	case events.RunError:
		if payload, ok := event.Payload.(events.RunErrorPayload); ok {
			fmt.Fprintf(r.w, "\nError: %s\n", payload.Message)
		}
	}
}

// resetTurn clears per-turn streaming state so the renderer can be
// reused across turns of a REPL session.
func (r *StdoutRenderer) resetTurn() {
	r.printedFinalHeader = false
	r.sawDelta = false
	r.endedWithNewline = false
}

func (r *StdoutRenderer) Close() error {
	return nil
}
