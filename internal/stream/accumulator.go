// Package stream reassembles fragmented tool calls from streamed model
// responses. Providers deliver tool-call names and argument text in
// arbitrary-sized chunks; the accumulator rebuilds one complete call per
// call identifier before execution.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fragment is one streamed piece of a tool call, normalized from whatever
// shape the provider used. Name and ArgsChunk may both be empty for
// keep-alive fragments.
type Fragment struct {
	CallID    string
	Name      string
	ArgsChunk string
}

// Call is a reassembled tool call. Err is set when the call cannot be
// executed (missing name, argument text not valid JSON); such calls are
// still returned so the failure can be reported per call instead of
// aborting the turn.
type Call struct {
	ID   string
	Name string
	Args json.RawMessage
	Err  error
}

type pending struct {
	name string
	args strings.Builder
}

// Accumulator collects fragments for one model turn. Not safe for
// concurrent use; a turn is driven by a single reader goroutine.
type Accumulator struct {
	order     []string
	pending   map[string]*pending
	finalized map[string]bool
}

// NewAccumulator returns an empty accumulator for one turn.
func NewAccumulator() *Accumulator {
	return &Accumulator{pending: map[string]*pending{}, finalized: map[string]bool{}}
}

// Add folds a fragment into the buffer. The first fragment for an id
// creates its entry; later name tokens overwrite (last write wins) and
// argument chunks append in arrival order. Fragments without a call id
// and fragments for already-finalized ids are dropped.
func (a *Accumulator) Add(f Fragment) {
	if f.CallID == "" || a.finalized[f.CallID] {
		return
	}
	entry, ok := a.pending[f.CallID]
	if !ok {
		entry = &pending{}
		a.pending[f.CallID] = entry
		a.order = append(a.order, f.CallID)
	}
	if f.Name != "" {
		entry.name = f.Name
	}
	if f.ArgsChunk != "" {
		entry.args.WriteString(f.ArgsChunk)
	}
}

// Pending reports how many calls are buffered and not yet finalized.
func (a *Accumulator) Pending() int {
	return len(a.pending)
}

// Finalize closes out every pending call in first-seen order and clears
// the buffer. Each id is finalized at most once per turn: calling
// Finalize again returns only calls whose fragments arrived after the
// previous finalization.
func (a *Accumulator) Finalize() []Call {
	calls := make([]Call, 0, len(a.order))
	for _, id := range a.order {
		entry, ok := a.pending[id]
		if !ok {
			continue
		}
		calls = append(calls, a.complete(id, entry))
		a.finalized[id] = true
		delete(a.pending, id)
	}
	a.order = a.order[:0]
	return calls
}

func (a *Accumulator) complete(id string, entry *pending) Call {
	call := Call{ID: id, Name: entry.name}
	if entry.name == "" {
		call.Err = fmt.Errorf("tool call %s: no tool name received", id)
		return call
	}
	raw := entry.args.String()
	if raw == "" {
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		call.Err = fmt.Errorf("tool call %s (%s): arguments are not valid JSON", id, entry.name)
		call.Args = json.RawMessage(raw)
		return call
	}
	call.Args = json.RawMessage(raw)
	return call
}
