package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblesChunkedArguments(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "t1", Name: "get_weather"})
	acc.Add(Fragment{CallID: "t1", ArgsChunk: `{"location"`})
	acc.Add(Fragment{CallID: "t1", ArgsChunk: `:"NYC"}`})

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	require.NoError(t, calls[0].Err)
	assert.Equal(t, "t1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)

	var args map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Args, &args))
	assert.Equal(t, "NYC", args["location"])
}

func TestChunkingIsLossless(t *testing.T) {
	full := `{"expression": "2+2", "precision": 10}`

	oneShot := NewAccumulator()
	oneShot.Add(Fragment{CallID: "c1", Name: "calculate", ArgsChunk: full})

	chunked := NewAccumulator()
	chunked.Add(Fragment{CallID: "c1", Name: "calculate"})
	for _, r := range full {
		chunked.Add(Fragment{CallID: "c1", ArgsChunk: string(r)})
	}

	a := oneShot.Finalize()
	b := chunked.Finalize()
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, string(a[0].Args), string(b[0].Args))
}

func TestRepeatedNameIsIdempotent(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "c1", Name: "get_weather", ArgsChunk: `{"loc`})
	acc.Add(Fragment{CallID: "c1", Name: "get_weather", ArgsChunk: `ation":"NYC"}`})

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"location":"NYC"}`, string(calls[0].Args))
}

func TestInterleavedIdentifiers(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "a", Name: "calculate"})
	acc.Add(Fragment{CallID: "b", Name: "get_weather"})
	acc.Add(Fragment{CallID: "b", ArgsChunk: `{"location":`})
	acc.Add(Fragment{CallID: "a", ArgsChunk: `{"expression":`})
	acc.Add(Fragment{CallID: "a", ArgsChunk: `"1+1"}`})
	acc.Add(Fragment{CallID: "b", ArgsChunk: `"London"}`})

	calls := acc.Finalize()
	require.Len(t, calls, 2)
	// first-seen order is preserved
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "b", calls[1].ID)
	assert.JSONEq(t, `{"expression":"1+1"}`, string(calls[0].Args))
	assert.JSONEq(t, `{"location":"London"}`, string(calls[1].Args))
}

func TestInvalidJSONSurfacesAsCallError(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "bad", Name: "calculate", ArgsChunk: `{"expression": "2+`})
	acc.Add(Fragment{CallID: "ok", Name: "calculate", ArgsChunk: `{"expression": "2+2"}`})

	calls := acc.Finalize()
	require.Len(t, calls, 2)
	assert.Error(t, calls[0].Err)
	assert.NoError(t, calls[1].Err)
}

func TestMissingNameSurfacesAsCallError(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "c1", ArgsChunk: `{}`})

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	assert.Error(t, calls[0].Err)
}

func TestEmptyArgumentsDefaultToEmptyObject(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "c1", Name: "get_current_time"})

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	require.NoError(t, calls[0].Err)
	assert.JSONEq(t, `{}`, string(calls[0].Args))
}

func TestFinalizeIsIdempotentPerIdentifier(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{CallID: "c1", Name: "calculate", ArgsChunk: `{}`})

	require.Len(t, acc.Finalize(), 1)
	assert.Empty(t, acc.Finalize())

	// late fragments for a finalized id are dropped, not re-finalized
	acc.Add(Fragment{CallID: "c1", ArgsChunk: `{"x":1}`})
	assert.Empty(t, acc.Finalize())
	assert.Zero(t, acc.Pending())
}
