package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherUnitsConversion(t *testing.T) {
	weather := NewWeatherTool()

	res, err := weather.Execute(context.Background(), json.RawMessage(`{"location": "Miami", "units": "fahrenheit"}`), Meta{})
	require.NoError(t, err)
	payload := res.Payload.(map[string]any)
	assert.Equal(t, "82°F", payload["temperature"])

	res, err = weather.Execute(context.Background(), json.RawMessage(`{"location": "Miami"}`), Meta{})
	require.NoError(t, err)
	payload = res.Payload.(map[string]any)
	assert.Equal(t, "28°C", payload["temperature"])
}

func TestDatabaseSearchRespectsTableAndLimit(t *testing.T) {
	db := NewDatabaseTool()

	res, err := db.Execute(context.Background(), json.RawMessage(`{"query": "electronics", "limit": 2}`), Meta{})
	require.NoError(t, err)
	payload := res.Payload.(map[string]any)
	assert.Equal(t, 2, payload["count"])

	res, err = db.Execute(context.Background(), json.RawMessage(`{"query": "alice", "table": "users"}`), Meta{})
	require.NoError(t, err)
	payload = res.Payload.(map[string]any)
	assert.Equal(t, 1, payload["count"])
}

func TestClockFormatsInRequestedZone(t *testing.T) {
	clock := NewClockTool()
	clock.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	res, err := clock.Execute(context.Background(), json.RawMessage(`{"timezone": "UTC"}`), Meta{})
	require.NoError(t, err)
	payload := res.Payload.(map[string]any)
	assert.Equal(t, "2025-06-01 12:00:00 UTC", payload["time"])

	_, err = clock.Execute(context.Background(), json.RawMessage(`{"timezone": "Not/AZone"}`), Meta{})
	assert.Error(t, err)
}
