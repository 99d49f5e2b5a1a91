package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgsAcceptsWellFormedPayload(t *testing.T) {
	weather := NewWeatherTool()
	err := ValidateArgs(weather.Schema(), json.RawMessage(`{"location": "NYC", "units": "celsius"}`))
	assert.NoError(t, err)
}

func TestValidateArgsMissingRequired(t *testing.T) {
	weather := NewWeatherTool()
	err := ValidateArgs(weather.Schema(), json.RawMessage(`{"units": "celsius"}`))
	assert.Error(t, err)
}

func TestValidateArgsEnumViolation(t *testing.T) {
	weather := NewWeatherTool()
	err := ValidateArgs(weather.Schema(), json.RawMessage(`{"location": "NYC", "units": "kelvin"}`))
	assert.Error(t, err)
}

func TestValidateArgsMalformedJSON(t *testing.T) {
	weather := NewWeatherTool()
	err := ValidateArgs(weather.Schema(), json.RawMessage(`{"location"`))
	assert.Error(t, err)
}

func TestValidateArgsEmptyPayloadWithNoRequiredFields(t *testing.T) {
	clock := NewClockTool()
	assert.NoError(t, ValidateArgs(clock.Schema(), nil))
}
