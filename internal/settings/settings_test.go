package settings

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
)

func weatherSchema() []manifest.SettingSpec {
	return []manifest.SettingSpec{
		{Key: "api_key", Type: manifest.SettingString, Required: true},
		{Key: "default_location", Type: manifest.SettingString, Default: "London"},
		{Key: "temperature_unit", Type: manifest.SettingString, Default: "metric", Options: []any{"metric", "imperial"}},
		{Key: "max_results", Type: manifest.SettingInteger, Default: 3},
		{Key: "threshold", Type: manifest.SettingNumber},
	}
}

func TestResolve_DefaultsAndMissing(t *testing.T) {
	r := Resolve(weatherSchema(), nil)

	assert.Equal(t, "London", r.Values["default_location"])
	assert.Equal(t, int64(3), r.Values["max_results"])
	assert.Equal(t, []string{"api_key"}, r.Missing)
	_, ok := r.Get("threshold")
	assert.False(t, ok, "optional key without default should be absent")
}

func TestResolve_OverridesWin(t *testing.T) {
	r := Resolve(weatherSchema(), map[string]any{
		"api_key":     "secret",
		"max_results": float64(5),
		"retired_key": true,
		"threshold":   2,
	})

	assert.Equal(t, "secret", r.Values["api_key"])
	assert.Equal(t, int64(5), r.Values["max_results"])
	assert.Equal(t, float64(2), r.Values["threshold"])
	assert.NotContains(t, r.Values, "retired_key")
	assert.Empty(t, r.Missing)
}

func TestValidate_Accepts(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"max_results": 7, "temperature_unit": "imperial", "threshold": 0.5}`), &decoded))

	out, err := Validate("weather-tool", weatherSchema(), decoded)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out["max_results"])
	assert.Equal(t, "imperial", out["temperature_unit"])
	assert.Equal(t, 0.5, out["threshold"])
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{"unknown key", map[string]any{"color": "red"}},
		{"wrong type", map[string]any{"max_results": "ten"}},
		{"fractional integer", map[string]any{"max_results": 2.5}},
		{"outside options", map[string]any{"temperature_unit": "kelvin"}},
		{"string for number", map[string]any{"threshold": "0.5"}},
		{"unknown null", map[string]any{"color": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Validate("weather-tool", weatherSchema(), tt.overrides)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, extension.ErrSettingsValidation), "error %v should match ErrSettingsValidation", err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.NotEmpty(t, ve.Issues)
		})
	}
}

func TestValidate_NilResetsToDefault(t *testing.T) {
	out, err := Validate("weather-tool", weatherSchema(), map[string]any{"default_location": nil})
	require.NoError(t, err)

	merged := Merge(map[string]any{"default_location": "Paris", "api_key": "k"}, out)
	assert.Equal(t, map[string]any{"api_key": "k"}, merged)
	assert.Equal(t, "London", Resolve(weatherSchema(), merged).Values["default_location"])
}
