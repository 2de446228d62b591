package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

type settingsContext map[string]any

func (c settingsContext) Name() string { return Name }
func (c settingsContext) Dir() string  { return "" }
func (c settingsContext) Setting(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}
func (c settingsContext) Settings() map[string]any              { return c }
func (c settingsContext) Lookup(string) (extension.Info, bool) { return extension.Info{}, false }
func (c settingsContext) Logger() *zap.Logger                   { return zap.NewNop() }

func TestLookup(t *testing.T) {
	r := Lookup("London", UnitMetric)
	assert.Equal(t, 15, r.Temperature)
	assert.Equal(t, UnitMetric, r.Unit)

	r = Lookup("london", UnitImperial)
	assert.Equal(t, 59, r.Temperature)
	assert.Equal(t, UnitImperial, r.Unit)

	a, b := Lookup("Atlantis", UnitMetric), Lookup("atlantis", UnitMetric)
	assert.Equal(t, a.Temperature, b.Temperature, "unknown locations must be stable")
	assert.Equal(t, a.Description, b.Description)
	assert.GreaterOrEqual(t, a.Temperature, 5)
	assert.LessOrEqual(t, a.Temperature, 35)
}

func TestGetWeatherTool_DefaultLocation(t *testing.T) {
	m := &Module{}
	require.NoError(t, m.Initialize(settingsContext{"default_location": "Tokyo", "temperature_unit": UnitMetric}))

	tool, ok := m.Exports().LookupTool("get_weather_tool")
	require.True(t, ok)

	out, err := tool(context.Background(), map[string]any{})
	require.NoError(t, err)
	report := out.(Report)
	assert.Equal(t, "Tokyo", report.Location)
	assert.Equal(t, 26, report.Temperature)
}

func TestGetWeatherAPI(t *testing.T) {
	m := &Module{}
	require.NoError(t, m.Initialize(settingsContext{"temperature_unit": UnitImperial}))

	h, ok := m.Exports().LookupRoute("get_weather_api")
	require.True(t, ok)
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/weather/{location}", h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather/Paris", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success  bool   `json:"success"`
		Location string `json:"location"`
		Weather  Report `json:"weather"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Paris", body.Location)
	assert.Equal(t, 64, body.Weather.Temperature)
}
