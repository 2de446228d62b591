// Package weather is a sample tool extension. It answers weather lookups
// through the get_weather tool and a /weather/{location} route using
// deterministic demo data, so it never touches the network.
package weather

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/runtime"
)

// Name is the extension and entrypoint name.
const Name = "weather-tool"

// Temperature units.
const (
	UnitMetric   = "metric"
	UnitImperial = "imperial"
)

const defaultLocation = "London"

func init() {
	runtime.Register(Name, func() extension.Module { return &Module{} })
}

// Report is one weather reading.
type Report struct {
	Location    string `json:"location"`
	Temperature int    `json:"temperature"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

type reading struct {
	celsius     int
	description string
}

var known = map[string]reading{
	"london":   {15, "Cloudy with a chance of rain"},
	"new york": {22, "Sunny with scattered clouds"},
	"tokyo":    {26, "Clear skies"},
	"sydney":   {20, "Partly cloudy"},
	"paris":    {18, "Light rain"},
}

var descriptions = []string{
	"Sunny", "Partly cloudy", "Cloudy",
	"Light rain", "Heavy rain", "Thunderstorms",
	"Snowy", "Foggy", "Clear skies",
}

// Lookup returns the demo reading for location in the given unit. Unknown
// locations get a stable reading derived from the location name.
func Lookup(location, unit string) Report {
	key := strings.ToLower(strings.TrimSpace(location))
	r, ok := known[key]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(key))
		sum := h.Sum32()
		r = reading{celsius: 5 + int(sum%31), description: descriptions[int(sum/31)%len(descriptions)]}
	}

	temp := r.celsius
	if unit == UnitImperial {
		temp = int(math.Round(float64(r.celsius)*9/5 + 32))
	} else {
		unit = UnitMetric
	}
	return Report{Location: location, Temperature: temp, Description: r.description, Unit: unit}
}

// Module implements the weather-tool extension.
type Module struct {
	extension.Base
	ctx extension.Context
}

func (m *Module) Initialize(ctx extension.Context) error {
	m.ctx = ctx
	ctx.Logger().Info("initializing weather tool extension")
	return nil
}

func (m *Module) Exports() *extension.Exports {
	return extension.NewExports().
		Tool("get_weather_tool", m.getWeatherTool).
		RouteFunc("get_weather_api", m.getWeatherAPI)
}

func (m *Module) stringSetting(key, fallback string) string {
	if m.ctx != nil {
		if v, ok := m.ctx.Setting(key); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}

func (m *Module) getWeatherTool(_ context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		location = m.stringSetting("default_location", defaultLocation)
	}
	return Lookup(location, m.stringSetting("temperature_unit", UnitMetric)), nil
}

func (m *Module) getWeatherAPI(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	report := Lookup(location, m.stringSetting("temperature_unit", UnitMetric))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"location": location,
		"weather":  report,
	})
}
