// Package report renders weather data into markdown text. All functions are
// pure: no I/O, no caching, no clock access beyond the caller-supplied
// generation time.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/weathertools/openmeteo-mcp/internal/models"
)

// Gust clauses are appended only when gusts meaningfully exceed sustained
// speed. The thresholds differ between report kinds; both values are part of
// the output contract.
const (
	currentGustRatio  = 1.5
	forecastGustRatio = 1.3
)

const timestampLayout = "2006-01-02 15:04 UTC"

// weatherDescriptions maps WMO weather interpretation codes to text.
var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// compassLabels is the 16-point rose starting at north, clockwise.
var compassLabels = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Describe returns the text for a WMO weather code, or an explicit unknown
// marker for codes outside the table.
func Describe(code int) string {
	if desc, ok := weatherDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown (code: %d)", code)
}

// Compass converts wind direction in degrees to a 16-point compass label.
// Periodic in 360; 0 degrees is "N".
func Compass(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Round(d/22.5)) % 16
	return compassLabels[idx]
}

// LocationLabel builds the display label for a resolved location.
func LocationLabel(loc models.Location) string {
	if loc.Country == "" {
		return loc.Name
	}
	return loc.Name + ", " + loc.Country
}

// CoordinateLabel builds the display label for a raw coordinate lookup,
// rounded to 4 decimal places.
func CoordinateLabel(latitude, longitude float64) string {
	return fmt.Sprintf("%.4f, %.4f", latitude, longitude)
}

// Current renders a current-conditions report for the given display label.
func Current(label string, c models.CurrentConditions, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Current Weather for %s\n\n", label)
	fmt.Fprintf(&b, "**Conditions:** %s\n", Describe(c.WeatherCode))
	fmt.Fprintf(&b, "**Temperature:** %.1f°C (feels like %.1f°C)\n", c.Temperature, c.FeelsLike)
	fmt.Fprintf(&b, "**Humidity:** %d%%\n", c.Humidity)

	wind := fmt.Sprintf("**Wind:** %.1f km/h from %s", c.WindSpeed, Compass(c.WindDirection))
	if c.WindGusts > currentGustRatio*c.WindSpeed {
		wind += fmt.Sprintf(" (gusts up to %.1f km/h)", c.WindGusts)
	}
	b.WriteString(wind + "\n")

	fmt.Fprintf(&b, "**Cloud cover:** %d%%\n", c.CloudCover)

	precip := fmt.Sprintf("**Precipitation:** %.1f mm", c.Precipitation)
	if c.Rain > 0 {
		precip += fmt.Sprintf(" (rain: %.1f mm)", c.Rain)
	}
	b.WriteString(precip + "\n")

	fmt.Fprintf(&b, "\n*Generated at %s*\n", generatedAt.UTC().Format(timestampLayout))
	return b.String()
}

// ForecastReport renders a multi-day forecast, one section per day in the
// order the upstream returned them, with one shared generation timestamp.
func ForecastReport(label string, f models.Forecast, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %d-Day Weather Forecast for %s\n", len(f.Days), label)

	for _, day := range f.Days {
		fmt.Fprintf(&b, "\n## %s\n", dayHeading(day.Date))
		fmt.Fprintf(&b, "**Conditions:** %s\n", Describe(day.WeatherCode))
		fmt.Fprintf(&b, "**Temperature:** %.1f°C to %.1f°C\n", day.TemperatureMin, day.TemperatureMax)
		fmt.Fprintf(&b, "**Precipitation:** %.1f mm over %.0f h\n", day.PrecipitationSum, day.PrecipitationHours)

		wind := fmt.Sprintf("**Wind:** %.1f km/h from %s", day.WindSpeedMax, Compass(day.WindDirection))
		if day.WindGustsMax > forecastGustRatio*day.WindSpeedMax {
			wind += fmt.Sprintf(" (gusts up to %.1f km/h)", day.WindGustsMax)
		}
		b.WriteString(wind + "\n")
	}

	fmt.Fprintf(&b, "\n*Generated at %s*\n", generatedAt.UTC().Format(timestampLayout))
	return b.String()
}

// dayHeading formats an upstream date (YYYY-MM-DD) as "Weekday, YYYY-MM-DD".
// Unparseable dates are passed through as-is.
func dayHeading(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Weekday().String() + ", " + date
}
