package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/weathertools/openmeteo-mcp/internal/models"
	"github.com/weathertools/openmeteo-mcp/internal/observability"
)

// Default Open-Meteo endpoints. Both APIs are public and keyless.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstream         = errors.New("upstream failure")
)

// Geocoder resolves a free-text place name to its best coordinate match.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (models.Location, error)
}

// WeatherAPI retrieves weather data for a coordinate.
type WeatherAPI interface {
	Current(ctx context.Context, latitude, longitude float64) (models.CurrentConditions, error)
	Forecast(ctx context.Context, latitude, longitude float64, days int) (models.Forecast, error)
}

// OpenMeteoClient calls the Open-Meteo geocoding and forecast APIs. A shared
// client-side limiter keeps the call rate polite toward the free service; it
// waits rather than rejecting, so failure semantics are unchanged.
type OpenMeteoClient struct {
	geocodingURL string
	weatherURL   string
	client       *http.Client
	limiter      *rate.Limiter
}

// NewOpenMeteoClient creates an OpenMeteoClient. Empty URLs use the public
// endpoints; timeout applies per request; rps <= 0 disables the limiter.
func NewOpenMeteoClient(geocodingURL, weatherURL string, timeout time.Duration, rps float64, burst int) *OpenMeteoClient {
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
	}
	if weatherURL == "" {
		weatherURL = DefaultWeatherURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &OpenMeteoClient{
		geocodingURL: geocodingURL,
		weatherURL:   weatherURL,
		client:       &http.Client{Timeout: timeout},
		limiter:      limiter,
	}
}

type currentResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		FeelsLike     float64 `json:"apparent_temperature"`
		Humidity      int     `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		Rain          float64 `json:"rain"`
		WeatherCode   int     `json:"weather_code"`
		CloudCover    int     `json:"cloud_cover"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
		WindGusts     float64 `json:"wind_gusts_10m"`
	} `json:"current"`
}

type forecastResponse struct {
	Daily struct {
		Time               []string  `json:"time"`
		WeatherCode        []int     `json:"weather_code"`
		TemperatureMax     []float64 `json:"temperature_2m_max"`
		TemperatureMin     []float64 `json:"temperature_2m_min"`
		PrecipitationSum   []float64 `json:"precipitation_sum"`
		PrecipitationHours []float64 `json:"precipitation_hours"`
		WindSpeedMax       []float64 `json:"wind_speed_10m_max"`
		WindDirection      []float64 `json:"wind_direction_10m_dominant"`
		WindGustsMax       []float64 `json:"wind_gusts_10m_max"`
	} `json:"daily"`
}

// Current fetches an instantaneous weather snapshot for the coordinate.
func (c *OpenMeteoClient) Current(ctx context.Context, latitude, longitude float64) (models.CurrentConditions, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(latitude))
	params.Set("longitude", formatCoord(longitude))
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,rain,weather_code,cloud_cover,wind_speed_10m,wind_direction_10m,wind_gusts_10m")

	body, err := c.getJSON(ctx, "weather", c.weatherURL, params)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("parse current response: %w", err)
	}

	cur := resp.Current
	return models.CurrentConditions{
		Temperature:   cur.Temperature,
		FeelsLike:     cur.FeelsLike,
		Humidity:      cur.Humidity,
		Precipitation: cur.Precipitation,
		Rain:          cur.Rain,
		WeatherCode:   cur.WeatherCode,
		CloudCover:    cur.CloudCover,
		WindSpeed:     cur.WindSpeed,
		WindDirection: cur.WindDirection,
		WindGusts:     cur.WindGusts,
	}, nil
}

// Forecast fetches a daily forecast series for the coordinate. The upstream
// returns one parallel array per field, index-aligned by day.
func (c *OpenMeteoClient) Forecast(ctx context.Context, latitude, longitude float64, days int) (models.Forecast, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(latitude))
	params.Set("longitude", formatCoord(longitude))
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_hours,wind_speed_10m_max,wind_direction_10m_dominant,wind_gusts_10m_max")
	params.Set("forecast_days", strconv.Itoa(days))

	body, err := c.getJSON(ctx, "weather", c.weatherURL, params)
	if err != nil {
		return models.Forecast{}, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Forecast{}, fmt.Errorf("parse forecast response: %w", err)
	}

	daily := resp.Daily
	out := models.Forecast{Days: make([]models.ForecastDay, 0, len(daily.Time))}
	for i, date := range daily.Time {
		day := models.ForecastDay{Date: date}
		if i < len(daily.WeatherCode) {
			day.WeatherCode = daily.WeatherCode[i]
		}
		if i < len(daily.TemperatureMax) {
			day.TemperatureMax = daily.TemperatureMax[i]
		}
		if i < len(daily.TemperatureMin) {
			day.TemperatureMin = daily.TemperatureMin[i]
		}
		if i < len(daily.PrecipitationSum) {
			day.PrecipitationSum = daily.PrecipitationSum[i]
		}
		if i < len(daily.PrecipitationHours) {
			day.PrecipitationHours = daily.PrecipitationHours[i]
		}
		if i < len(daily.WindSpeedMax) {
			day.WindSpeedMax = daily.WindSpeedMax[i]
		}
		if i < len(daily.WindDirection) {
			day.WindDirection = daily.WindDirection[i]
		}
		if i < len(daily.WindGustsMax) {
			day.WindGustsMax = daily.WindGustsMax[i]
		}
		out.Days = append(out.Days, day)
	}
	return out, nil
}

// getJSON performs one GET with the politeness limiter, records metrics, and
// returns the body for 2xx responses. Non-2xx statuses surface as ErrUpstream
// carrying the HTTP status; no retries.
func (c *OpenMeteoClient) getJSON(ctx context.Context, api, baseURL string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(api, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(api).Observe(duration)
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	observability.UpstreamCallsTotal.WithLabelValues(api, statusLabel(resp.StatusCode)).Inc()
	observability.UpstreamDuration.WithLabelValues(api).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d %s", ErrUpstream, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
