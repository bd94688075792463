package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weathertools/openmeteo-mcp/internal/cache"
	"github.com/weathertools/openmeteo-mcp/internal/client"
	"github.com/weathertools/openmeteo-mcp/internal/observability"
	"github.com/weathertools/openmeteo-mcp/internal/report"
	"github.com/weathertools/openmeteo-mcp/internal/validation"
)

// Forecast day-count contract: optional, default 7, valid 1-14 inclusive.
const (
	DefaultForecastDays = 7
	MinForecastDays     = 1
	MaxForecastDays     = 14
)

// ErrInvalidDays is returned for an out-of-range forecast day count before
// any network call.
var ErrInvalidDays = errors.New("days must be between 1 and 14")

// ErrInvalidCoordinate is returned for out-of-range coordinates before any
// network call.
var ErrInvalidCoordinate = errors.New("coordinate out of range")

// WeatherService orchestrates weather lookups: cache check, geocoding,
// upstream fetch, report rendering, cache population. City-name lookups use
// the cache-aside pattern; coordinate lookups are always live.
//
// There is no single-flight dedup: concurrent misses for the same key may
// each fetch upstream and overwrite each other's cache entry. That is a
// benign inefficiency, not a correctness bug.
type WeatherService struct {
	geo        client.Geocoder
	weather    client.WeatherAPI
	cache      cache.Store
	logger     *zap.Logger
	maxCityLen int

	now func() time.Time // overridable in tests
}

// NewWeatherService creates a WeatherService with the provided dependencies.
// maxCityLen <= 0 uses the validation package default. logger may be nil.
func NewWeatherService(geo client.Geocoder, weather client.WeatherAPI, store cache.Store, logger *zap.Logger, maxCityLen int) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		geo:        geo,
		weather:    weather,
		cache:      store,
		logger:     logger,
		maxCityLen: maxCityLen,
		now:        time.Now,
	}
}

// CurrentByCity returns a current-conditions report for a city name.
// Cache hit returns the stored text verbatim with no upstream calls.
func (s *WeatherService) CurrentByCity(ctx context.Context, city string) (string, error) {
	city, err := validation.ValidateCity(city, s.maxCityLen)
	if err != nil {
		return "", err
	}
	key := normalizeCity(city)

	if text, ok := s.cacheGet(ctx, cache.NamespaceCurrent, key); ok {
		return text, nil
	}

	loc, err := s.geo.Geocode(ctx, city)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", city, err)
	}
	conditions, err := s.weather.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return "", fmt.Errorf("fetch current conditions for %q: %w", city, err)
	}

	text := report.Current(report.LocationLabel(loc), conditions, s.now())
	s.cacheSet(ctx, cache.NamespaceCurrent, key, text)
	return text, nil
}

// ForecastByCity returns a multi-day forecast report for a city name.
// Out-of-range day counts fail before any fetch; callers that want the
// default pass DefaultForecastDays. Different day counts for the same city
// are distinct cache entries.
func (s *WeatherService) ForecastByCity(ctx context.Context, city string, days int) (string, error) {
	if days < MinForecastDays || days > MaxForecastDays {
		return "", fmt.Errorf("%w: got %d", ErrInvalidDays, days)
	}
	city, err := validation.ValidateCity(city, s.maxCityLen)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s:%d", normalizeCity(city), days)

	if text, ok := s.cacheGet(ctx, cache.NamespaceForecast, key); ok {
		return text, nil
	}

	loc, err := s.geo.Geocode(ctx, city)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", city, err)
	}
	forecast, err := s.weather.Forecast(ctx, loc.Latitude, loc.Longitude, days)
	if err != nil {
		return "", fmt.Errorf("fetch forecast for %q: %w", city, err)
	}

	text := report.ForecastReport(report.LocationLabel(loc), forecast, s.now())
	s.cacheSet(ctx, cache.NamespaceForecast, key, text)
	return text, nil
}

// CurrentByCoordinates returns a current-conditions report for a raw
// coordinate. Coordinate lookups bypass the cache entirely: every call is a
// live fetch, and the display label is the coordinate pair itself.
func (s *WeatherService) CurrentByCoordinates(ctx context.Context, latitude, longitude float64) (string, error) {
	if latitude < -90 || latitude > 90 {
		return "", fmt.Errorf("%w: latitude %v not in [-90, 90]", ErrInvalidCoordinate, latitude)
	}
	if longitude < -180 || longitude > 180 {
		return "", fmt.Errorf("%w: longitude %v not in [-180, 180]", ErrInvalidCoordinate, longitude)
	}

	conditions, err := s.weather.Current(ctx, latitude, longitude)
	if err != nil {
		return "", fmt.Errorf("fetch current conditions for %.4f, %.4f: %w", latitude, longitude, err)
	}
	return report.Current(report.CoordinateLabel(latitude, longitude), conditions, s.now()), nil
}

// cacheGet reads the cache, treating backend errors as misses. Cache failures
// must never fail a lookup.
func (s *WeatherService) cacheGet(ctx context.Context, namespace, key string) (string, bool) {
	text, ok, err := s.cache.Get(ctx, namespace, key)
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
		observability.CacheMissesTotal.WithLabelValues(namespace).Inc()
		return "", false
	}
	if ok {
		observability.CacheHitsTotal.WithLabelValues(namespace).Inc()
		s.logger.Debug("cache hit", zap.String("namespace", namespace), zap.String("key", key))
		return text, true
	}
	observability.CacheMissesTotal.WithLabelValues(namespace).Inc()
	s.logger.Debug("cache miss", zap.String("namespace", namespace), zap.String("key", key))
	return "", false
}

// cacheSet writes the cache, logging failures without surfacing them.
func (s *WeatherService) cacheSet(ctx context.Context, namespace, key, text string) {
	if err := s.cache.Set(ctx, namespace, key, text); err != nil {
		s.logger.Warn("cache set failed", zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
	}
}

// normalizeCity derives the cache key from a validated city name so that
// case and surrounding-whitespace variants share one entry.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
