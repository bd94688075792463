// Package mcpserver exposes the weather service over the Model Context
// Protocol: three tools and one resource template, served on stdio.
package mcpserver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/weathertools/openmeteo-mcp/internal/observability"
	"github.com/weathertools/openmeteo-mcp/internal/service"
)

const (
	resourceURIPrefix = "currentweather://"
	reportMIMEType    = "text/markdown"
)

// WeatherProvider is the slice of the weather service the protocol layer
// needs. Handlers return rendered text; all upstream and validation failures
// arrive as ordinary errors.
type WeatherProvider interface {
	CurrentByCity(ctx context.Context, city string) (string, error)
	ForecastByCity(ctx context.Context, city string, days int) (string, error)
	CurrentByCoordinates(ctx context.Context, latitude, longitude float64) (string, error)
}

// Server wires a WeatherProvider into an MCP server.
type Server struct {
	provider WeatherProvider
	logger   *zap.Logger
	mcp      *mcp.Server
}

type getWeatherInput struct {
	City string `json:"city" jsonschema:"name of the city to get weather for"`
}

type getForecastInput struct {
	City string `json:"city" jsonschema:"name of the city to get the forecast for"`
	// Days distinguishes "omitted" (default applies) from an explicit zero,
	// which is out of range and rejected.
	Days *int `json:"days,omitempty" jsonschema:"number of forecast days, 1-14, default 7"`
}

type getWeatherByCoordinatesInput struct {
	Latitude  float64 `json:"latitude" jsonschema:"latitude in decimal degrees, -90 to 90"`
	Longitude float64 `json:"longitude" jsonschema:"longitude in decimal degrees, -180 to 180"`
}

// New builds the MCP server and registers the weather tools and the
// current-weather resource template.
func New(provider WeatherProvider, logger *zap.Logger, name, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		provider: provider,
		logger:   logger,
		mcp:      mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_weather",
		Description: "Get current weather conditions for a city",
	}, s.handleGetWeather)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_forecast",
		Description: "Get a multi-day weather forecast for a city",
	}, s.handleGetForecast)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_weather_by_coordinates",
		Description: "Get current weather conditions for a latitude/longitude pair",
	}, s.handleGetWeatherByCoordinates)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceURIPrefix + "{city}",
		Name:        "current_weather",
		Description: "Current weather conditions for the named city",
		MIMEType:    reportMIMEType,
	}, s.handleCurrentWeatherResource)

	return s
}

// Run serves the protocol over the given transport until the context is
// canceled or the peer disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

func (s *Server) handleGetWeather(ctx context.Context, _ *mcp.CallToolRequest, in getWeatherInput) (*mcp.CallToolResult, any, error) {
	text := s.dispatch(ctx, "get_weather", func(ctx context.Context) (string, error) {
		return s.provider.CurrentByCity(ctx, in.City)
	})
	return textResult(text), nil, nil
}

func (s *Server) handleGetForecast(ctx context.Context, _ *mcp.CallToolRequest, in getForecastInput) (*mcp.CallToolResult, any, error) {
	days := service.DefaultForecastDays
	if in.Days != nil {
		days = *in.Days
	}
	text := s.dispatch(ctx, "get_forecast", func(ctx context.Context) (string, error) {
		return s.provider.ForecastByCity(ctx, in.City, days)
	})
	return textResult(text), nil, nil
}

func (s *Server) handleGetWeatherByCoordinates(ctx context.Context, _ *mcp.CallToolRequest, in getWeatherByCoordinatesInput) (*mcp.CallToolResult, any, error) {
	text := s.dispatch(ctx, "get_weather_by_coordinates", func(ctx context.Context) (string, error) {
		return s.provider.CurrentByCoordinates(ctx, in.Latitude, in.Longitude)
	})
	return textResult(text), nil, nil
}

// handleCurrentWeatherResource serves currentweather://{city}, echoing the
// requested URI in the response envelope.
func (s *Server) handleCurrentWeatherResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	text := s.dispatch(ctx, "resource_current_weather", func(ctx context.Context) (string, error) {
		city, err := cityFromURI(uri)
		if err != nil {
			return "", err
		}
		return s.provider.CurrentByCity(ctx, city)
	})
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: reportMIMEType,
			Text:     text,
		}},
	}, nil
}

// dispatch runs one lookup, converting any failure into report text so that
// nothing reaches the caller as a protocol-level fault. Callers tell success
// from failure by the error prefix in the content.
func (s *Server) dispatch(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) string {
	requestID := uuid.NewString()
	start := time.Now()

	text, err := fn(ctx)
	elapsed := time.Since(start)
	observability.ToolCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())

	if err != nil {
		observability.ToolCallsTotal.WithLabelValues(operation, "error").Inc()
		s.logger.Warn("lookup failed",
			zap.String("requestId", requestID),
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return errorText(err)
	}

	observability.ToolCallsTotal.WithLabelValues(operation, "success").Inc()
	s.logger.Info("lookup served",
		zap.String("requestId", requestID),
		zap.String("operation", operation),
		zap.Duration("elapsed", elapsed))
	return text
}

// cityFromURI extracts and decodes the city segment of a
// currentweather://{city} URI.
func cityFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, resourceURIPrefix) {
		return "", fmt.Errorf("unsupported resource URI %q", uri)
	}
	raw := strings.TrimPrefix(uri, resourceURIPrefix)
	city, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("malformed resource URI %q: %w", uri, err)
	}
	if city == "" {
		return "", fmt.Errorf("resource URI %q names no city", uri)
	}
	return city, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorText(err error) string {
	return "Error retrieving weather: " + err.Error()
}
