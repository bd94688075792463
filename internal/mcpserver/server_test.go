package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathertools/openmeteo-mcp/internal/observability"
)

// stubProvider returns canned reports and records call arguments.
type stubProvider struct {
	currentText  string
	forecastText string
	err          error

	lastCity string
	lastDays int
	lastLat  float64
	lastLon  float64
}

func (p *stubProvider) CurrentByCity(ctx context.Context, city string) (string, error) {
	p.lastCity = city
	if p.err != nil {
		return "", p.err
	}
	return p.currentText, nil
}

func (p *stubProvider) ForecastByCity(ctx context.Context, city string, days int) (string, error) {
	p.lastCity, p.lastDays = city, days
	if p.err != nil {
		return "", p.err
	}
	return p.forecastText, nil
}

func (p *stubProvider) CurrentByCoordinates(ctx context.Context, latitude, longitude float64) (string, error) {
	p.lastLat, p.lastLon = latitude, longitude
	if p.err != nil {
		return "", p.err
	}
	return p.currentText, nil
}

// connectTestClient starts the server on an in-memory transport and connects
// a test client. Cleanup is handled via t.Cleanup.
func connectTestClient(t *testing.T, provider *stubProvider) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	srv := New(provider, nil, "weather-test", "v0.0.1")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
		<-errCh
	})

	return session
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	session := connectTestClient(t, &stubProvider{})

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_weather", "get_forecast", "get_weather_by_coordinates"}, names)
}

func TestCallGetWeather(t *testing.T) {
	provider := &stubProvider{currentText: "# Current Weather for London, United Kingdom"}
	session := connectTestClient(t, provider)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_weather",
		Arguments: map[string]any{"city": "London"},
	})
	require.NoError(t, err)

	assert.Equal(t, "# Current Weather for London, United Kingdom", toolText(t, result))
	assert.Equal(t, "London", provider.lastCity)
}

func TestCallGetForecast(t *testing.T) {
	provider := &stubProvider{forecastText: "# 5-Day Weather Forecast for London, United Kingdom"}
	session := connectTestClient(t, provider)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_forecast",
		Arguments: map[string]any{"city": "London", "days": 5},
	})
	require.NoError(t, err)

	assert.Contains(t, toolText(t, result), "5-Day Weather Forecast")
	assert.Equal(t, "London", provider.lastCity)
	assert.Equal(t, 5, provider.lastDays)
}

func TestCallGetForecast_OmittedDays(t *testing.T) {
	provider := &stubProvider{forecastText: "forecast"}
	session := connectTestClient(t, provider)

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_forecast",
		Arguments: map[string]any{"city": "London"},
	})
	require.NoError(t, err)

	// Omitting days selects the default; an explicit zero would be passed
	// through and rejected by the service.
	assert.Equal(t, 7, provider.lastDays)
}

func TestCallGetWeatherByCoordinates(t *testing.T) {
	provider := &stubProvider{currentText: "# Current Weather for 51.5073, -0.1278"}
	session := connectTestClient(t, provider)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_weather_by_coordinates",
		Arguments: map[string]any{"latitude": 51.5073, "longitude": -0.1278},
	})
	require.NoError(t, err)

	assert.Contains(t, toolText(t, result), "51.5073, -0.1278")
	assert.Equal(t, 51.5073, provider.lastLat)
	assert.Equal(t, -0.1278, provider.lastLon)
}

// TestCallToolError verifies lookup failures come back as report text, not as
// protocol-level faults: the call succeeds and the content carries the error.
func TestCallToolError(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("location not found: %q", "Nowhereland")}
	session := connectTestClient(t, provider)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_weather",
		Arguments: map[string]any{"city": "Nowhereland"},
	})
	require.NoError(t, err, "tool errors must not surface as protocol faults")

	text := toolText(t, result)
	assert.True(t, len(text) > 0)
	assert.Contains(t, text, "Error retrieving weather:")
	assert.Contains(t, text, "Nowhereland")
}

func TestReadResource(t *testing.T) {
	provider := &stubProvider{currentText: "# Current Weather for London, United Kingdom"}
	session := connectTestClient(t, provider)

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{
		URI: "currentweather://London",
	})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	contents := result.Contents[0]
	assert.Equal(t, "currentweather://London", contents.URI)
	assert.Equal(t, "text/markdown", contents.MIMEType)
	assert.Equal(t, "# Current Weather for London, United Kingdom", contents.Text)
	assert.Equal(t, "London", provider.lastCity)
}

// TestReadResource_EscapedCity verifies percent-encoded city segments are
// decoded before dispatch while the envelope echoes the URI as requested.
func TestReadResource_EscapedCity(t *testing.T) {
	provider := &stubProvider{currentText: "# Current Weather for New York, United States"}
	session := connectTestClient(t, provider)

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{
		URI: "currentweather://New%20York",
	})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	assert.Equal(t, "currentweather://New%20York", result.Contents[0].URI)
	assert.Equal(t, "New York", provider.lastCity)
}

func TestReadResource_Error(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream API failure: HTTP 502 Bad Gateway")}
	session := connectTestClient(t, provider)

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{
		URI: "currentweather://London",
	})
	require.NoError(t, err, "lookup errors must not surface as protocol faults")
	require.Len(t, result.Contents, 1)

	assert.Contains(t, result.Contents[0].Text, "Error retrieving weather:")
	assert.Contains(t, result.Contents[0].Text, "HTTP 502")
}

// TestReadResource_MalformedURI verifies a URI that fails parsing takes the
// same path as any other failure: error text in the envelope and an error
// outcome recorded in the call metrics.
func TestReadResource_MalformedURI(t *testing.T) {
	provider := &stubProvider{currentText: "report"}
	srv := New(provider, nil, "weather-test", "v0.0.1")

	counter := observability.ToolCallsTotal.WithLabelValues("resource_current_weather", "error")
	before := testutil.ToFloat64(counter)

	result, err := srv.handleCurrentWeatherResource(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "currentweather://bad%zz"},
	})
	require.NoError(t, err, "parse failures must not surface as protocol faults")
	require.Len(t, result.Contents, 1)

	assert.Equal(t, "currentweather://bad%zz", result.Contents[0].URI)
	assert.Contains(t, result.Contents[0].Text, "Error retrieving weather:")
	assert.Empty(t, provider.lastCity, "provider must not be reached for an unparseable URI")
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCityFromURI(t *testing.T) {
	tests := []struct {
		uri      string
		wantCity string
		wantErr  bool
	}{
		{uri: "currentweather://London", wantCity: "London"},
		{uri: "currentweather://New%20York", wantCity: "New York"},
		{uri: "currentweather://", wantErr: true},
		{uri: "weather://London", wantErr: true},
		{uri: "currentweather://bad%zz", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.uri, func(t *testing.T) {
			city, err := cityFromURI(tc.uri)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCity, city)
		})
	}
}
