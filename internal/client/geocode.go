package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/weathertools/openmeteo-mcp/internal/models"
)

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// Geocode resolves a place name to its single best match. Zero matches is a
// distinct failure (ErrLocationNotFound carrying the queried name), not an
// empty success.
func (c *OpenMeteoClient) Geocode(ctx context.Context, name string) (models.Location, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")

	body, err := c.getJSON(ctx, "geocoding", c.geocodingURL, params)
	if err != nil {
		return models.Location{}, err
	}

	var resp geocodingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Location{}, fmt.Errorf("parse geocoding response: %w", err)
	}
	if len(resp.Results) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}

	best := resp.Results[0]
	return models.Location{
		Latitude:  best.Latitude,
		Longitude: best.Longitude,
		Name:      best.Name,
		Country:   best.Country,
		Admin1:    best.Admin1,
	}, nil
}
