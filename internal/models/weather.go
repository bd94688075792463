package models

// Location is the best geocoding match for a place name. Produced by the
// geocoding client, consumed by the weather client and the report formatter;
// never cached itself.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
}

// CurrentConditions is an instantaneous weather snapshot for a coordinate.
type CurrentConditions struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Humidity      int     `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Rain          float64 `json:"rain"`
	WeatherCode   int     `json:"weatherCode"`
	CloudCover    int     `json:"cloudCover"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	WindGusts     float64 `json:"windGusts"`
}

// ForecastDay is one day of a multi-day forecast.
type ForecastDay struct {
	Date               string  `json:"date"`
	WeatherCode        int     `json:"weatherCode"`
	TemperatureMax     float64 `json:"temperatureMax"`
	TemperatureMin     float64 `json:"temperatureMin"`
	PrecipitationSum   float64 `json:"precipitationSum"`
	PrecipitationHours float64 `json:"precipitationHours"`
	WindSpeedMax       float64 `json:"windSpeedMax"`
	WindDirection      float64 `json:"windDirection"`
	WindGustsMax       float64 `json:"windGustsMax"`
}

// Forecast is a chronological series of daily forecasts as returned upstream.
type Forecast struct {
	Days []ForecastDay `json:"days"`
}
