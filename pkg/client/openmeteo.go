package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"go.uber.org/zap"
)

// OpenMeteoClient is the keyless meteorological source, addressed by
// coordinates instead of a station id.
type OpenMeteoClient struct {
	*BaseClient
	baseURL   string
	latitude  float64
	longitude float64
}

type OpenMeteoCurrentResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Time               string   `json:"time"`
		Temperature2M      *float64 `json:"temperature_2m"`
		RelativeHumidity2M *float64 `json:"relative_humidity_2m"`
		PressureMSL        *float64 `json:"pressure_msl"`
		WindSpeed10M       *float64 `json:"wind_speed_10m"`
		WindDirection10M   *float64 `json:"wind_direction_10m"`
		Precipitation      *float64 `json:"precipitation"`
		WeatherCode        int      `json:"weather_code"`
	} `json:"current"`
}

func NewOpenMeteoClient(latitude, longitude float64, baseURL string, config ClientConfig, logger *zap.Logger) *OpenMeteoClient {
	return &OpenMeteoClient{
		BaseClient: NewBaseClient("openmeteo", config, logger),
		baseURL:    baseURL,
		latitude:   latitude,
		longitude:  longitude,
	}
}

func (c *OpenMeteoClient) Name() string {
	return "open-meteo"
}

func (c *OpenMeteoClient) Fetch(ctx context.Context) (models.RawReading, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(c.latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(c.longitude, 'f', 4, 64))
	values.Set("current", "temperature_2m,relative_humidity_2m,pressure_msl,wind_speed_10m,wind_direction_10m,precipitation,weather_code")
	u := fmt.Sprintf("%s/forecast?%s", c.baseURL, values.Encode())

	data, err := c.Get(ctx, u, nil)
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to fetch current weather: %w", err)
	}

	var response OpenMeteoCurrentResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return models.RawReading{}, fmt.Errorf("failed to parse response: %w", err)
	}

	// wind_speed_10m is km/h by default, which is what the engine expects.
	return models.RawReading{
		Temperature:   response.Current.Temperature2M,
		Humidity:      response.Current.RelativeHumidity2M,
		Pressure:      response.Current.PressureMSL,
		WindSpeed:     response.Current.WindSpeed10M,
		WindDirection: response.Current.WindDirection10M,
		Precipitation: response.Current.Precipitation,
		Description:   weatherCodeToDescription(response.Current.WeatherCode),
	}, nil
}

// WMO weather interpretation codes
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
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

func weatherCodeToDescription(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "Unknown"
}
