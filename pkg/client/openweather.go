package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"go.uber.org/zap"
)

// msToKmh converts OpenWeatherMap's metric wind speed to km/h.
const msToKmh = 3.6

type OpenWeatherClient struct {
	*BaseClient
	apiKey  string
	cityID  string
	baseURL string
}

type OpenWeatherCurrentResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Pressure *float64 `json:"pressure"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Rain *struct {
		OneH   *float64 `json:"1h"`
		ThreeH *float64 `json:"3h"`
	} `json:"rain"`
	Dt   int64  `json:"dt"`
	ID   int    `json:"id"`
	Name string `json:"name"`
	Cod  int    `json:"cod"`
}

func NewOpenWeatherClient(apiKey, cityID, baseURL string, config ClientConfig, logger *zap.Logger) *OpenWeatherClient {
	return &OpenWeatherClient{
		BaseClient: NewBaseClient("openweathermap", config, logger),
		apiKey:     apiKey,
		cityID:     cityID,
		baseURL:    baseURL,
	}
}

func (c *OpenWeatherClient) Name() string {
	return "openweathermap"
}

func (c *OpenWeatherClient) Fetch(ctx context.Context) (models.RawReading, error) {
	if c.apiKey == "" || c.cityID == "" {
		return models.RawReading{}, fmt.Errorf("openweathermap: %w", ErrNotConfigured)
	}

	values := url.Values{}
	values.Set("id", c.cityID)
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")
	u := fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode())

	data, err := c.Get(ctx, u, nil)
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to fetch current weather: %w", err)
	}

	var response OpenWeatherCurrentResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return models.RawReading{}, fmt.Errorf("failed to parse response: %w", err)
	}

	// OWM echoes the HTTP status in the body; 0 means the field was omitted.
	if response.Cod != 0 && response.Cod != 200 {
		return models.RawReading{}, fmt.Errorf("%w: cod %d", ErrUnexpectedStatus, response.Cod)
	}

	reading := models.RawReading{
		Temperature:   response.Main.Temp,
		Humidity:      response.Main.Humidity,
		Pressure:      response.Main.Pressure,
		WindDirection: response.Wind.Deg,
		Precipitation: models.Float(0),
	}
	if response.Wind.Speed != nil {
		reading.WindSpeed = models.Float(*response.Wind.Speed * msToKmh)
	}
	if response.Rain != nil {
		switch {
		case response.Rain.OneH != nil:
			reading.Precipitation = response.Rain.OneH
		case response.Rain.ThreeH != nil:
			reading.Precipitation = models.Float(*response.Rain.ThreeH / 3)
		}
	}
	if len(response.Weather) > 0 {
		reading.Description = response.Weather[0].Description
	}

	c.logger.Debug("OpenWeatherMap reading",
		zap.String("city", response.Name),
		zap.Any("temperature", response.Main.Temp))

	return reading, nil
}
