package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"go.uber.org/zap"
)

// ParticulateGuard replaces implausible PM2.5 readings. Some kit firmwares
// report raw counts instead of µg/m³, several orders of magnitude too high.
type ParticulateGuard struct {
	PlausibleMax float64
	SafeValue    float64
}

// DefaultParticulateGuard: anything above 1000 µg/m³ is treated as a sensor
// fault and replaced by 25 µg/m³, below the default toxicity threshold.
var DefaultParticulateGuard = ParticulateGuard{PlausibleMax: 1000, SafeValue: 25}

type SmartCitizenClient struct {
	*BaseClient
	deviceID string
	token    string
	baseURL  string
	guard    ParticulateGuard
}

type SmartCitizenDeviceResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Data struct {
		RecordedAt string               `json:"recorded_at"`
		Sensors    []SmartCitizenSensor `json:"sensors"`
	} `json:"data"`
}

type SmartCitizenSensor struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Unit        string   `json:"unit"`
	Value       *float64 `json:"value"`
}

func NewSmartCitizenClient(deviceID, token, baseURL string, guard ParticulateGuard, config ClientConfig, logger *zap.Logger) *SmartCitizenClient {
	if guard.PlausibleMax <= 0 {
		guard = DefaultParticulateGuard
	}
	return &SmartCitizenClient{
		BaseClient: NewBaseClient("smartcitizen", config, logger),
		deviceID:   deviceID,
		token:      token,
		baseURL:    baseURL,
		guard:      guard,
	}
}

func (c *SmartCitizenClient) Name() string {
	return "smartcitizen"
}

func (c *SmartCitizenClient) Fetch(ctx context.Context) (models.RawReading, error) {
	if c.deviceID == "" {
		return models.RawReading{}, fmt.Errorf("smartcitizen: %w", ErrNotConfigured)
	}

	var headers map[string]string
	if c.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.token}
	}

	u := fmt.Sprintf("%s/devices/%s", c.baseURL, c.deviceID)
	data, err := c.Get(ctx, u, headers)
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to fetch sensor data: %w", err)
	}

	var response SmartCitizenDeviceResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return models.RawReading{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Data.Sensors) == 0 {
		return models.RawReading{}, fmt.Errorf("device %s reported no sensors", c.deviceID)
	}

	var reading models.RawReading
	for _, s := range response.Data.Sensors {
		if s.Value == nil {
			continue
		}
		switch sensorKind(s.Name) {
		case "noise":
			reading.NoiseDB = s.Value
		case "light":
			reading.LightLux = s.Value
		case "pm25":
			reading.Particulate = c.guardParticulate(*s.Value)
		case "co2":
			reading.CO2 = s.Value
		case "temperature":
			reading.Temperature = s.Value
		case "humidity":
			reading.Humidity = s.Value
		}
	}

	return reading, nil
}

func (c *SmartCitizenClient) guardParticulate(v float64) *float64 {
	if v > c.guard.PlausibleMax {
		c.logger.Warn("Implausible particulate reading replaced",
			zap.String("device", c.deviceID),
			zap.Float64("value", v),
			zap.Float64("replacement", c.guard.SafeValue))
		return models.Float(c.guard.SafeValue)
	}
	if v < 0 {
		return models.Float(0)
	}
	return models.Float(v)
}

func sensorKind(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "noise"):
		return "noise"
	case strings.Contains(n, "light"):
		return "light"
	case strings.Contains(n, "pm 2.5") || strings.Contains(n, "pm2.5"):
		return "pm25"
	case strings.Contains(n, "co2"):
		return "co2"
	case strings.Contains(n, "temperature"):
		return "temperature"
	case strings.Contains(n, "humidity"):
		return "humidity"
	}
	return ""
}
