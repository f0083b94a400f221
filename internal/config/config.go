package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

type Config struct {
	Server struct {
		Port         string        `validate:"required"`
		ReadTimeout  time.Duration `validate:"gt=0"`
		WriteTimeout time.Duration `validate:"gt=0"`
	}

	Logging struct {
		Level  string `validate:"oneof=debug info warn error"`
		Format string `validate:"oneof=json console"`
	}

	OpenWeather struct {
		APIKey  string
		CityID  string
		BaseURL string `validate:"required,url"`
	}

	// OpenMeteo is used as the meteorological source when MeteoProvider is
	// "openmeteo". It needs no key.
	OpenMeteo struct {
		BaseURL   string  `validate:"required,url"`
		Latitude  float64 `validate:"gte=-90,lte=90"`
		Longitude float64 `validate:"gte=-180,lte=180"`
	}
	MeteoProvider string `validate:"oneof=openweathermap openmeteo none"`

	Sensor struct {
		DeviceID string
		Token    string
		BaseURL  string `validate:"required,url"`
	}

	Transit struct {
		AppID   string
		AppKey  string
		Mode    string `validate:"required"`
		BaseURL string `validate:"required,url"`
	}

	Client struct {
		Timeout          time.Duration `validate:"gt=0"`
		BreakerThreshold int           `validate:"gte=1"`
		BreakerTimeout   time.Duration `validate:"gt=0"`
	}

	Scheduler struct {
		PollInterval      time.Duration `validate:"gt=0"`
		RateLimitCooldown time.Duration `validate:"gt=0"`
		RetryInterval     time.Duration `validate:"gt=0"`
		CycleTimeout      time.Duration `validate:"gt=0"`
	}

	History struct {
		Size   int           `validate:"gte=1"`
		MaxAge time.Duration `validate:"gte=0"`
	}

	MQTT struct {
		Broker   string
		ClientID string
		Topic    string
		Username string
		Password string
	}

	Engine EngineConfig
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.Server.Port = getEnv("FIBER_PORT", "3000")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))

	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnv("LOG_FORMAT", "json")

	cfg.MeteoProvider = getEnv("METEO_PROVIDER", "openweathermap")
	cfg.OpenWeather.APIKey = getEnv("OWM_KEY", "")
	cfg.OpenWeather.CityID = getEnv("OWM_CITY_ID", "3128760")
	cfg.OpenWeather.BaseURL = getEnv("OWM_URL", "https://api.openweathermap.org/data/2.5")
	cfg.OpenMeteo.BaseURL = getEnv("OPENMETEO_URL", "https://api.open-meteo.com/v1")
	cfg.OpenMeteo.Latitude = parseFloat(getEnv("METEO_LATITUDE", "41.3888"))
	cfg.OpenMeteo.Longitude = parseFloat(getEnv("METEO_LONGITUDE", "2.1590"))

	cfg.Sensor.DeviceID = getEnv("SENSOR_DEVICE_ID", "")
	cfg.Sensor.Token = getEnv("SENSOR_TOKEN", "")
	cfg.Sensor.BaseURL = getEnv("SENSOR_URL", "https://api.smartcitizen.me/v0")

	cfg.Transit.AppID = getEnv("TMB_APP_ID", "")
	cfg.Transit.AppKey = getEnv("TMB_APP_KEY", "")
	cfg.Transit.Mode = getEnv("TMB_MODE", "metro")
	cfg.Transit.BaseURL = getEnv("TMB_URL", "https://api.tmb.cat/v1")

	cfg.Client.Timeout = parseDuration(getEnv("FETCH_TIMEOUT", "8s"))
	cfg.Client.BreakerThreshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.Client.BreakerTimeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	cfg.Scheduler.PollInterval = parseDuration(getEnv("POLL_INTERVAL", "5m"))
	cfg.Scheduler.RateLimitCooldown = parseDuration(getEnv("RATE_LIMIT_COOLDOWN", "15m"))
	cfg.Scheduler.RetryInterval = parseDuration(getEnv("RETRY_INTERVAL", "1m"))
	cfg.Scheduler.CycleTimeout = parseDuration(getEnv("CYCLE_TIMEOUT", "30s"))

	cfg.History.Size = parseInt(getEnv("HISTORY_SIZE", "288"))
	cfg.History.MaxAge = parseDuration(getEnv("HISTORY_MAX_AGE", "24h"))

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "emotions-in-transit")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "emotions/state")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	cfg.Engine = DefaultEngineConfig()
	cfg.Engine.MinDwell = parseDuration(getEnv("EMOTION_MIN_DWELL", "0s"))

	if path := getEnv("THRESHOLDS_FILE", ""); path != "" {
		if err := LoadEngineFile(path, &cfg.Engine); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEngineFile overlays bounds and thresholds from a YAML/JSON/TOML file.
// Keys absent from the file keep the values already in engine.
func LoadEngineFile(path string, engine *EngineConfig) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read thresholds file: %w", err)
	}
	if err := v.Unmarshal(engine); err != nil {
		return fmt.Errorf("failed to unmarshal thresholds file: %w", err)
	}

	zap.L().Info("Engine thresholds loaded", zap.String("path", path))
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("%w: MQTT_TOPIC is required when MQTT_BROKER is set", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
