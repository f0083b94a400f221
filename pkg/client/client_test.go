package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testConfig = ClientConfig{
	Timeout:        2 * time.Second,
	Threshold:      3,
	BreakerTimeout: time.Minute,
}

func TestOpenWeatherClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "3128760", r.URL.Query().Get("id"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(`{
			"weather": [{"id": 500, "main": "Rain", "description": "light rain"}],
			"main": {"temp": 17.5, "pressure": 1009, "humidity": 82},
			"wind": {"speed": 5, "deg": 240},
			"rain": {"1h": 0.8},
			"name": "Barcelona",
			"cod": 200
		}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("secret", "3128760", srv.URL, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)

	require.NotNil(t, reading.Temperature)
	assert.Equal(t, 17.5, *reading.Temperature)
	assert.Equal(t, 82.0, *reading.Humidity)
	assert.Equal(t, 1009.0, *reading.Pressure)
	assert.InDelta(t, 18.0, *reading.WindSpeed, 1e-9)
	assert.Equal(t, 240.0, *reading.WindDirection)
	assert.Equal(t, 0.8, *reading.Precipitation)
	assert.Equal(t, "light rain", reading.Description)
	assert.Nil(t, reading.NoiseDB)
}

func TestOpenWeatherClient_NoRainMeansZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weather": [{"description": "clear sky"}], "main": {"temp": 22}, "wind": {"speed": 1}, "cod": 200}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("k", "1", srv.URL, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading.Precipitation)
	assert.Equal(t, 0.0, *reading.Precipitation)
	assert.Nil(t, reading.Humidity)
}

func TestOpenWeatherClient_NotConfigured(t *testing.T) {
	c := NewOpenWeatherClient("", "3128760", "http://127.0.0.1:0", testConfig, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBaseClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("k", "1", srv.URL, testConfig, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestBaseClient_RateLimitDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("k", "1", srv.URL, testConfig, zap.NewNop())
	for i := 0; i < 5; i++ {
		_, err := c.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
}

func TestBaseClient_ServerErrorOpensBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("k", "1", srv.URL, testConfig, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	}

	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestBaseClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testConfig
	cfg.Timeout = 20 * time.Millisecond
	c := NewTMBClient("id", "key", "metro", srv.URL, cfg, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
}

func TestSmartCitizenClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices/16549", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"id": 16549,
			"data": {
				"recorded_at": "2024-05-01T10:00:00Z",
				"sensors": [
					{"id": 53, "name": "ICS43432 - Noise", "unit": "dBA", "value": 62.4},
					{"id": 14, "name": "BH1730FVC - Light", "unit": "Lux", "value": 350},
					{"id": 87, "name": "PMS5003 - PM 2.5", "unit": "ug/m3", "value": 12},
					{"id": 112, "name": "Sensirion SCD30 - CO2", "unit": "ppm", "value": 610},
					{"id": 55, "name": "SHT31 - Temperature", "unit": "C", "value": 21.3},
					{"id": 56, "name": "SHT31 - Humidity", "unit": "%", "value": 48},
					{"id": 58, "name": "MPL3115A2 - Barometric Pressure", "unit": "kPa", "value": null}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewSmartCitizenClient("16549", "tok", srv.URL, DefaultParticulateGuard, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 62.4, *reading.NoiseDB)
	assert.Equal(t, 350.0, *reading.LightLux)
	assert.Equal(t, 12.0, *reading.Particulate)
	assert.Equal(t, 610.0, *reading.CO2)
	assert.Equal(t, 21.3, *reading.Temperature)
	assert.Equal(t, 48.0, *reading.Humidity)
	assert.Nil(t, reading.Pressure)
}

func TestSmartCitizenClient_ParticulateGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"data": {"sensors": [{"name": "PM 2.5", "value": 65535}]}}`))
	}))
	defer srv.Close()

	c := NewSmartCitizenClient("1", "", srv.URL, ParticulateGuard{PlausibleMax: 1000, SafeValue: 25}, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading.Particulate)
	assert.Equal(t, 25.0, *reading.Particulate)
}

func TestSmartCitizenClient_EmptyDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"sensors": []}}`))
	}))
	defer srv.Close()

	c := NewSmartCitizenClient("1", "", srv.URL, DefaultParticulateGuard, testConfig, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
}

func TestTMBClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transit/linies/metro", r.URL.Path)
		assert.Equal(t, "app", r.URL.Query().Get("app_id"))
		assert.Equal(t, "key", r.URL.Query().Get("app_key"))
		w.Write([]byte(`{"type": "FeatureCollection", "features": [
			{"id": "1", "properties": {"CODI_LINIA": 1, "NOM_LINIA": "L1"}},
			{"id": "2", "properties": {"CODI_LINIA": 2, "NOM_LINIA": "L2"}},
			{"id": "3", "properties": {"CODI_LINIA": 3, "NOM_LINIA": "L3"}}
		]}`))
	}))
	defer srv.Close()

	c := NewTMBClient("app", "key", "", srv.URL, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading.ActiveLines)
	assert.Equal(t, 3, *reading.ActiveLines)
}

func TestOpenMeteoClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "41.3888", r.URL.Query().Get("latitude"))
		w.Write([]byte(`{"current": {
			"temperature_2m": 19.2, "relative_humidity_2m": 70, "pressure_msl": 1015.2,
			"wind_speed_10m": 14.4, "wind_direction_10m": 90, "precipitation": 0, "weather_code": 3
		}}`))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(41.3888, 2.159, srv.URL, testConfig, zap.NewNop())
	reading, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19.2, *reading.Temperature)
	assert.Equal(t, 14.4, *reading.WindSpeed)
	assert.Equal(t, "Overcast", reading.Description)
}
