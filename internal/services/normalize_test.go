package services

import (
	"math"
	"testing"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(30, 30, 90))
	assert.Equal(t, 1.0, Normalize(90, 30, 90))
	assert.Equal(t, 0.5, Normalize(60, 30, 90))
	assert.Equal(t, 0.0, Normalize(-500, 30, 90))
	assert.Equal(t, 1.0, Normalize(500, 30, 90))
}

func TestNormalizeNonNumericDefaultsToMidScale(t *testing.T) {
	assert.Equal(t, 0.5, Normalize(math.NaN(), 0, 1))
	assert.Equal(t, 0.5, Normalize(math.Inf(1), 0, 1))
	assert.Equal(t, 0.5, Normalize(math.Inf(-1), 0, 1))
	assert.Equal(t, 0.5, Normalize(3, 1, 1))
}

func TestSanitize(t *testing.T) {
	r := config.Range{Min: 0, Max: 100}

	assert.Equal(t, 42.0, sanitize(nil, r, 42))
	assert.Equal(t, 42.0, sanitize(models.Float(math.NaN()), r, 42))
	assert.Equal(t, 100.0, sanitize(models.Float(130), r, 42))
	assert.Equal(t, 7.0, sanitize(models.Float(7), r, 42))
}

func TestClockLightLevel(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 3, 4, h, 30, 0, 0, time.UTC) }

	assert.Equal(t, 0.1, ClockLightLevel(at(6)))
	assert.Equal(t, 1.0, ClockLightLevel(at(7)))
	assert.Equal(t, 1.0, ClockLightLevel(at(18)))
	assert.Equal(t, 0.5, ClockLightLevel(at(19)))
	assert.Equal(t, 0.5, ClockLightLevel(at(20)))
	assert.Equal(t, 0.1, ClockLightLevel(at(21)))
}

func TestSimulatedReadingDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC) // Monday morning peak

	a := SimulatedReading(ts)
	b := SimulatedReading(ts)
	assert.Equal(t, a, b)

	assert.InDelta(t, 65+9, *a.NoiseDB, 1e-9)
	assert.InDelta(t, 36, *a.Particulate, 1e-9)
	assert.InDelta(t, 420+270, *a.CO2, 1e-9)
	assert.Equal(t, 1000.0, *a.LightLux)
	assert.Equal(t, "simulated", a.Description)
}

func TestSimulatedReadingNight(t *testing.T) {
	ts := time.Date(2024, 3, 9, 3, 0, 0, 0, time.UTC) // Saturday night
	r := SimulatedReading(ts)

	assert.Less(t, *r.NoiseDB, 55.0)
	assert.GreaterOrEqual(t, *r.Particulate, 5.0)
	assert.Equal(t, 100.0, *r.LightLux)
}
