package services

import (
	"math"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
)

// Barcelona environmental ordinance reference levels, in dBA.
const (
	dayNoiseBase     = 65.0 // Ld, 07:00-21:00
	eveningNoiseBase = 55.0 // Le, 21:00-23:00
	nightNoiseBase   = 45.0 // Ln, 23:00-07:00
)

// ClockLightLevel is the light curve used when no light sensor is available:
// full daylight 07-19h, dusk 19-21h, dark otherwise.
func ClockLightLevel(t time.Time) float64 {
	h := t.Hour()
	switch {
	case h >= 7 && h < 19:
		return 1.0
	case h >= 19 && h < 21:
		return 0.5
	default:
		return 0.1
	}
}

func ordinanceNoiseBase(t time.Time) float64 {
	h := t.Hour()
	switch {
	case h >= 7 && h < 21:
		return dayNoiseBase
	case h >= 21 && h < 23:
		return eveningNoiseBase
	default:
		return nightNoiseBase
	}
}

// trafficIndex estimates road load in [0, 1] from the clock alone. Weekdays
// peak around 08:30 and 18:30; weekends have one soft afternoon bump.
func trafficIndex(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60

	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Clamp(0.3+0.2*math.Sin((hour-14)/4), 0, 1)
	}

	morning := math.Max(0, 1-math.Abs(hour-8.5)/2)
	evening := math.Max(0, 1-math.Abs(hour-18.5)/2)
	return 0.2 + 0.7*math.Max(morning, evening)
}

// SimulatedReading synthesises a full reading for t. It is deterministic so
// the simulated mode can be tested and replayed.
func SimulatedReading(t time.Time) models.RawReading {
	traffic := trafficIndex(t)
	minute := float64(t.Minute()) + float64(t.Second())/60
	hour := float64(t.Hour()) + minute/60

	// up to +10 dB from traffic plus a slow ±2.5 dB wobble
	noise := ordinanceNoiseBase(t) + traffic*10 + 2.5*math.Sin(2*math.Pi*minute/60)
	pm := math.Max(5, traffic*10*4)
	co2 := 420 + 300*traffic
	lux := ClockLightLevel(t) * 1000

	diurnal := math.Sin(2 * math.Pi * (hour - 9) / 24) // peaks at 15h
	temp := 20.5 + 2.5*diurnal
	humidity := 60 - 10*diurnal
	pressure := 1013 + 3*math.Sin(2*math.Pi*hour/24)
	wind := 10 + 5*math.Sin(2*math.Pi*(hour-6)/24)
	windDir := math.Mod(hour*15, 360)

	return models.RawReading{
		Temperature:   models.Float(temp),
		Humidity:      models.Float(humidity),
		WindSpeed:     models.Float(wind),
		WindDirection: models.Float(windDir),
		Pressure:      models.Float(pressure),
		Precipitation: models.Float(0),
		Description:   "simulated",
		NoiseDB:       models.Float(noise),
		LightLux:      models.Float(lux),
		Particulate:   models.Float(pm),
		CO2:           models.Float(co2),
	}
}
