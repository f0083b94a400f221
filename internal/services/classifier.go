package services

import (
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
)

// Indicators are the inputs the classifier looks at.
type Indicators struct {
	NoiseDB     float64
	Temperature float64
	Congestion  float64
	CO2         float64
	Particulate float64
	WindSpeed   float64 // km/h
	Rain        float64 // mm/h
	LightLevel  float64
	// Daytime is true when daylight is expected from the clock, regardless of
	// what the light sensor reports.
	Daytime bool
}

func IndicatorsFrom(s models.NormalizedState, now time.Time, th config.Thresholds) Indicators {
	return Indicators{
		NoiseDB:     s.Environment.NoiseLevel,
		Temperature: s.Weather.Temperature,
		Congestion:  s.Transport.Congestion,
		CO2:         s.Environment.CO2,
		Particulate: s.Environment.AirQuality,
		WindSpeed:   s.Weather.WindSpeed,
		Rain:        s.Weather.Precipitation,
		LightLevel:  s.Environment.LightLevel,
		Daytime:     isDaytime(now, th),
	}
}

func isDaytime(now time.Time, th config.Thresholds) bool {
	h := now.Hour()
	return h >= th.DaylightStartHour && h < th.DaylightEndHour
}

// Classify applies the rules in priority order; the first match wins.
func Classify(in Indicators, th config.Thresholds) models.Emotion {
	switch {
	case in.NoiseDB > th.AngerNoiseDB,
		in.Temperature > th.HotTemperature && in.Congestion > th.HighCongestion:
		return models.EmotionUrbanAnger

	case in.CO2 > th.ToxicCO2,
		in.Particulate > th.ToxicParticulate,
		in.WindSpeed > th.StormWind:
		return models.EmotionEcoAnxiety

	case in.Rain > th.RainMM,
		in.Daytime && in.LightLevel < th.LowLightLevel:
		return models.EmotionSolastalgia

	default:
		return models.EmotionActiveHope
	}
}
