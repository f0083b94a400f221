package config

import (
	"fmt"
	"time"
)

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// Bounds holds the clamp range for every stored field plus the stress windows
// used by the congestion blend. Calibrated for Barcelona.
type Bounds struct {
	Temperature   Range `mapstructure:"temperature"`
	Humidity      Range `mapstructure:"humidity"`
	WindSpeed     Range `mapstructure:"wind_speed"`
	WindDirection Range `mapstructure:"wind_direction"`
	Pressure      Range `mapstructure:"pressure"`
	Precipitation Range `mapstructure:"precipitation"`
	Noise         Range `mapstructure:"noise"`
	Particulate   Range `mapstructure:"particulate"`
	CO2           Range `mapstructure:"co2"`
	LightLux      Range `mapstructure:"light_lux"`

	NoiseStress Range `mapstructure:"noise_stress"`
	CO2Stress   Range `mapstructure:"co2_stress"`
}

// Thresholds drive the derived quantities and the emotion classifier.
type Thresholds struct {
	// period
	DayLightLevel  float64 `mapstructure:"day_light_level"`
	EveningNoiseDB float64 `mapstructure:"evening_noise_db"`

	// congestion
	NoiseWeight     float64 `mapstructure:"noise_weight"`
	MinServiceLines int     `mapstructure:"min_service_lines"`
	OfflineDamping  float64 `mapstructure:"offline_damping"`

	// noise band
	MidNoiseDB  float64 `mapstructure:"mid_noise_db"`
	HighNoiseDB float64 `mapstructure:"high_noise_db"`

	// classifier
	AngerNoiseDB      float64 `mapstructure:"anger_noise_db"`
	HotTemperature    float64 `mapstructure:"hot_temperature"`
	HighCongestion    float64 `mapstructure:"high_congestion"`
	ToxicCO2          float64 `mapstructure:"toxic_co2"`
	ToxicParticulate  float64 `mapstructure:"toxic_particulate"`
	StormWind         float64 `mapstructure:"storm_wind"`
	RainMM            float64 `mapstructure:"rain_mm"`
	LowLightLevel     float64 `mapstructure:"low_light_level"`
	DaylightStartHour int     `mapstructure:"daylight_start_hour"`
	DaylightEndHour   int     `mapstructure:"daylight_end_hour"`
}

type ParticulateGuard struct {
	PlausibleMax float64 `mapstructure:"plausible_max"`
	SafeValue    float64 `mapstructure:"safe_value"`
}

type EngineConfig struct {
	Bounds     Bounds           `mapstructure:"bounds"`
	Thresholds Thresholds       `mapstructure:"thresholds"`
	Guard      ParticulateGuard `mapstructure:"particulate_guard"`
	// MinDwell > 0 holds a label for at least this long before switching.
	MinDwell time.Duration `mapstructure:"min_dwell"`
}

func DefaultBounds() Bounds {
	return Bounds{
		Temperature:   Range{Min: -30, Max: 55},
		Humidity:      Range{Min: 0, Max: 100},
		WindSpeed:     Range{Min: 0, Max: 200},
		WindDirection: Range{Min: 0, Max: 360},
		Pressure:      Range{Min: 870, Max: 1085},
		Precipitation: Range{Min: 0, Max: 300},
		Noise:         Range{Min: 20, Max: 130},
		Particulate:   Range{Min: 0, Max: 1000},
		CO2:           Range{Min: 300, Max: 5000},
		LightLux:      Range{Min: 0, Max: 1000},
		NoiseStress:   Range{Min: 30, Max: 90},
		CO2Stress:     Range{Min: 400, Max: 1500},
	}
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DayLightLevel:     0.6,
		EveningNoiseDB:    55,
		NoiseWeight:       0.7,
		MinServiceLines:   3,
		OfflineDamping:    0.5,
		MidNoiseDB:        50,
		HighNoiseDB:       70,
		AngerNoiseDB:      75,
		HotTemperature:    30,
		HighCongestion:    7,
		ToxicCO2:          1000,
		ToxicParticulate:  35,
		StormWind:         50,
		RainMM:            0,
		LowLightLevel:     0.3,
		DaylightStartHour: 7,
		DaylightEndHour:   19,
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Bounds:     DefaultBounds(),
		Thresholds: DefaultThresholds(),
		Guard:      ParticulateGuard{PlausibleMax: 1000, SafeValue: 25},
	}
}

func (e EngineConfig) Validate() error {
	ranges := map[string]Range{
		"temperature":    e.Bounds.Temperature,
		"humidity":       e.Bounds.Humidity,
		"wind_speed":     e.Bounds.WindSpeed,
		"wind_direction": e.Bounds.WindDirection,
		"pressure":       e.Bounds.Pressure,
		"precipitation":  e.Bounds.Precipitation,
		"noise":          e.Bounds.Noise,
		"particulate":    e.Bounds.Particulate,
		"co2":            e.Bounds.CO2,
		"light_lux":      e.Bounds.LightLux,
		"noise_stress":   e.Bounds.NoiseStress,
		"co2_stress":     e.Bounds.CO2Stress,
	}
	for name, r := range ranges {
		if r.Max <= r.Min {
			return fmt.Errorf("bounds.%s: max must be greater than min", name)
		}
	}

	t := e.Thresholds
	if t.NoiseWeight < 0 || t.NoiseWeight > 1 {
		return fmt.Errorf("thresholds.noise_weight must be between 0 and 1")
	}
	if t.OfflineDamping < 0 || t.OfflineDamping > 1 {
		return fmt.Errorf("thresholds.offline_damping must be between 0 and 1")
	}
	if t.DayLightLevel < 0 || t.DayLightLevel > 1 || t.LowLightLevel < 0 || t.LowLightLevel > 1 {
		return fmt.Errorf("thresholds light levels must be between 0 and 1")
	}
	if t.DaylightStartHour < 0 || t.DaylightEndHour > 24 || t.DaylightStartHour >= t.DaylightEndHour {
		return fmt.Errorf("thresholds daylight hours must satisfy 0 <= start < end <= 24")
	}
	if e.Guard.PlausibleMax <= 0 || e.Guard.SafeValue < 0 {
		return fmt.Errorf("particulate_guard values must be positive")
	}
	if e.MinDwell < 0 {
		return fmt.Errorf("min_dwell must not be negative")
	}
	return nil
}
