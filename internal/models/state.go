package models

import (
	"time"
)

// Emotion is the label produced by the classifier. The string values are the
// ones the installation frontend switches on.
type Emotion string

const (
	EmotionUrbanAnger  Emotion = "URBAN_ANGER"
	EmotionEcoAnxiety  Emotion = "ECO_ANXIETY"
	EmotionSolastalgia Emotion = "SOLASTALGIA"
	EmotionActiveHope  Emotion = "ACTIVE_HOPE"
)

// Valid reports whether e is one of the four known labels.
func (e Emotion) Valid() bool {
	switch e {
	case EmotionUrbanAnger, EmotionEcoAnxiety, EmotionSolastalgia, EmotionActiveHope:
		return true
	}
	return false
}

type Period string

const (
	PeriodDay     Period = "Day"
	PeriodEvening Period = "Evening"
	PeriodNight   Period = "Night"
)

// Mode records which upstream sources contributed to a state.
type Mode string

const (
	ModeInit       Mode = "INIT"
	ModeReal       Mode = "REAL"
	ModeSensorOnly Mode = "SENSOR_ONLY"
	ModeMeteoOnly  Mode = "METEO_ONLY"
	ModeSimulated  Mode = "SIMULATED"
)

type NoiseBand string

const (
	NoiseBandLow  NoiseBand = "LOW"
	NoiseBandMid  NoiseBand = "MID"
	NoiseBandHigh NoiseBand = "HIGH"
)

type Meta struct {
	Timestamp int64    `json:"timestamp"` // unix millis
	Period    Period   `json:"period"`
	Mode      Mode     `json:"mode"`
	Emotion   Emotion  `json:"emotion"`
	Sources   []Source `json:"sources"`
}

// Weather keeps physical units: °C, %, km/h, degrees, hPa, mm/h.
type Weather struct {
	Temperature   float64 `json:"temp"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDir"`
	Pressure      float64 `json:"pressure"`
	Precipitation float64 `json:"rain"`
	Description   string  `json:"description"`
}

type Environment struct {
	NoiseLevel         float64   `json:"noiseDb"`
	NoiseFrequencyBand NoiseBand `json:"noiseFreq"`
	AirQuality         float64   `json:"airQuality"` // PM2.5 µg/m³
	CO2                float64   `json:"co2"`        // ppm
	LightLevel         float64   `json:"lightLevel"` // 0-1
}

type Transport struct {
	Congestion  float64 `json:"congestion"` // 0-10
	ActiveLines int     `json:"activeLines"`
	FlowRhythm  float64 `json:"flowRhythm"` // 0-1
}

// NormalizedState is the fused snapshot served to the frontend.
type NormalizedState struct {
	Meta        Meta        `json:"meta"`
	Weather     Weather     `json:"weather"`
	Environment Environment `json:"environment"`
	Transport   Transport   `json:"transport"`
}

// DefaultState returns the state an engine holds before its first cycle.
func DefaultState(now time.Time) NormalizedState {
	return NormalizedState{
		Meta: Meta{
			Timestamp: now.UnixMilli(),
			Period:    PeriodDay,
			Mode:      ModeInit,
			Emotion:   EmotionActiveHope,
			Sources:   []Source{},
		},
		Weather: Weather{
			Temperature: 20,
			Humidity:    50,
			WindSpeed:   5,
			Pressure:    1013,
			Description: "init",
		},
		Environment: Environment{
			NoiseLevel:         50,
			NoiseFrequencyBand: NoiseBandLow,
			AirQuality:         10,
			CO2:                420,
			LightLevel:         0.5,
		},
		Transport: Transport{
			Congestion: 5,
			FlowRhythm: 0.5,
		},
	}
}

// Clone returns a deep copy safe to hand to readers.
func (s NormalizedState) Clone() NormalizedState {
	out := s
	out.Meta.Sources = append([]Source(nil), s.Meta.Sources...)
	if out.Meta.Sources == nil {
		out.Meta.Sources = []Source{}
	}
	return out
}

// CapturedAt converts the meta timestamp back to a time.Time.
func (s NormalizedState) CapturedAt() time.Time {
	return time.UnixMilli(s.Meta.Timestamp)
}
