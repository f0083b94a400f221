package models

import (
	"time"
)

// Source identifies one upstream data feed.
type Source string

const (
	SourceMeteo   Source = "meteo"
	SourceSensor  Source = "sensor"
	SourceTransit Source = "transit"
)

type FetchStatus string

const (
	StatusOK          FetchStatus = "ok"
	StatusUnavailable FetchStatus = "unavailable"
	StatusRateLimited FetchStatus = "rate_limited"
)

// RawReading is the subset of an upstream payload the engine needs.
// A nil field means the source did not supply it.
type RawReading struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"` // km/h
	WindDirection *float64 `json:"wind_direction,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	Precipitation *float64 `json:"precipitation,omitempty"`
	Description   string   `json:"description,omitempty"`

	NoiseDB     *float64 `json:"noise_db,omitempty"`
	LightLux    *float64 `json:"light_lux,omitempty"`
	Particulate *float64 `json:"particulate,omitempty"`
	CO2         *float64 `json:"co2,omitempty"`

	ActiveLines *int `json:"active_lines,omitempty"`
}

// SourceResult is what one fetcher hands back for a cycle.
type SourceResult struct {
	Source   Source        `json:"source"`
	Status   FetchStatus   `json:"status"`
	Reading  RawReading    `json:"reading"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the result carries usable data.
func (r SourceResult) OK() bool {
	return r.Status == StatusOK
}

// Float returns a pointer to v. Convenience for building readings.
func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}
