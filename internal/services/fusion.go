package services

import (
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
)

// Fuse merges one cycle's source results onto the previous state. Fields a
// source did not deliver keep their previous value. The emotion label is left
// untouched; classification runs on the fused state afterwards.
func Fuse(prev models.NormalizedState, results []models.SourceResult, now time.Time, cfg config.EngineConfig) models.NormalizedState {
	b := cfg.Bounds
	th := cfg.Thresholds

	next := prev.Clone()
	next.Meta.Timestamp = now.UnixMilli()
	next.Meta.Sources = []models.Source{}

	var meteo, sensor, transit *models.RawReading
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		next.Meta.Sources = append(next.Meta.Sources, r.Source)
		switch r.Source {
		case models.SourceMeteo:
			meteo = &r.Reading
		case models.SourceSensor:
			sensor = &r.Reading
		case models.SourceTransit:
			transit = &r.Reading
		}
	}

	switch {
	case meteo != nil && sensor != nil:
		next.Meta.Mode = models.ModeReal
	case sensor != nil:
		next.Meta.Mode = models.ModeSensorOnly
	case meteo != nil:
		next.Meta.Mode = models.ModeMeteoOnly
	default:
		next.Meta.Mode = models.ModeSimulated
		sim := SimulatedReading(now)
		meteo, sensor = &sim, &sim
	}

	w := &next.Weather
	if sensor != nil && present(sensor.Temperature) {
		w.Temperature = sanitize(sensor.Temperature, b.Temperature, w.Temperature)
	} else if meteo != nil {
		w.Temperature = sanitize(meteo.Temperature, b.Temperature, w.Temperature)
	}
	if sensor != nil && present(sensor.Humidity) {
		w.Humidity = sanitize(sensor.Humidity, b.Humidity, w.Humidity)
	} else if meteo != nil {
		w.Humidity = sanitize(meteo.Humidity, b.Humidity, w.Humidity)
	}
	if meteo != nil {
		w.WindSpeed = sanitize(meteo.WindSpeed, b.WindSpeed, w.WindSpeed)
		w.WindDirection = sanitize(meteo.WindDirection, b.WindDirection, w.WindDirection)
		w.Pressure = sanitize(meteo.Pressure, b.Pressure, w.Pressure)
		w.Precipitation = sanitize(meteo.Precipitation, b.Precipitation, w.Precipitation)
		if meteo.Description != "" {
			w.Description = meteo.Description
		}
	}

	env := &next.Environment
	if sensor != nil {
		env.NoiseLevel = sanitize(sensor.NoiseDB, b.Noise, env.NoiseLevel)
		env.AirQuality = sanitize(sensor.Particulate, b.Particulate, env.AirQuality)
		env.CO2 = sanitize(sensor.CO2, b.CO2, env.CO2)
	}
	switch {
	case next.Meta.Mode == models.ModeSimulated || next.Meta.Mode == models.ModeMeteoOnly:
		env.LightLevel = ClockLightLevel(now)
	case present(sensor.LightLux):
		env.LightLevel = NormalizeRange(*sensor.LightLux, b.LightLux)
	}
	env.NoiseFrequencyBand = noiseBand(env.NoiseLevel, th)

	tr := &next.Transport
	observed := false
	if transit != nil && transit.ActiveLines != nil && *transit.ActiveLines >= 0 {
		tr.ActiveLines = *transit.ActiveLines
		observed = true
	}
	tr.Congestion = congestion(env.NoiseLevel, env.CO2, tr.ActiveLines, observed, cfg)
	tr.FlowRhythm = env.LightLevel

	next.Meta.Period = period(env.LightLevel, env.NoiseLevel, th)
	return next
}

// congestion blends noise and CO2 stress onto a 0-10 scale. When transit data
// was observed this cycle and too few lines run, the index is damped.
func congestion(noise, co2 float64, activeLines int, observed bool, cfg config.EngineConfig) float64 {
	th := cfg.Thresholds
	noiseStress := NormalizeRange(noise, cfg.Bounds.NoiseStress)
	co2Stress := NormalizeRange(co2, cfg.Bounds.CO2Stress)

	c := 10 * (th.NoiseWeight*noiseStress + (1-th.NoiseWeight)*co2Stress)
	if observed && activeLines < th.MinServiceLines {
		c *= th.OfflineDamping
	}
	return Clamp(c, 0, 10)
}

func noiseBand(noise float64, th config.Thresholds) models.NoiseBand {
	switch {
	case noise > th.HighNoiseDB:
		return models.NoiseBandHigh
	case noise > th.MidNoiseDB:
		return models.NoiseBandMid
	default:
		return models.NoiseBandLow
	}
}

func period(light, noise float64, th config.Thresholds) models.Period {
	switch {
	case light > th.DayLightLevel:
		return models.PeriodDay
	case noise > th.EveningNoiseDB:
		return models.PeriodEvening
	default:
		return models.PeriodNight
	}
}
