package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticFetcher(res models.SourceResult) Fetcher {
	return FetcherFunc{Src: res.Source, Fn: func(ctx context.Context) models.SourceResult { return res }}
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []models.NormalizedState
	err    error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(ctx context.Context, s models.NormalizedState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
	return p.err
}

func newTestEngine(fetchers []Fetcher, pubs ...StatePublisher) *DataEngine {
	return NewDataEngine(fetchers, EngineOptions{
		Config:     config.DefaultEngineConfig(),
		Clock:      func() time.Time { return noon },
		History:    NewStateHistory(10, 0, zap.NewNop()),
		Publishers: pubs,
	}, zap.NewNop())
}

func TestEngineInitialState(t *testing.T) {
	e := newTestEngine(nil)
	s := e.GetCurrentState()

	assert.Equal(t, models.ModeInit, s.Meta.Mode)
	assert.Equal(t, models.EmotionActiveHope, s.Meta.Emotion)
	assert.Equal(t, 0, e.History().Len())
}

func TestEngineCollectDoesNotMutate(t *testing.T) {
	e := newTestEngine([]Fetcher{staticFetcher(meteoResult()), staticFetcher(sensorResult())})

	report := e.Collect(context.Background())
	require.NotNil(t, report)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, OutcomeOK, report.Outcome)
	assert.Equal(t, models.ModeReal, report.State.Meta.Mode)
	assert.Equal(t, models.ModeInit, e.GetCurrentState().Meta.Mode)

	e.Commit(report)
	assert.Equal(t, models.ModeReal, e.GetCurrentState().Meta.Mode)
	assert.Equal(t, 1, e.History().Len())
	assert.Equal(t, int64(1), e.GetStats().Cycles)
}

func TestEngineRunCycleClassifies(t *testing.T) {
	loud := sensorResult()
	loud.Reading.NoiseDB = models.Float(82)

	e := newTestEngine([]Fetcher{staticFetcher(meteoResult()), staticFetcher(loud)})
	report := e.RunCycle(context.Background())

	assert.Equal(t, models.EmotionUrbanAnger, report.RawEmotion)
	assert.Equal(t, models.EmotionUrbanAnger, e.GetCurrentState().Meta.Emotion)
	assert.Equal(t, models.NoiseBandHigh, e.GetCurrentState().Environment.NoiseFrequencyBand)
}

func TestEngineOutcome(t *testing.T) {
	tests := []struct {
		name    string
		results []models.SourceResult
		want    Outcome
	}{
		{"all ok", []models.SourceResult{meteoResult(), sensorResult()}, OutcomeOK},
		{"one unavailable", []models.SourceResult{meteoResult(), failed(models.SourceSensor, models.StatusUnavailable)}, OutcomeDegraded},
		{"rate limit wins", []models.SourceResult{
			failed(models.SourceMeteo, models.StatusUnavailable),
			failed(models.SourceSensor, models.StatusRateLimited),
		}, OutcomeRateLimited},
		{"no fetchers", nil, OutcomeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeOf(tt.results))
		})
	}
}

func TestEngineSlowTransitDoesNotLoseOtherFields(t *testing.T) {
	slowTransit := FetcherFunc{Src: models.SourceTransit, Fn: func(ctx context.Context) models.SourceResult {
		select {
		case <-ctx.Done():
			return models.SourceResult{Status: models.StatusUnavailable, Err: ctx.Err()}
		case <-time.After(5 * time.Second):
			return transitResult(8)
		}
	}}

	e := newTestEngine([]Fetcher{staticFetcher(meteoResult()), staticFetcher(sensorResult()), slowTransit})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	report := e.RunCycle(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)

	s := e.GetCurrentState()
	assert.Equal(t, OutcomeDegraded, report.Outcome)
	assert.Equal(t, models.ModeReal, s.Meta.Mode)
	assert.Equal(t, 26.0, s.Weather.Temperature)
	assert.Equal(t, 62.0, s.Environment.NoiseLevel)
	assert.Equal(t, 0, s.Transport.ActiveLines)
}

func TestEngineFetchersRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(3)
	release := make(chan struct{})

	mk := func(res models.SourceResult) Fetcher {
		return FetcherFunc{Src: res.Source, Fn: func(ctx context.Context) models.SourceResult {
			started.Done()
			<-release
			return res
		}}
	}

	e := newTestEngine([]Fetcher{mk(meteoResult()), mk(sensorResult()), mk(transitResult(4))})

	done := make(chan *CycleReport)
	go func() { done <- e.Collect(context.Background()) }()

	// all three must be in flight at once before any returns
	started.Wait()
	close(release)

	select {
	case report := <-done:
		assert.Len(t, report.Results, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("collect did not finish")
	}
}

func TestEngineGetCurrentStateIsCopy(t *testing.T) {
	e := newTestEngine([]Fetcher{staticFetcher(meteoResult())})
	e.RunCycle(context.Background())

	s := e.GetCurrentState()
	require.NotEmpty(t, s.Meta.Sources)
	s.Meta.Sources[0] = models.SourceTransit
	s.Weather.Temperature = -99

	fresh := e.GetCurrentState()
	assert.Equal(t, models.SourceMeteo, fresh.Meta.Sources[0])
	assert.Equal(t, 24.0, fresh.Weather.Temperature)
}

func TestEnginePublishes(t *testing.T) {
	ok := &recordingPublisher{}
	broken := &recordingPublisher{err: errors.New("broker down")}
	e := newTestEngine([]Fetcher{staticFetcher(sensorResult())}, ok, broken)

	e.RunCycle(context.Background())
	e.RunCycle(context.Background())

	assert.Len(t, ok.states, 2)
	assert.Len(t, broken.states, 2)
	assert.Equal(t, models.ModeSensorOnly, ok.states[1].Meta.Mode)
}

func TestEngineStats(t *testing.T) {
	e := newTestEngine([]Fetcher{
		staticFetcher(meteoResult()),
		staticFetcher(failed(models.SourceSensor, models.StatusRateLimited)),
	})
	e.RunCycle(context.Background())

	stats := e.GetStats()
	assert.Equal(t, int64(1), stats.Cycles)
	assert.Equal(t, OutcomeRateLimited, stats.LastOutcome)
	assert.Equal(t, int64(1), stats.Sources[models.SourceMeteo].OK)
	assert.Equal(t, int64(1), stats.Sources[models.SourceSensor].RateLimited)

	// returned stats are detached from the engine
	stats.Sources[models.SourceMeteo].OK = 100
	assert.Equal(t, int64(1), e.GetStats().Sources[models.SourceMeteo].OK)
}

func TestEngineStatsCountOnlyCommittedCycles(t *testing.T) {
	e := newTestEngine([]Fetcher{staticFetcher(transitResult(7))})

	report := e.Collect(context.Background())
	assert.Equal(t, int64(0), e.GetStats().Sources[models.SourceTransit].OK)
	_, ok := e.LastResult(models.SourceTransit)
	assert.False(t, ok)

	e.Commit(report)
	stats := e.GetStats()
	assert.Equal(t, int64(1), stats.Sources[models.SourceTransit].OK)
	assert.Equal(t, noon, stats.Sources[models.SourceTransit].LastFetch)

	last, ok := e.LastResult(models.SourceTransit)
	require.True(t, ok)
	assert.Equal(t, 7, *last.Reading.ActiveLines)
}

func TestEngineConcurrentReaders(t *testing.T) {
	e := newTestEngine([]Fetcher{staticFetcher(meteoResult()), staticFetcher(sensorResult())})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := e.GetCurrentState()
				assert.True(t, s.Meta.Emotion.Valid())
			}
		}()
	}
	for i := 0; i < 10; i++ {
		e.RunCycle(context.Background())
	}
	wg.Wait()
}
