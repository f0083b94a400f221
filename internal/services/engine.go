package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome summarises a cycle for the scheduler.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeDegraded    Outcome = "degraded"
)

// CycleReport is the result of Collect. It is not visible to readers until
// it is committed.
type CycleReport struct {
	ID         string                 `json:"id"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Results    []models.SourceResult  `json:"results"`
	State      models.NormalizedState `json:"state"`
	// RawEmotion is the classifier output before stabilisation.
	RawEmotion models.Emotion `json:"rawEmotion"`
	Outcome    Outcome        `json:"outcome"`
}

// StatePublisher receives every committed state.
type StatePublisher interface {
	Name() string
	Publish(ctx context.Context, state models.NormalizedState) error
}

type EngineOptions struct {
	Config     config.EngineConfig
	Clock      func() time.Time
	History    *StateHistory
	Publishers []StatePublisher
	// PublishTimeout bounds each publisher call. Defaults to 5s.
	PublishTimeout time.Duration
}

type SourceStats struct {
	OK          int64     `json:"ok"`
	Unavailable int64     `json:"unavailable"`
	RateLimited int64     `json:"rateLimited"`
	LastStatus  string    `json:"lastStatus"`
	LastError   string    `json:"lastError,omitempty"`
	LastFetch   time.Time `json:"lastFetch"`
}

type EngineStats struct {
	Cycles       int64                          `json:"cycles"`
	LastCycleID  string                         `json:"lastCycleId"`
	LastCycleAt  time.Time                      `json:"lastCycleAt"`
	LastDuration time.Duration                  `json:"lastDuration"`
	LastOutcome  Outcome                        `json:"lastOutcome"`
	Emotion      models.Emotion                 `json:"emotion"`
	Mode         models.Mode                    `json:"mode"`
	Sources      map[models.Source]*SourceStats `json:"sources"`
}

// DataEngine owns the current state. Cycles are driven from outside (see the
// scheduler); readers call GetCurrentState at any time.
type DataEngine struct {
	fetchers   []Fetcher
	cfg        config.EngineConfig
	clock      func() time.Time
	logger     *zap.Logger
	history    *StateHistory
	publishers []StatePublisher
	pubTimeout time.Duration
	stabilizer *Stabilizer

	state atomic.Pointer[models.NormalizedState]

	mu          sync.Mutex
	stats       EngineStats
	lastResults map[models.Source]models.SourceResult
}

func NewDataEngine(fetchers []Fetcher, opts EngineOptions, logger *zap.Logger) *DataEngine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}

	e := &DataEngine{
		fetchers:   fetchers,
		cfg:        opts.Config,
		clock:      opts.Clock,
		logger:     logger,
		history:    opts.History,
		publishers: opts.Publishers,
		pubTimeout: opts.PublishTimeout,
		stabilizer: NewStabilizer(opts.Config.MinDwell),
		stats: EngineStats{
			Sources: make(map[models.Source]*SourceStats),
		},
		lastResults: make(map[models.Source]models.SourceResult),
	}

	initial := models.DefaultState(opts.Clock())
	e.state.Store(&initial)

	for _, f := range fetchers {
		e.stats.Sources[f.Source()] = &SourceStats{}
	}

	logger.Info("Data engine initialized", zap.Int("fetchers", len(fetchers)))
	return e
}

// Collect runs one fetch-fuse-classify pass without touching the current
// state.
func (e *DataEngine) Collect(ctx context.Context) *CycleReport {
	report := &CycleReport{
		ID:        uuid.NewString(),
		StartedAt: e.clock(),
	}

	report.Results = fanOut(ctx, e.fetchers, e.logger)

	now := e.clock()
	prev := e.GetCurrentState()
	next := Fuse(prev, report.Results, now, e.cfg)

	report.RawEmotion = Classify(IndicatorsFrom(next, now, e.cfg.Thresholds), e.cfg.Thresholds)
	next.Meta.Emotion = e.stabilizer.Propose(report.RawEmotion, now)

	report.State = next
	report.Outcome = outcomeOf(report.Results)
	report.FinishedAt = now
	return report
}

// Commit publishes a collected report as the current state. Source counters
// only move here, so a report that is never committed leaves no trace.
func (e *DataEngine) Commit(report *CycleReport) {
	if report == nil {
		return
	}

	state := report.State.Clone()
	e.state.Store(&state)
	e.stabilizer.Accept(state.Meta.Emotion, report.FinishedAt)

	if e.history != nil {
		e.history.Add(HistoryEntry{
			CycleID:    report.ID,
			Outcome:    report.Outcome,
			RecordedAt: report.FinishedAt,
			State:      state,
		})
	}

	e.mu.Lock()
	e.stats.Cycles++
	e.stats.LastCycleID = report.ID
	e.stats.LastCycleAt = report.FinishedAt
	e.stats.LastDuration = report.FinishedAt.Sub(report.StartedAt)
	e.stats.LastOutcome = report.Outcome
	e.stats.Emotion = state.Meta.Emotion
	e.stats.Mode = state.Meta.Mode
	e.recordFetchesLocked(report.Results, report.FinishedAt)
	e.mu.Unlock()

	e.logger.Info("Cycle committed",
		zap.String("cycle_id", report.ID),
		zap.String("outcome", string(report.Outcome)),
		zap.String("mode", string(state.Meta.Mode)),
		zap.String("emotion", string(state.Meta.Emotion)),
		zap.String("period", string(state.Meta.Period)),
		zap.Float64("congestion", state.Transport.Congestion))

	e.publish(state)
}

// RunCycle collects and commits in one step.
func (e *DataEngine) RunCycle(ctx context.Context) *CycleReport {
	report := e.Collect(ctx)
	e.Commit(report)
	return report
}

// GetCurrentState returns a copy of the latest committed state.
func (e *DataEngine) GetCurrentState() models.NormalizedState {
	return e.state.Load().Clone()
}

func (e *DataEngine) GetStats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.stats
	out.Sources = make(map[models.Source]*SourceStats, len(e.stats.Sources))
	for k, v := range e.stats.Sources {
		s := *v
		out.Sources[k] = &s
	}
	return out
}

func (e *DataEngine) History() *StateHistory {
	return e.history
}

// LastResult returns the source's result from the latest committed cycle.
func (e *DataEngine) LastResult(src models.Source) (models.SourceResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.lastResults[src]
	return r, ok
}

func (e *DataEngine) recordFetchesLocked(results []models.SourceResult, at time.Time) {
	for _, r := range results {
		e.lastResults[r.Source] = r

		s, ok := e.stats.Sources[r.Source]
		if !ok {
			s = &SourceStats{}
			e.stats.Sources[r.Source] = s
		}
		switch r.Status {
		case models.StatusOK:
			s.OK++
		case models.StatusRateLimited:
			s.RateLimited++
		default:
			s.Unavailable++
		}
		s.LastStatus = string(r.Status)
		s.LastError = ""
		if r.Err != nil {
			s.LastError = r.Err.Error()
		}
		s.LastFetch = at
	}
}

func (e *DataEngine) publish(state models.NormalizedState) {
	for _, p := range e.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), e.pubTimeout)
		if err := p.Publish(ctx, state); err != nil {
			e.logger.Warn("Failed to publish state",
				zap.String("publisher", p.Name()),
				zap.Error(err))
		}
		cancel()
	}
}

func outcomeOf(results []models.SourceResult) Outcome {
	degraded := false
	for _, r := range results {
		switch r.Status {
		case models.StatusRateLimited:
			return OutcomeRateLimited
		case models.StatusUnavailable:
			degraded = true
		}
	}
	if degraded {
		return OutcomeDegraded
	}
	return OutcomeOK
}
