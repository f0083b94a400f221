package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/services"
	"go.uber.org/zap"
)

var (
	ErrNotRunning    = errors.New("scheduler not running")
	ErrCycleInFlight = errors.New("cycle already in flight")
)

// Engine is the part of services.DataEngine the scheduler drives.
type Engine interface {
	Collect(ctx context.Context) *services.CycleReport
	Commit(report *services.CycleReport)
}

type Timer interface {
	Stop() bool
}

// AfterFunc arms a one-shot timer. time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

type Config struct {
	PollInterval      time.Duration
	RateLimitCooldown time.Duration
	RetryInterval     time.Duration
	CycleTimeout      time.Duration
}

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	// StateFusing covers committing the fused state.
	StateFusing State = "fusing"
)

type Option func(*Scheduler)

func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs one engine cycle at a time and picks the delay before the
// next one from the cycle outcome.
type Scheduler struct {
	engine    Engine
	cfg       Config
	logger    *zap.Logger
	afterFunc AfterFunc
	now       func() time.Time

	mu          sync.Mutex
	running     bool
	inFlight    bool
	generation  uint64
	timer       Timer
	timerSeq    uint64 // token of the armed timer; older fires are stale
	state       State
	lastRun     time.Time
	nextRun     time.Time
	lastDelay   time.Duration
	lastOutcome services.Outcome
	runs        int64
	discarded   int64

	// held while a report is being committed so Stop can wait for it
	commitMu sync.Mutex
	cycles   sync.WaitGroup
}

func NewScheduler(engine Engine, cfg Config, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now:   time.Now,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins polling with an immediate cycle. Calling it again while
// running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.generation++
	gen := s.generation
	claimed := s.claimLocked()
	s.mu.Unlock()

	s.logger.Info("Scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("rate_limit_cooldown", s.cfg.RateLimitCooldown),
		zap.Duration("retry_interval", s.cfg.RetryInterval))

	if claimed {
		s.cycles.Add(1)
		go s.execute(gen)
	}
}

// Stop cancels the pending timer. A cycle already in flight finishes its
// fetches but its result is dropped and it does not reschedule. Stop returns
// once no commit is in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.generation++
	s.disarmLocked()
	s.nextRun = time.Time{}
	s.mu.Unlock()

	s.commitMu.Lock()
	s.commitMu.Unlock()

	s.logger.Info("Scheduler stopped")
}

// ForceRun triggers a cycle now, replacing the pending timer.
func (s *Scheduler) ForceRun() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if !s.claimLocked() {
		s.mu.Unlock()
		return ErrCycleInFlight
	}
	s.disarmLocked()
	gen := s.generation
	s.mu.Unlock()

	s.logger.Info("Manually triggering cycle")
	s.cycles.Add(1)
	go s.execute(gen)
	return nil
}

func (s *Scheduler) claimLocked() bool {
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) armLocked(d time.Duration, gen uint64) {
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.afterFunc(d, func() { s.onTimer(gen, seq) })
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

func (s *Scheduler) onTimer(gen, seq uint64) {
	s.mu.Lock()
	if !s.running || gen != s.generation || seq != s.timerSeq || !s.claimLocked() {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.cycles.Add(1)
	s.execute(gen)
}

func (s *Scheduler) execute(gen uint64) {
	defer s.cycles.Done()

	s.mu.Lock()
	s.state = StateFetching
	s.lastRun = s.now()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	report := s.engine.Collect(ctx)
	cancel()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.inFlight = false
		s.state = StateIdle
		s.discarded++
		if s.running {
			// restarted while this cycle was in flight; Start could not claim
			s.armLocked(0, s.generation)
		}
		s.mu.Unlock()
		s.logger.Info("Discarding cycle result after stop", zap.String("cycle_id", report.ID))
		return
	}
	s.state = StateFusing
	s.mu.Unlock()

	s.engine.Commit(report)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	s.state = StateIdle
	s.runs++
	s.lastOutcome = report.Outcome

	delay := s.delayFor(report.Outcome)
	s.lastDelay = delay
	s.nextRun = s.now().Add(delay)
	s.armLocked(delay, gen)

	s.logger.Debug("Next cycle scheduled",
		zap.String("outcome", string(report.Outcome)),
		zap.Duration("delay", delay),
		zap.Time("next_run", s.nextRun))
}

func (s *Scheduler) delayFor(outcome services.Outcome) time.Duration {
	switch outcome {
	case services.OutcomeRateLimited:
		return s.cfg.RateLimitCooldown
	case services.OutcomeDegraded:
		return s.cfg.RetryInterval
	default:
		return s.cfg.PollInterval
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"running":             s.running,
		"state":               s.state,
		"in_flight":           s.inFlight,
		"poll_interval":       s.cfg.PollInterval.String(),
		"rate_limit_cooldown": s.cfg.RateLimitCooldown.String(),
		"retry_interval":      s.cfg.RetryInterval.String(),
		"last_run":            s.lastRun,
		"next_run":            s.nextRun,
		"last_delay":          s.lastDelay.String(),
		"last_outcome":        s.lastOutcome,
		"runs":                s.runs,
		"discarded":           s.discarded,
	}
}
