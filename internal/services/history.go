package services

import (
	"sync"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const historySweepSpec = "@every 1m"

// HistoryEntry is one committed cycle.
type HistoryEntry struct {
	CycleID    string                 `json:"cycleId"`
	Outcome    Outcome                `json:"outcome"`
	RecordedAt time.Time              `json:"recordedAt"`
	State      models.NormalizedState `json:"state"`
}

// StateHistory keeps the most recent committed states in memory, bounded by
// count and by age. Expired entries are swept by a cron job.
type StateHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry // oldest first
	maxSize int
	maxAge  time.Duration
	logger  *zap.Logger
	now     func() time.Time

	cron    *cron.Cron
	evicted int
}

func NewStateHistory(maxSize int, maxAge time.Duration, logger *zap.Logger) *StateHistory {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &StateHistory{
		entries: make([]HistoryEntry, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules the expiry sweep.
func (h *StateHistory) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(historySweepSpec, func() { h.cleanup() }); err != nil {
		return err
	}
	c.Start()
	h.cron = c

	h.logger.Info("History sweep started",
		zap.Int("max_size", h.maxSize),
		zap.Duration("max_age", h.maxAge))
	return nil
}

// Stop halts the sweep and waits for a running sweep to finish.
func (h *StateHistory) Stop() {
	h.mu.Lock()
	c := h.cron
	h.cron = nil
	h.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (h *StateHistory) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.State = entry.State.Clone()
	h.entries = append(h.entries, entry)

	if over := len(h.entries) - h.maxSize; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
		h.evicted += over
	}
}

// Recent returns up to n entries, newest first. Expired entries are skipped
// even if the sweep has not run yet.
func (h *StateHistory) Recent(n int) []HistoryEntry {
	if n <= 0 {
		return []HistoryEntry{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := h.cutoff()
	out := make([]HistoryEntry, 0, min(n, len(h.entries)))
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		e := h.entries[i]
		if !cutoff.IsZero() && e.RecordedAt.Before(cutoff) {
			break
		}
		e.State = e.State.Clone()
		out = append(out, e)
	}
	return out
}

func (h *StateHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *StateHistory) cutoff() time.Time {
	if h.maxAge <= 0 {
		return time.Time{}
	}
	return h.now().Add(-h.maxAge)
}

func (h *StateHistory) cleanup() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.cutoff()
	if cutoff.IsZero() {
		return 0
	}

	expired := 0
	for expired < len(h.entries) && h.entries[expired].RecordedAt.Before(cutoff) {
		expired++
	}
	if expired > 0 {
		h.entries = append(h.entries[:0:0], h.entries[expired:]...)
		h.evicted += expired
		h.logger.Debug("Cleaned expired history entries", zap.Int("count", expired))
	}
	return expired
}

func (h *StateHistory) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := map[string]interface{}{
		"entries":  len(h.entries),
		"max_size": h.maxSize,
		"max_age":  h.maxAge.String(),
		"evicted":  h.evicted,
	}
	if len(h.entries) > 0 {
		stats["oldest"] = h.entries[0].RecordedAt
		stats["newest"] = h.entries[len(h.entries)-1].RecordedAt
	}
	return stats
}
