package services

import (
	"sync"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
)

// Stabilizer holds an emotion label for at least minDwell before letting it
// change, so the installation does not flicker on borderline readings.
// A zero minDwell passes every candidate through.
type Stabilizer struct {
	mu       sync.Mutex
	minDwell time.Duration
	current  models.Emotion
	since    time.Time
}

func NewStabilizer(minDwell time.Duration) *Stabilizer {
	return &Stabilizer{minDwell: minDwell}
}

// Propose returns the label to publish for candidate at now without
// recording anything.
func (s *Stabilizer) Propose(candidate models.Emotion, now time.Time) models.Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.minDwell <= 0 || s.current == "" || candidate == s.current {
		return candidate
	}
	if now.Sub(s.since) >= s.minDwell {
		return candidate
	}
	return s.current
}

// Accept records the label that was actually committed.
func (s *Stabilizer) Accept(e models.Emotion, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e != s.current {
		s.current = e
		s.since = now
	}
}
