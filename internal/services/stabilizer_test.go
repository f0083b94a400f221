package services

import (
	"testing"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStabilizerDisabled(t *testing.T) {
	s := NewStabilizer(0)
	now := time.Now()

	s.Accept(models.EmotionActiveHope, now)
	assert.Equal(t, models.EmotionUrbanAnger, s.Propose(models.EmotionUrbanAnger, now.Add(time.Second)))
}

func TestStabilizerHoldsLabel(t *testing.T) {
	s := NewStabilizer(10 * time.Minute)
	start := time.Now()

	// first label passes through
	assert.Equal(t, models.EmotionActiveHope, s.Propose(models.EmotionActiveHope, start))
	s.Accept(models.EmotionActiveHope, start)

	held := s.Propose(models.EmotionUrbanAnger, start.Add(5*time.Minute))
	assert.Equal(t, models.EmotionActiveHope, held)
	s.Accept(held, start.Add(5*time.Minute))

	switched := s.Propose(models.EmotionUrbanAnger, start.Add(10*time.Minute))
	assert.Equal(t, models.EmotionUrbanAnger, switched)
	s.Accept(switched, start.Add(10*time.Minute))

	// the new label now has to dwell too
	assert.Equal(t, models.EmotionUrbanAnger, s.Propose(models.EmotionSolastalgia, start.Add(12*time.Minute)))
}
