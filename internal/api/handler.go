package api

import (
	"errors"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/bobby-s-dev/emotions-in-transit/internal/scheduler"
	"github.com/bobby-s-dev/emotions-in-transit/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var validate = validator.New()

// StateReader is the read side of the data engine.
type StateReader interface {
	GetCurrentState() models.NormalizedState
	GetStats() services.EngineStats
	History() *services.StateHistory
	LastResult(src models.Source) (models.SourceResult, bool)
}

// CycleTrigger is the part of the scheduler the API drives.
type CycleTrigger interface {
	ForceRun() error
	IsRunning() bool
	GetStatus() map[string]interface{}
}

type Handler struct {
	engine    StateReader
	scheduler CycleTrigger
	logger    *zap.Logger
	startTime time.Time
}

func NewHandler(engine StateReader, scheduler CycleTrigger, logger *zap.Logger) *Handler {
	return &Handler{
		engine:    engine,
		scheduler: scheduler,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetState handles GET /api/v1/state and GET /api/weather
func (h *Handler) GetState(c *fiber.Ctx) error {
	return c.JSON(h.engine.GetCurrentState())
}

type historyQuery struct {
	Limit int `query:"limit" validate:"gte=1,lte=500"`
}

// GetHistory handles GET /api/v1/history
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	q := historyQuery{Limit: 50}
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	history := h.engine.History()
	if history == nil {
		return c.JSON(fiber.Map{"count": 0, "entries": []services.HistoryEntry{}})
	}

	entries := history.Recent(q.Limit)
	return c.JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	stats := h.engine.GetStats()
	state := h.engine.GetCurrentState()

	status := "healthy"
	switch {
	case stats.Cycles == 0:
		status = "starting"
	case stats.LastOutcome != services.OutcomeOK:
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"timestamp":    time.Now(),
		"last_cycle":   stats.LastCycleAt,
		"last_outcome": stats.LastOutcome,
		"captured_at":  state.CapturedAt().UTC(),
		"state_age":    time.Since(state.CapturedAt()).Round(time.Second).String(),
		"mode":         state.Meta.Mode,
		"emotion":      state.Meta.Emotion,
		"polling":      h.scheduler.IsRunning(),
		"uptime":       time.Since(h.startTime).String(),
	})
}

// fallbackActiveLines is reported when the metro network status is unknown.
const fallbackActiveLines = 5

// GetTransit handles GET /api/v1/transit
func (h *Handler) GetTransit(c *fiber.Ctx) error {
	src, ok := h.engine.GetStats().Sources[models.SourceTransit]
	if !ok {
		return fiber.NewError(fiber.StatusServiceUnavailable, "transit source not configured")
	}

	last, ok := h.engine.LastResult(models.SourceTransit)
	if ok && last.OK() && last.Reading.ActiveLines != nil {
		return c.JSON(fiber.Map{
			"active_lines": *last.Reading.ActiveLines,
			"status":       "OK",
			"source":       "TMB API",
			"timestamp":    src.LastFetch.UTC(),
		})
	}

	reason := "no transit data yet"
	switch {
	case ok && last.Err != nil:
		reason = last.Err.Error()
	case ok && last.OK():
		reason = "transit reading has no line count"
	case ok:
		reason = "transit source " + string(last.Status)
	}
	return c.JSON(fiber.Map{
		"active_lines": fallbackActiveLines,
		"status":       "ERROR_FALLBACK",
		"error":        reason,
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	metrics := fiber.Map{
		"engine":    h.engine.GetStats(),
		"scheduler": h.scheduler.GetStatus(),
	}
	if history := h.engine.History(); history != nil {
		metrics["history"] = history.Stats()
	}

	return c.JSON(fiber.Map{
		"metrics":   metrics,
		"timestamp": time.Now(),
	})
}

// Refresh handles POST /api/v1/refresh
func (h *Handler) Refresh(c *fiber.Ctx) error {
	err := h.scheduler.ForceRun()
	switch {
	case err == nil:
		h.logger.Info("Refresh requested", zap.String("request_id", requestID(c)))
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "accepted",
		})
	case errors.Is(err, scheduler.ErrCycleInFlight):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "in_flight",
		})
	case errors.Is(err, scheduler.ErrNotRunning):
		return fiber.NewError(fiber.StatusServiceUnavailable, "polling is stopped")
	default:
		return err
	}
}

// ErrorHandler renders every error as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	if code >= fiber.StatusInternalServerError {
		zap.L().Error("HTTP error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
