// Package handler implements the status API endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botsentinel/botsentinel/internal/api/models"
	"github.com/botsentinel/botsentinel/internal/api/response"
	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/scheduler"
)

// StatusHandler serves the read-only monitoring surface.
type StatusHandler struct {
	version   string
	buildTime string
	repo      bot.Repository
	sweeper   *scheduler.Sweeper
	engine    *failover.Engine
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(version, buildTime string, repo bot.Repository, sweeper *scheduler.Sweeper, engine *failover.Engine) *StatusHandler {
	return &StatusHandler{
		version:   version,
		buildTime: buildTime,
		repo:      repo,
		sweeper:   sweeper,
		engine:    engine,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// SystemStatus handles GET /v1/ops/status.
func (h *StatusHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to load pool statistics")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{
		Status:    "ok",
		Version:   h.version,
		BuildTime: h.buildTime,
		Pool:      *stats,
		Sweeps:    h.sweeper.Snapshot(),
		Failover:  h.engine.Metrics(),
		Time:      time.Now().UTC(),
	})
}

// ListBots handles GET /v1/bots.
func (h *StatusHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := h.repo.List(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list bots")
		return
	}

	response.JSON(w, r, http.StatusOK, models.BotListResponse{
		Bots:  bots,
		Count: len(bots),
	})
}

// GetBot handles GET /v1/bots/{botId}. The payload includes the latest sweep
// report when one exists.
func (h *StatusHandler) GetBot(w http.ResponseWriter, r *http.Request) {
	id, err := botIDParam(r)
	if err != nil {
		response.BadRequest(w, r, "invalid bot id")
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, bot.ErrBotNotFound) {
			response.NotFound(w, r, "bot not found")
			return
		}
		response.InternalError(w, r, "failed to load bot")
		return
	}

	response.JSON(w, r, http.StatusOK, models.BotDetail{
		Bot:    b,
		Report: h.sweeper.LatestReport(id),
	})
}

func botIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "botId"), 10, 64)
}
