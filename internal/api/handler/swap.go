package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/botsentinel/botsentinel/internal/api/middleware"
	"github.com/botsentinel/botsentinel/internal/api/models"
	"github.com/botsentinel/botsentinel/internal/api/response"
	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/failover"
)

// SwapHandler serves the operator-forced failover endpoint.
type SwapHandler struct {
	engine *failover.Engine
}

// NewSwapHandler creates a swap handler.
func NewSwapHandler(engine *failover.Engine) *SwapHandler {
	return &SwapHandler{engine: engine}
}

// ForceSwap handles POST /v1/bots/{botId}/swap. It goes through the same
// path as a threshold crossing, so a sweep racing the operator still yields
// a single transition.
func (h *SwapHandler) ForceSwap(w http.ResponseWriter, r *http.Request) {
	id, err := botIDParam(r)
	if err != nil {
		response.BadRequest(w, r, "invalid bot id")
		return
	}

	operator := middleware.GetOperator(r.Context())
	result, err := h.engine.Swap(r.Context(), id, fmt.Sprintf("manual swap requested by %s", operator))
	if err != nil {
		if errors.Is(err, bot.ErrBotNotFound) {
			response.NotFound(w, r, "bot not found")
			return
		}
		response.InternalError(w, r, "swap failed")
		return
	}

	if result.NoOp {
		response.Conflict(w, r, "bot is not active")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SwapResponse{
		Result:   *result,
		Operator: operator,
	})
}
