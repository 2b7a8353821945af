package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/core"
	"epigrid/internal/types"
)

// defaultHorizonDays is used when the horizon query parameter is absent.
const defaultHorizonDays = 7

// Forecaster fits and projects a metric's daily series.
type Forecaster interface {
	Forecast(ctx context.Context, metric types.Metric, horizon int) (*types.ForecastResult, error)
}

// ForecastHandler serves forecast queries over the collector's series.
type ForecastHandler struct {
	engine Forecaster
	logger *slog.Logger
}

// NewForecastHandler creates a ForecastHandler.
func NewForecastHandler(engine Forecaster, logger *slog.Logger) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{engine: engine, logger: logger}
}

// RegisterRoutes mounts the forecast endpoint onto the mux.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Get("/forecasts/{metric}", h.HandleForecast)
}

// HandleForecast handles GET /v1/forecasts/{metric}. Unknown metrics and
// out-of-range horizons are rejected before any fitting starts; a failed
// fit is reported in-band with status "unavailable" and a 200.
func (h *ForecastHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	metric, err := types.ParseMetric(chi.URLParam(r, "metric"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	horizon := defaultHorizonDays
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidHorizon,
				"horizon must be an integer number of days",
				err,
				map[string]any{"horizon": raw},
			))
			return
		}
		horizon = parsed
	}
	if err := types.ValidateHorizon(horizon); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.engine.Forecast(r.Context(), metric, horizon)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, result)
}
