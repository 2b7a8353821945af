package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/core"
	"epigrid/internal/types"
)

// SummaryProvider serves windowed stats and map cells.
type SummaryProvider interface {
	Stats(window time.Duration) types.StatsSummary
	MapData(window time.Duration) []types.LocationSummary
}

// StatsHandler serves the collector's read surface.
type StatsHandler struct {
	provider      SummaryProvider
	defaultWindow time.Duration
	logger        *slog.Logger
}

// NewStatsHandler creates a StatsHandler. A non-positive defaultWindow
// falls back to 24 hours.
func NewStatsHandler(provider SummaryProvider, defaultWindow time.Duration, logger *slog.Logger) *StatsHandler {
	if defaultWindow <= 0 {
		defaultWindow = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		provider:      provider,
		defaultWindow: defaultWindow,
		logger:        logger,
	}
}

// RegisterRoutes mounts the stats endpoints onto the mux.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.HandleStats)
	r.Get("/map", h.HandleMap)
}

// HandleStats handles GET /v1/stats. An empty store yields a zero-valued
// summary, never an error.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, h.provider.Stats(window))
}

// HandleMap handles GET /v1/map. The cell list is ordered deterministically,
// so successive polls of an unchanged window return identical bodies.
func (h *StatsHandler) HandleMap(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, h.provider.MapData(window))
}

// window parses the optional ?window= query as a Go duration.
func (h *StatsHandler) window(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return h.defaultWindow, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidWindow,
			"window must be a positive duration such as 24h or 90m",
			err,
			map[string]any{"window": raw},
		)
	}
	return window, nil
}
