// Package handlers maps the HTTP surface of both binaries onto the domain
// packages: aggregate intake, stats, map, forecast, and export queries on
// the collector; record intake, manual sync, and local stats on the clinic
// node.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/core"
	"epigrid/internal/node"
	"epigrid/internal/types"
)

// AggregateAppender is the slice of the store the intake handler needs.
type AggregateAppender interface {
	Append(agg types.NodeAggregate) (types.StoredAggregate, int)
}

// IntakeMetrics counts accepted aggregates. May be nil.
type IntakeMetrics interface {
	AggregateAccepted()
}

// AggregateHandler accepts noised aggregates pushed by clinic nodes.
type AggregateHandler struct {
	store     AggregateAppender
	validator *core.Validator
	metrics   IntakeMetrics
	logger    *slog.Logger
}

// NewAggregateHandler creates an AggregateHandler with the provided
// dependencies. Metrics may be nil.
func NewAggregateHandler(store AggregateAppender, val *core.Validator, metrics IntakeMetrics, logger *slog.Logger) *AggregateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateHandler{
		store:     store,
		validator: val,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterRoutes mounts the intake endpoint onto the mux.
func (h *AggregateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/aggregates", h.HandlePush)
}

// pushLocation mirrors types.Location with intake validation rules.
type pushLocation struct {
	Lat         float64 `json:"lat" validate:"latitude"`
	Lon         float64 `json:"lon" validate:"longitude"`
	DisplayName string  `json:"display_name"`
}

// pushAggregateRequest is the wire form of a node push. The hash is checked
// for shape only; the collector holds no pre-noise values to verify it
// against.
type pushAggregateRequest struct {
	NodeID       string       `json:"node_id" validate:"required"`
	PatientCount float64      `json:"patient_count" validate:"min=0"`
	AvgRiskScore float64      `json:"avg_risk_score" validate:"min=0,max=1"`
	Location     pushLocation `json:"location" validate:"required"`
	Timestamp    time.Time    `json:"timestamp" validate:"required"`
	DataHash     string       `json:"data_hash" validate:"required,len=64,hexadecimal"`
}

func (req pushAggregateRequest) toAggregate() types.NodeAggregate {
	return types.NodeAggregate{
		NodeID:       req.NodeID,
		PatientCount: req.PatientCount,
		AvgRiskScore: req.AvgRiskScore,
		Location: types.Location{
			Lat:         req.Location.Lat,
			Lon:         req.Location.Lon,
			DisplayName: req.Location.DisplayName,
		},
		Timestamp: req.Timestamp,
		DataHash:  req.DataHash,
	}
}

// HandlePush handles POST /v1/aggregates. Every well-formed push is stored
// unconditionally, duplicates included; the ack reports the new log length.
func (h *AggregateHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	var req pushAggregateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	stored, total := h.store.Append(req.toAggregate())
	if h.metrics != nil {
		h.metrics.AggregateAccepted()
	}

	h.logger.Info("aggregate received",
		"node_id", req.NodeID,
		"receipt_id", stored.ReceiptID,
		"total_data_points", total,
	)

	core.JSON(w, r, http.StatusAccepted, node.PushAck{
		Status:     "received",
		DataPoints: total,
	})
}
