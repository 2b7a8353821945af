package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/core"
	"epigrid/internal/node"
	"epigrid/internal/types"
)

// RecordIntake is the slice of the clinic node the HTTP surface needs.
type RecordIntake interface {
	Record(symptoms []string, severity int, ts time.Time) (types.SymptomRecord, error)
	Stats() types.NodeStats
}

// DeliveryTrigger requests a background delivery cycle.
type DeliveryTrigger interface {
	Trigger() types.DeliveryOutcome
}

// NodeMetrics counts committed records. May be nil.
type NodeMetrics interface {
	RecordAccepted()
}

// NodeHandler fronts one clinic node: record intake, manual sync, and local
// stats. Raw records never appear on any response or log line; only counts
// leave the node.
type NodeHandler struct {
	intake     RecordIntake
	dispatcher DeliveryTrigger
	builder    node.AggregateBuilder
	sender     node.AggregateSender
	window     time.Duration
	validator  *core.Validator
	metrics    NodeMetrics
	logger     *slog.Logger
}

// NodeHandlerConfig wires a NodeHandler. Window falls back to the default
// reporting window when zero; Dispatcher and Metrics may be nil.
type NodeHandlerConfig struct {
	Intake     RecordIntake
	Dispatcher DeliveryTrigger
	Builder    node.AggregateBuilder
	Sender     node.AggregateSender
	Window     time.Duration
	Validator  *core.Validator
	Metrics    NodeMetrics
	Logger     *slog.Logger
}

// NewNodeHandler creates a NodeHandler from cfg.
func NewNodeHandler(cfg NodeHandlerConfig) *NodeHandler {
	if cfg.Window <= 0 {
		cfg.Window = node.DefaultReportWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &NodeHandler{
		intake:     cfg.Intake,
		dispatcher: cfg.Dispatcher,
		builder:    cfg.Builder,
		sender:     cfg.Sender,
		window:     cfg.Window,
		validator:  cfg.Validator,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// RegisterRoutes mounts the node endpoints onto the mux.
func (h *NodeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/records", h.HandleSubmit)
	r.Post("/sync", h.HandleSync)
	r.Get("/stats", h.HandleStats)
}

// submitRecordRequest is the wire form of a symptom submission. Timestamps
// are always assigned server-side at capture time.
type submitRecordRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,max=50,dive,required,max=200"`
	Severity int      `json:"severity" validate:"required,min=1,max=10"`
}

// HandleSubmit handles POST /v1/records. The record is committed locally
// before the delivery trigger fires, and the response never waits on the
// push: the receipt reports only whether a cycle was queued.
func (h *NodeHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRecordRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rec, err := h.intake.Record(req.Symptoms, req.Severity, time.Time{})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordAccepted()
	}

	outcome := types.DeliverySkipped
	if h.dispatcher != nil {
		outcome = h.dispatcher.Trigger()
	}

	// Symptoms stay out of the log line.
	h.logger.Info("record committed",
		"record_id", rec.ID,
		"delivery", string(outcome),
	)

	core.JSON(w, r, http.StatusCreated, types.RecordReceipt{
		RecordID:  rec.ID,
		RiskScore: rec.RiskScore,
		Delivery:  outcome,
	})
}

// syncResponse reports a synchronous delivery attempt.
type syncResponse struct {
	Delivery types.DeliveryOutcome `json:"delivery"`
	Reason   string                `json:"reason,omitempty"`
	Ack      *node.PushAck         `json:"collector_ack,omitempty"`
}

// HandleSync handles POST /v1/sync: build an aggregate over the reporting
// window and push it inline, bypassing the background queue. An empty
// window is a skipped delivery, not an error.
func (h *NodeHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	agg, err := h.builder.BuildAggregate(h.window)
	if err != nil {
		if errors.Is(err, node.ErrNoRecentRecords) {
			core.JSON(w, r, http.StatusOK, syncResponse{
				Delivery: types.DeliverySkipped,
				Reason:   "no records in reporting window",
			})
			return
		}
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "aggregate build failed", err))
		return
	}

	ack, err := h.sender.Push(r.Context(), agg)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("manual sync delivered",
		"node_id", agg.NodeID,
		"collector_data_points", ack.DataPoints,
	)

	core.JSON(w, r, http.StatusOK, syncResponse{
		Delivery: types.DeliveryDelivered,
		Ack:      ack,
	})
}

// HandleStats handles GET /v1/stats: the node's local view.
func (h *NodeHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.intake.Stats())
}
