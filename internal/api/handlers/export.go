package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ArchiveStreamer writes the aggregate log as a compressed archive.
type ArchiveStreamer interface {
	Stream(w io.Writer) (int, error)
	Filename() string
}

// ExportHandler serves the aggregate-log archive download.
type ExportHandler struct {
	exporter ArchiveStreamer
	logger   *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exporter ArchiveStreamer, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{exporter: exporter, logger: logger}
}

// RegisterRoutes mounts the export endpoint onto the mux.
func (h *ExportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/export", h.HandleExport)
}

// HandleExport handles GET /v1/export: the full aggregate log as
// zstd-compressed JSON lines. The body streams, so a mid-stream failure can
// only be logged and the download truncated.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filename := h.exporter.Filename()
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	rows, err := h.exporter.Stream(w)
	if err != nil {
		h.logger.Error("export stream failed",
			"error", err,
			"rows_written", rows,
		)
		return
	}
	h.logger.Info("export streamed",
		"filename", filename,
		"rows", rows,
	)
}
