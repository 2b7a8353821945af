// Package export streams the collector's full aggregate log as
// zstd-compressed JSON Lines, one stored aggregate per line. The stream is
// built from a point-in-time snapshot, so a long download never holds the
// store's lock.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"epigrid/internal/types"
)

// SnapshotSource supplies a point-in-time copy of the aggregate log.
type SnapshotSource interface {
	Snapshot() []types.StoredAggregate
}

// Exporter serializes snapshots for offline analysis.
type Exporter struct {
	source SnapshotSource
	clock  types.Clock
}

// NewExporter creates an Exporter. A nil clock falls back to real UTC time.
func NewExporter(source SnapshotSource, clock types.Clock) *Exporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Exporter{source: source, clock: clock}
}

// Stream writes the snapshot to w as zstd-compressed JSON Lines and returns
// the number of rows written.
func (e *Exporter) Stream(w io.Writer) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	snap := e.source.Snapshot()
	for i := range snap {
		if err := enc.Encode(snap[i]); err != nil {
			zw.Close()
			return i, fmt.Errorf("encode aggregate %d: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return len(snap), fmt.Errorf("flush zstd stream: %w", err)
	}
	return len(snap), nil
}

// Filename returns a timestamped attachment name for the current export.
func (e *Exporter) Filename() string {
	return fmt.Sprintf("aggregates-%s.jsonl.zst", e.clock.Now().UTC().Format("20060102T150405Z"))
}
