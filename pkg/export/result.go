package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/orders"
	"github.com/Sternrassler/shop-order-export/pkg/picklist"
)

// SkippedBatch reports a batch whose orders are absent from the export.
type SkippedBatch struct {
	Index    int         `json:"index"`
	OrderIDs []orders.ID `json:"orderIds"`
	Kind     string      `json:"kind"`
	Message  string      `json:"message"`
}

// Result is the outcome of one export run. It is authoritative but may be
// partial; check Complete before relying on it.
type Result struct {
	RunID        string `json:"runId"`
	DeliveryDate string `json:"deliveryDate"`

	Headers     picklist.Row         `json:"headers"`
	Rows        []picklist.Row       `json:"rows"`
	PickingList picklist.PickingList `json:"pickingList"`

	// Orders is the number of ids the listing returned.
	Orders int `json:"orders"`

	SkippedBatches []SkippedBatch          `json:"skippedBatches"`
	SkippedOrders  []picklist.SkippedOrder `json:"skippedOrders,omitempty"`

	// Truncated is set when more orders matched than were listed.
	Truncated bool `json:"truncated"`

	GeneratedAt time.Time `json:"generatedAt"`

	// Cached is set when the result was served from the export cache.
	Cached bool `json:"cached"`
}

// Complete reports whether every matching order made it into the export.
func (r *Result) Complete() bool {
	return len(r.SkippedBatches) == 0 && len(r.SkippedOrders) == 0 && !r.Truncated
}

// Table returns the header, rows and picking list.
func (r *Result) Table() picklist.Table {
	return picklist.Table{Headers: r.Headers, Rows: r.Rows, PickingList: r.PickingList}
}

// WriteCSV writes the header and rows as CSV.
func (r *Result) WriteCSV(w io.Writer) error {
	return WriteCSV(w, r.Table())
}

// WriteCSV writes a table's header and rows as CSV.
func WriteCSV(w io.Writer, t picklist.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
