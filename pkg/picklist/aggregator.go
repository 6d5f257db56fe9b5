package picklist

import (
	"encoding/json"
	"sort"

	"github.com/Sternrassler/shop-order-export/pkg/batch"
	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/Sternrassler/shop-order-export/pkg/orders"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Skip reasons for individual orders.
const (
	ReasonMissing = "missing"
	ReasonNull    = "null"
	ReasonDecode  = "decode"
	ReasonInvalid = "invalid"
)

// SkippedOrder is an order inside a successful batch that produced no row.
type SkippedOrder struct {
	Batch   int       `json:"batch"`
	Alias   string    `json:"alias"`
	OrderID orders.ID `json:"orderId"`
	Reason  string    `json:"reason"`
}

// Aggregation is the output of one aggregation pass.
type Aggregation struct {
	Rows        []Row
	PickingList PickingList

	// Matched counts orders whose delivery date equals the target.
	Matched int

	SkippedBatches []int
	SkippedOrders  []SkippedOrder
}

// Aggregator turns batch results into rows and a picking list.
type Aggregator struct {
	keys   AttributeKeys
	logger zerolog.Logger
}

// NewAggregator creates an aggregator reading the given attribute labels.
func NewAggregator(keys AttributeKeys) *Aggregator {
	return &Aggregator{
		keys:   keys,
		logger: log.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate runs an aggregation pass with the default attribute labels.
func Aggregate(results []batch.Result, targetDate string) *Aggregation {
	return NewAggregator(DefaultAttributeKeys()).Aggregate(results, targetDate)
}

// Aggregate walks results in batch index order and, within a batch, in alias
// order. Failed batches are skipped whole. Every decodable order yields a
// row; only orders delivered on targetDate feed the picking list.
func (a *Aggregator) Aggregate(results []batch.Result, targetDate string) *Aggregation {
	sorted := make([]batch.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Batch.Index < sorted[j].Batch.Index
	})

	agg := &Aggregation{
		Rows:        []Row{},
		PickingList: PickingList{},
	}

	for _, res := range sorted {
		if !res.OK() {
			agg.SkippedBatches = append(agg.SkippedBatches, res.Batch.Index)
			a.logger.Warn().
				Err(res.Err).
				Int("batch", res.Batch.Index).
				Str("error_kind", client.Kind(res.Err)).
				Int("orders", len(res.Batch.Requests)).
				Msg("Skipping failed batch")
			continue
		}

		for _, req := range res.Batch.Requests {
			rec, reason := decodeRecord(res, req.Alias)
			if rec == nil {
				agg.SkippedOrders = append(agg.SkippedOrders, SkippedOrder{
					Batch:   res.Batch.Index,
					Alias:   req.Alias,
					OrderID: req.ID,
					Reason:  reason,
				})
				a.logger.Warn().
					Int("batch", res.Batch.Index).
					Str("alias", req.Alias).
					Str("order_id", string(req.ID)).
					Str("reason", reason).
					Msg("Skipping order")
				continue
			}

			fields := a.keys.Classify(NewAttributeBag(rec.Attributes()))
			if fields.DeliveryDate == targetDate {
				agg.Matched++
				for _, tok := range fields.AddOns {
					item := ParseAddOn(tok)
					agg.PickingList.Add(item.Name, item.Quantity)
				}
			}
			agg.Rows = append(agg.Rows, NewRow(rec, fields))
		}
	}

	a.logger.Debug().
		Int("rows", len(agg.Rows)).
		Int("matched", agg.Matched).
		Int("items", len(agg.PickingList)).
		Int("skipped_batches", len(agg.SkippedBatches)).
		Int("skipped_orders", len(agg.SkippedOrders)).
		Msg("Aggregation complete")

	return agg
}

func decodeRecord(res batch.Result, alias string) (*orders.Record, string) {
	raw, ok := res.Lookup(alias)
	if !ok {
		return nil, ReasonMissing
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ReasonNull
	}
	var rec orders.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ReasonDecode
	}
	// Inline error objects decode without an id.
	if rec.ID == "" {
		return nil, ReasonInvalid
	}
	return &rec, ""
}
