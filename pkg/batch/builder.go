package batch

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/shop-order-export/pkg/orders"
)

// DefaultSize is the number of orders fetched by one batch query.
const DefaultSize = 5

// AliasPrefix prefixes the per-position alias of each sub-request.
const AliasPrefix = "order"

// SubRequest is one aliased order lookup inside a batch.
type SubRequest struct {
	Alias string
	ID    orders.ID
}

// Batch is a group of sub-requests compiled into one query.
type Batch struct {
	Index    int
	Requests []SubRequest
	Query    string
}

// IDs returns the order ids of the batch in alias order.
func (b Batch) IDs() []orders.ID {
	ids := make([]orders.ID, len(b.Requests))
	for i, r := range b.Requests {
		ids[i] = r.ID
	}
	return ids
}

// Alias returns the alias for position pos within a batch.
func Alias(pos int) string {
	return AliasPrefix + strconv.Itoa(pos)
}

// Build partitions ids into batches of at most size and compiles each one.
// The last batch may be smaller; no ids yields no batches.
func Build(ids []orders.ID, size int) []Batch {
	if size <= 0 {
		size = DefaultSize
	}

	batches := make([]Batch, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}

		reqs := make([]SubRequest, 0, end-start)
		for pos, id := range ids[start:end] {
			reqs = append(reqs, SubRequest{Alias: Alias(pos), ID: id})
		}

		batches = append(batches, Batch{
			Index:    len(batches),
			Requests: reqs,
			Query:    Compile(reqs),
		})
	}
	return batches
}

// Compile renders sub-requests as one GraphQL query document.
func Compile(reqs []SubRequest) string {
	var b strings.Builder
	b.WriteString("query OrdersBatch {\n")
	for _, r := range reqs {
		b.WriteString("  ")
		b.WriteString(orders.SubQuery(r.Alias, r.ID))
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}
