package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxPages stops exhaustive listing from looping on a misbehaving cursor.
const maxPages = 200

// Querier runs one GraphQL query. *client.Client implements it.
type Querier interface {
	Query(ctx context.Context, operation, query string) (*client.Response, error)
}

// Listing is the result of one id discovery.
type Listing struct {
	IDs []ID

	// Truncated is true when more orders matched than were listed.
	Truncated bool

	// Pages is the number of listing queries issued.
	Pages int
}

// Lister discovers the ids of orders matching a status filter.
type Lister struct {
	querier    Querier
	pageSize   int
	exhaustive bool
	logger     zerolog.Logger
}

// NewLister creates a lister. With exhaustive false only the first page is
// listed, matching the historical export behaviour.
func NewLister(q Querier, pageSize int, exhaustive bool) *Lister {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Lister{
		querier:    q,
		pageSize:   pageSize,
		exhaustive: exhaustive,
		logger:     log.With().Str("component", "id-lister").Logger(),
	}
}

type listData struct {
	Orders struct {
		Edges []struct {
			Cursor string `json:"cursor"`
			Node   struct {
				ID ID `json:"id"`
			} `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"orders"`
}

// ListIDs returns the ids of orders matching statusQuery in the order the
// remote API lists them. Any failure aborts the listing.
func (l *Lister) ListIDs(ctx context.Context, statusQuery string) (*Listing, error) {
	start := time.Now()
	listing := &Listing{IDs: []ID{}}
	after := ""

	for {
		resp, err := l.querier.Query(ctx, "orders_list", ListQuery(statusQuery, l.pageSize, after))
		listing.Pages++
		if err != nil {
			return nil, fmt.Errorf("list order ids: %w", err)
		}

		var data listData
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			return nil, fmt.Errorf("list order ids: %w", &client.DecodeError{Err: fmt.Errorf("response has no data")})
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("list order ids: %w", &client.DecodeError{Snippet: string(resp.Data), Err: err})
		}

		for _, edge := range data.Orders.Edges {
			listing.IDs = append(listing.IDs, edge.Node.ID)
		}

		page := data.Orders.PageInfo
		if !page.HasNextPage {
			break
		}
		if !l.exhaustive || page.EndCursor == "" || listing.Pages >= maxPages {
			listing.Truncated = true
			break
		}
		after = page.EndCursor
	}

	l.logger.Info().
		Int("orders", len(listing.IDs)).
		Int("pages", listing.Pages).
		Bool("truncated", listing.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Listed order ids")

	if listing.Truncated {
		l.logger.Warn().
			Int("page_size", l.pageSize).
			Msg("More orders match than were listed; export is incomplete")
	}

	return listing, nil
}
