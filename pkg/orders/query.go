package orders

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultStatusQuery selects orders that are paid but not yet fulfilled.
const DefaultStatusQuery = "fulfillment_status:unfulfilled AND financial_status:paid"

// DefaultPageSize is the number of ids requested by one listing query.
const DefaultPageSize = 100

// RecordSelection is the selection set requested for every order in a detail batch.
const RecordSelection = `{
    id
    name
    note
    customer { email phone firstName lastName }
    shippingAddress { phone address1 address2 city province zip }
    lineItems(first: 1) {
      edges {
        node {
          sku
          quantity
          product { id productType handle title }
          customAttributes { key value }
        }
      }
    }
  }`

// ListQuery compiles the id listing query. after is the cursor to continue
// from, or "" for the first page.
func ListQuery(statusQuery string, pageSize int, after string) string {
	args := fmt.Sprintf("first: %d, query: %s", pageSize, Quote(statusQuery))
	if after != "" {
		args += ", after: " + Quote(after)
	}

	var b strings.Builder
	b.WriteString("query ListOrderIDs {\n")
	fmt.Fprintf(&b, "  orders(%s) {\n", args)
	b.WriteString("    edges { cursor node { id } }\n")
	b.WriteString("    pageInfo { hasNextPage endCursor }\n")
	b.WriteString("  }\n}")
	return b.String()
}

// SubQuery compiles one aliased order lookup for a detail batch.
func SubQuery(alias string, id ID) string {
	return fmt.Sprintf("%s: order(id: %s) %s", alias, Quote(string(id)), RecordSelection)
}

// Quote renders s as a GraphQL string literal.
func Quote(s string) string {
	// JSON string syntax is a subset of GraphQL string syntax.
	b, _ := json.Marshal(s)
	return string(b)
}
