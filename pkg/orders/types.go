// Package orders holds the order data model returned by the shop detail
// query, the query templates, and the Lister that discovers open order ids.
package orders

import "encoding/json"

// ID is an opaque order handle (e.g. "gid://shopify/Order/1001"). It is only
// used to address follow-up queries and is never parsed.
type ID string

// Customer is the order's customer. May be absent on an order.
type Customer struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Address is a shipping address. May be absent on an order.
type Address struct {
	Phone    string `json:"phone"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
}

// Product is the product behind a line item.
type Product struct {
	ID          string `json:"id"`
	ProductType string `json:"productType"`
	Handle      string `json:"handle"`
	Title       string `json:"title"`
}

// Attribute is one free-form key/value pair attached to a line item.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LineItem is the single sampled line item of an order.
type LineItem struct {
	SKU              string      `json:"sku"`
	Product          *Product    `json:"product"`
	Quantity         int         `json:"quantity"`
	CustomAttributes []Attribute `json:"customAttributes"`
}

// Record is one order as reported by the detail query.
type Record struct {
	ID              ID        `json:"id"`
	Name            string    `json:"name"`
	Note            string    `json:"note"`
	Customer        *Customer `json:"customer"`
	ShippingAddress *Address  `json:"shippingAddress"`

	// LineItem is the first line item, nil when the order has none.
	LineItem *LineItem `json:"-"`
}

// UnmarshalJSON flattens lineItems.edges[0].node into LineItem.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var wire struct {
		plain
		LineItems struct {
			Edges []struct {
				Node LineItem `json:"node"`
			} `json:"edges"`
		} `json:"lineItems"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*r = Record(wire.plain)
	if len(wire.LineItems.Edges) > 0 {
		item := wire.LineItems.Edges[0].Node
		r.LineItem = &item
	}
	return nil
}

// Attributes returns the sampled line item's custom attributes, or nil.
func (r *Record) Attributes() []Attribute {
	if r.LineItem == nil {
		return nil
	}
	return r.LineItem.CustomAttributes
}

// SKU returns the sampled line item's SKU, or "".
func (r *Record) SKU() string {
	if r.LineItem == nil {
		return ""
	}
	return r.LineItem.SKU
}
