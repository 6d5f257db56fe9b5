// Package picklist folds fetched order records into export rows and a
// quantity-aggregated picking list for one delivery date.
package picklist

import (
	"strings"

	"github.com/Sternrassler/shop-order-export/pkg/orders"
)

// AttributeKeys names the custom attribute labels the storefront writes on
// the sampled line item.
type AttributeKeys struct {
	DeliveryDate string
	Including    string
	AddOns       string
	Removed      string

	// Reserved labels, carried for callers but not read by aggregation.
	Subscription   string
	AddOnProductTo string
	ShopID         string
}

// DefaultAttributeKeys returns the labels used by the storefront.
func DefaultAttributeKeys() AttributeKeys {
	return AttributeKeys{
		DeliveryDate:   "Delivery Date",
		Including:      "Including",
		AddOns:         "Add Ons",
		Removed:        "Removed",
		Subscription:   "Subscription",
		AddOnProductTo: "Add on product to",
		ShopID:         "ShopID",
	}
}

// AttributeBag maps attribute keys to values. On duplicate keys the last
// occurrence wins.
type AttributeBag map[string]string

// NewAttributeBag folds attrs into a bag.
func NewAttributeBag(attrs []orders.Attribute) AttributeBag {
	bag := make(AttributeBag, len(attrs))
	for _, a := range attrs {
		bag[a.Key] = a.Value
	}
	return bag
}

// Get returns the value for key, or "".
func (b AttributeBag) Get(key string) string {
	return b[key]
}

// List splits the value for key on commas, trims each token and drops empty
// ones. An absent key yields an empty list.
func (b AttributeBag) List(key string) []string {
	return SplitList(b[key])
}

// SplitList splits a comma list into trimmed, non-empty tokens.
func SplitList(s string) []string {
	out := []string{}
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Fields are the classified attributes of one order.
type Fields struct {
	DeliveryDate string
	Including    []string
	AddOns       []string
	Removed      []string
}

// Classify extracts the well-known fields from bag. DeliveryDate is kept
// verbatim; it is matched exactly against the target date.
func (k AttributeKeys) Classify(bag AttributeBag) Fields {
	return Fields{
		DeliveryDate: bag.Get(k.DeliveryDate),
		Including:    bag.List(k.Including),
		AddOns:       bag.List(k.AddOns),
		Removed:      bag.List(k.Removed),
	}
}
