package picklist

import (
	"sort"
	"strings"

	"github.com/Sternrassler/shop-order-export/pkg/orders"
)

// Columns is the width of an export row.
const Columns = 16

// Row is one export row, positionally aligned with Header.
type Row [Columns]string

// Header names the export columns.
var Header = Row{
	"Logo",
	"SKU",
	"Delivered",
	"Order",
	"Run",
	"First Name",
	"Last Name",
	"Address 1",
	"Address 2",
	"City",
	"Zip",
	"Phone",
	"Removed",
	"Add Ons",
	"Note",
	"Shop Note",
}

// ListSeparator joins list fields inside a row.
const ListSeparator = ", "

// NewRow builds the export row for rec. A missing customer or shipping
// address leaves the corresponding fields empty.
func NewRow(rec *orders.Record, f Fields) Row {
	var row Row
	row[1] = rec.SKU()
	row[2] = f.DeliveryDate
	row[3] = rec.Name

	if c := rec.Customer; c != nil {
		row[5] = c.FirstName
		row[6] = c.LastName
		row[11] = c.Phone
	}
	if a := rec.ShippingAddress; a != nil {
		row[7] = a.Address1
		row[8] = a.Address2
		row[9] = a.City
		row[10] = a.Zip
		if a.Phone != "" {
			row[11] = a.Phone
		}
	}

	row[12] = strings.Join(f.Removed, ListSeparator)
	row[13] = strings.Join(f.AddOns, ListSeparator)
	row[14] = rec.Note
	return row
}

// Strings returns the row as a slice.
func (r Row) Strings() []string {
	out := make([]string, Columns)
	copy(out, r[:])
	return out
}

// PickingList maps an add-on item name to the number of units needed.
type PickingList map[string]int

// Add increments the count for name by n.
func (p PickingList) Add(name string, n int) {
	p[name] += n
}

// Item is one picking-list entry.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Items returns the entries sorted by name.
func (p PickingList) Items() []Item {
	items := make([]Item, 0, len(p))
	for name, n := range p {
		items = append(items, Item{Name: name, Quantity: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// Table is the assembled export: header, rows and picking list.
type Table struct {
	Headers     Row         `json:"headers"`
	Rows        []Row       `json:"rows"`
	PickingList PickingList `json:"pickingList"`
}

// Assemble prepends the header to rows. Rows and the picking list are
// passed through unchanged.
func Assemble(rows []Row, pl PickingList) Table {
	if rows == nil {
		rows = []Row{}
	}
	if pl == nil {
		pl = PickingList{}
	}
	return Table{Headers: Header, Rows: rows, PickingList: pl}
}

// Records returns the header followed by every row, ready for a CSV writer.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Headers.Strings())
	for _, r := range t.Rows {
		out = append(out, r.Strings())
	}
	return out
}
