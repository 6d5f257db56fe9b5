// Package testutil provides a mock shop GraphQL server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// FailureMode selects how the mock answers a batch containing a failing order.
type FailureMode int

const (
	// FailWithErrors answers 200 with a top-level GraphQL errors array.
	FailWithErrors FailureMode = iota + 1

	// FailWithStatus answers HTTP 500.
	FailWithStatus

	// FailWithGarbage answers 200 with a body that is not JSON.
	FailWithGarbage

	// FailWithHang delays the answer by the configured hang duration.
	FailWithHang
)

var (
	listPattern  = regexp.MustCompile(`orders\(first: (\d+)`)
	afterPattern = regexp.MustCompile(`after: "(\d+)"`)
	aliasPattern = regexp.MustCompile(`(\w+): order\(id: "([^"]+)"\)`)
)

// RecordedRequest is one request received by the mock.
type RecordedRequest struct {
	Query string
	Token string
	At    time.Time
}

// MockShop is a configurable mock of the shop GraphQL endpoint.
type MockShop struct {
	server *httptest.Server
	mu     sync.Mutex

	ids      []string
	orders   map[string]json.RawMessage
	failures map[string]FailureMode
	hang     time.Duration
	listErr  bool
	cost     bool

	requests []RecordedRequest
}

// NewMockShop creates a new mock shop server.
func NewMockShop() *MockShop {
	m := &MockShop{
		orders:   make(map[string]json.RawMessage),
		failures: make(map[string]FailureMode),
		hang:     2 * time.Second,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server base URL.
func (m *MockShop) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockShop) Close() {
	m.server.Close()
}

// AddOrder registers an order listed by the id query and answerable by detail queries.
// record is marshalled to JSON; pass nil to list the id but answer null for it.
func (m *MockShop) AddOrder(id string, record any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids = append(m.ids, id)
	if record == nil {
		m.orders[id] = json.RawMessage("null")
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal order %s: %v", id, err))
	}
	m.orders[id] = raw
}

// FailOrder makes every batch that contains id fail with mode.
func (m *MockShop) FailOrder(id string, mode FailureMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = mode
}

// SetHang sets how long FailWithHang delays.
func (m *MockShop) SetHang(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang = d
}

// FailListing makes the id listing query answer with GraphQL errors.
func (m *MockShop) FailListing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = true
}

// ReportCost adds an extensions.cost block to every successful answer.
func (m *MockShop) ReportCost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost = true
}

// Requests returns a copy of the requests received so far.
func (m *MockShop) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockShop) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockShop) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Query: body.Query,
		Token: r.Header.Get("X-Shopify-Access-Token"),
		At:    time.Now(),
	})
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if match := listPattern.FindStringSubmatch(body.Query); match != nil {
		first, _ := strconv.Atoi(match[1])
		after := -1
		if am := afterPattern.FindStringSubmatch(body.Query); am != nil {
			after, _ = strconv.Atoi(am[1])
		}
		m.answerList(w, first, after)
		return
	}

	m.answerBatch(w, r, aliasPattern.FindAllStringSubmatch(body.Query, -1))
}

func (m *MockShop) answerList(w http.ResponseWriter, first, after int) {
	m.mu.Lock()
	listErr := m.listErr
	ids := append([]string(nil), m.ids...)
	cost := m.cost
	m.mu.Unlock()

	if listErr {
		writeJSON(w, map[string]any{
			"errors": []map[string]any{{"message": "Access denied for orders field."}},
		})
		return
	}

	type edge struct {
		Cursor string         `json:"cursor"`
		Node   map[string]any `json:"node"`
	}
	start := after + 1
	end := start + first
	if end > len(ids) {
		end = len(ids)
	}
	edges := []edge{}
	for i := start; i < end; i++ {
		edges = append(edges, edge{Cursor: strconv.Itoa(i), Node: map[string]any{"id": ids[i]}})
	}
	endCursor := ""
	if len(edges) > 0 {
		endCursor = edges[len(edges)-1].Cursor
	}

	resp := map[string]any{
		"data": map[string]any{
			"orders": map[string]any{
				"edges": edges,
				"pageInfo": map[string]any{
					"hasNextPage": end < len(ids),
					"endCursor":   endCursor,
				},
			},
		},
	}
	if cost {
		resp["extensions"] = costExtension()
	}
	writeJSON(w, resp)
}

func (m *MockShop) answerBatch(w http.ResponseWriter, r *http.Request, aliases [][]string) {
	m.mu.Lock()
	mode := FailureMode(0)
	for _, a := range aliases {
		if f, ok := m.failures[a[2]]; ok {
			mode = f
			break
		}
	}
	hang := m.hang
	cost := m.cost
	data := make(map[string]json.RawMessage, len(aliases))
	for _, a := range aliases {
		raw, ok := m.orders[a[2]]
		if !ok {
			raw = json.RawMessage("null")
		}
		data[a[1]] = raw
	}
	m.mu.Unlock()

	switch mode {
	case FailWithErrors:
		writeJSON(w, map[string]any{
			"data":   data,
			"errors": []map[string]any{{"message": "Internal error. Looks like something went wrong on our end."}},
		})
		return
	case FailWithStatus:
		http.Error(w, `{"errors":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	case FailWithGarbage:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>maintenance</html>"))
		return
	case FailWithHang:
		select {
		case <-time.After(hang):
		case <-r.Context().Done():
			return
		}
	}

	resp := map[string]any{"data": data}
	if cost {
		resp["extensions"] = costExtension()
	}
	writeJSON(w, resp)
}

func costExtension() map[string]any {
	return map[string]any{
		"cost": map[string]any{
			"requestedQueryCost": 62,
			"actualQueryCost":    32,
			"throttleStatus": map[string]any{
				"maximumAvailable":   1000.0,
				"currentlyAvailable": 968.0,
				"restoreRate":        50.0,
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// Order builds a mock order record in the detail query's response shape.
// attrs alternates key, value.
func Order(id, name, sku string, attrs ...string) map[string]any {
	custom := make([]map[string]string, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		custom = append(custom, map[string]string{"key": attrs[i], "value": attrs[i+1]})
	}
	return map[string]any{
		"id":   id,
		"name": name,
		"note": "",
		"customer": map[string]any{
			"email":     "ada@example.com",
			"phone":     "+15550001",
			"firstName": "Ada",
			"lastName":  "Lovelace",
		},
		"shippingAddress": map[string]any{
			"phone":    "+15550002",
			"address1": "1 Market St",
			"address2": nil,
			"city":     "Springfield",
			"province": "IL",
			"zip":      "62701",
		},
		"lineItems": map[string]any{
			"edges": []map[string]any{{
				"node": map[string]any{
					"sku":      sku,
					"quantity": 1,
					"product": map[string]any{
						"id":          "gid://shopify/Product/1",
						"productType": "Box",
						"handle":      "veggie-box",
						"title":       "Veggie Box",
					},
					"customAttributes": custom,
				},
			}},
		},
	}
}
