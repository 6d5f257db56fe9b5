package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/Sternrassler/shop-order-export/pkg/export"
	"github.com/Sternrassler/shop-order-export/pkg/metrics"
	"github.com/Sternrassler/shop-order-export/pkg/picklist"
	"github.com/Sternrassler/shop-order-export/pkg/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// exportRunner runs one export. *export.Exporter implements it.
type exportRunner interface {
	Run(ctx context.Context, req export.Request) (*export.Result, error)
}

// redisPinger is the part of *redis.Client the readiness probe needs.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type server struct {
	exporter      exportRunner
	redis         redisPinger
	invalidator   webhook.Invalidator
	webhookSecret string
	logger        zerolog.Logger
}

func newMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(s.redis))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /export", s.exportHandler)
	mux.HandleFunc("GET /export.csv", s.exportCSVHandler)
	mux.HandleFunc("GET /picklist", s.picklistHandler)
	if s.webhookSecret != "" {
		mux.Handle("POST /webhooks/orders", webhook.Middleware(s.webhookSecret, webhook.NewHandler(s.invalidator)))
	}
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func readyHandler(rdb redisPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// run executes an export for the request's date parameter and writes an
// error response when it cannot.
func (s *server) run(w http.ResponseWriter, r *http.Request) (*export.Result, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "missing date parameter", http.StatusBadRequest)
		return nil, false
	}

	res, err := s.exporter.Run(r.Context(), export.Request{
		DeliveryDate: date,
		StatusQuery:  r.URL.Query().Get("status"),
	})
	if err != nil {
		kind := client.Kind(err)
		s.logger.Error().Err(err).Str("error_kind", kind).Msg("Export failed")

		status := http.StatusBadGateway
		if kind == "timeout" {
			status = http.StatusGatewayTimeout
		}
		// The error text can carry upstream response bytes; callers get the kind only.
		http.Error(w, "export failed: "+kind, status)
		return nil, false
	}

	w.Header().Set("X-Export-Run-Id", res.RunID)
	if !res.Complete() {
		w.Header().Set("X-Export-Partial", "true")
	}
	return res, true
}

func (s *server) exportHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, res)
}

func (s *server) exportCSVHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
	if err := res.WriteCSV(w); err != nil {
		s.logger.Error().Err(err).Str("run_id", res.RunID).Msg("Failed to write CSV")
	}
}

type picklistResponse struct {
	RunID        string          `json:"runId"`
	DeliveryDate string          `json:"deliveryDate"`
	Items        []picklist.Item `json:"items"`
	Complete     bool            `json:"complete"`
}

func (s *server) picklistHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, picklistResponse{
		RunID:        res.RunID,
		DeliveryDate: res.DeliveryDate,
		Items:        res.PickingList.Items(),
		Complete:     res.Complete(),
	})
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
