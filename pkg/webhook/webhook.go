// Package webhook receives shop order webhooks. Requests are authenticated by
// an HMAC-SHA256 signature over the raw body; order-state changes invalidate
// cached exports.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Headers set by the shop on webhook deliveries.
const (
	HMACHeader  = "X-Shopify-Hmac-Sha256"
	TopicHeader = "X-Shopify-Topic"
	ShopHeader  = "X-Shopify-Shop-Domain"
)

// MaxBodyBytes bounds the webhook body read for verification.
const MaxBodyBytes = 1 << 20

var (
	// ErrMissingSignature indicates the request carried no signature header.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrInvalidSignature indicates the signature does not match the body.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

var webhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_requests_total",
	Help: "Total webhook requests by topic and outcome",
}, []string{"topic", "outcome"})

// Topics that change what an export would contain.
var invalidatingTopics = map[string]bool{
	"orders/create":    true,
	"orders/updated":   true,
	"orders/paid":      true,
	"orders/fulfilled": true,
	"orders/cancelled": true,
}

// Metric labels for topics that are not taken from the request.
const (
	topicUnverified = "unverified"
	topicOther      = "other"
)

// topicLabel bounds the topic label set to the invalidating topics plus "other".
func topicLabel(topic string) string {
	if invalidatingTopics[topic] {
		return topic
	}
	return topicOther
}

// Sign returns the base64 HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the signature of body. The comparison is
// constant time.
func Verify(secret string, body []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Middleware rejects requests whose signature does not verify with 401.
// Verified requests reach next with their body intact.
func Middleware(secret string, next http.Handler) http.Handler {
	logger := log.With().Str("component", "webhook").Logger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		r.Body.Close()
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if len(body) > MaxBodyBytes {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}

		if err := Verify(secret, body, r.Header.Get(HMACHeader)); err != nil {
			webhookRequestsTotal.WithLabelValues(topicUnverified, "rejected").Inc()
			logger.Warn().
				Err(err).
				Str("topic", r.Header.Get(TopicHeader)).
				Str("shop", r.Header.Get(ShopHeader)).
				Msg("Rejected webhook")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// Invalidator drops cached exports. *cache.Manager implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Handler invalidates cached exports on order-state webhooks.
type Handler struct {
	invalidator Invalidator
	logger      zerolog.Logger
}

// NewHandler creates a webhook handler. A nil invalidator acknowledges every
// webhook without side effects.
func NewHandler(invalidator Invalidator) *Handler {
	return &Handler{
		invalidator: invalidator,
		logger:      log.With().Str("component", "webhook").Logger(),
	}
}

// ServeHTTP handles one webhook delivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	topic := r.Header.Get(TopicHeader)
	logger := h.logger.With().
		Str("topic", topic).
		Str("shop", r.Header.Get(ShopHeader)).
		Logger()

	if !invalidatingTopics[topic] || h.invalidator == nil {
		webhookRequestsTotal.WithLabelValues(topicLabel(topic), "ignored").Inc()
		logger.Debug().Msg("Webhook acknowledged")
		w.WriteHeader(http.StatusOK)
		return
	}

	gen, err := h.invalidator.Invalidate(r.Context())
	if err != nil {
		// A non-2xx answer makes the shop redeliver.
		webhookRequestsTotal.WithLabelValues(topic, "failed").Inc()
		logger.Error().Err(err).Msg("Cache invalidation failed")
		http.Error(w, "invalidation failed", http.StatusInternalServerError)
		return
	}

	webhookRequestsTotal.WithLabelValues(topic, "invalidated").Inc()
	logger.Info().Int64("generation", gen).Msg("Webhook invalidated export cache")
	w.WriteHeader(http.StatusOK)
}
