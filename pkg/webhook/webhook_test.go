package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "hush"

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(context.Context) (int64, error) {
	f.calls++
	return int64(f.calls), f.err
}

func TestVerify(t *testing.T) {
	body := []byte(`{"id":820982911946154508}`)
	good := Sign(secret, body)

	tests := []struct {
		name    string
		body    []byte
		header  string
		wantErr error
	}{
		{name: "valid", body: body, header: good},
		{name: "missing header", body: body, header: "", wantErr: ErrMissingSignature},
		{name: "not base64", body: body, header: "%%%", wantErr: ErrInvalidSignature},
		{name: "tampered body", body: []byte(`{"id":1}`), header: good, wantErr: ErrInvalidSignature},
		{name: "wrong secret", body: body, header: Sign("other", body), wantErr: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(secret, tt.body, tt.header)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	got := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg=", got)
}

func TestMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(secret, next)

	body := `{"id":1}`

	t.Run("valid signature passes body through", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(body))
		req.Header.Set(HMACHeader, Sign(secret, []byte(body)))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, seen)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(body))
		req.Header.Set(HMACHeader, Sign("wrong", []byte(body)))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, seen)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := strings.Repeat("a", MaxBodyBytes+1)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(big))
		req.Header.Set(HMACHeader, Sign(secret, []byte(big)))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		topic     string
		invErr    error
		wantCode  int
		wantCalls int
	}{
		{name: "order created", method: http.MethodPost, topic: "orders/create", wantCode: http.StatusOK, wantCalls: 1},
		{name: "order cancelled", method: http.MethodPost, topic: "orders/cancelled", wantCode: http.StatusOK, wantCalls: 1},
		{name: "unrelated topic", method: http.MethodPost, topic: "products/update", wantCode: http.StatusOK, wantCalls: 0},
		{name: "invalidation fails", method: http.MethodPost, topic: "orders/paid", invErr: errors.New("redis down"), wantCode: http.StatusInternalServerError, wantCalls: 1},
		{name: "wrong method", method: http.MethodGet, topic: "orders/create", wantCode: http.StatusMethodNotAllowed, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvalidator{err: tt.invErr}
			req := httptest.NewRequest(tt.method, "/webhooks/orders", strings.NewReader(`{}`))
			req.Header.Set(TopicHeader, tt.topic)
			rec := httptest.NewRecorder()

			NewHandler(inv).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCalls, inv.calls)
		})
	}
}

func TestHandler_NilInvalidator(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(`{}`))
	req.Header.Set(TopicHeader, "orders/create")
	rec := httptest.NewRecorder()

	NewHandler(nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_TopicLabelsBounded(t *testing.T) {
	h := Middleware(secret, NewHandler(&fakeInvalidator{}))
	rejected := webhookRequestsTotal.WithLabelValues(topicUnverified, "rejected")
	before := testutil.ToFloat64(rejected)

	send := func(topic, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", strings.NewReader(`{}`))
		req.Header.Set(TopicHeader, topic)
		req.Header.Set(HMACHeader, sig)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	const n = 200
	for i := 0; i < n; i++ {
		require.Equal(t, http.StatusUnauthorized, send(fmt.Sprintf("junk/%d", i), Sign("wrong", []byte(`{}`))))
		require.Equal(t, http.StatusOK, send(fmt.Sprintf("other/%d", i), Sign(secret, []byte(`{}`))))
	}

	assert.Equal(t, float64(n), testutil.ToFloat64(rejected)-before)

	// Every invalidating topic plus "unverified" and "other", under four outcomes.
	maxSeries := (len(invalidatingTopics) + 2) * 4
	assert.LessOrEqual(t, testutil.CollectAndCount(webhookRequestsTotal), maxSeries)
}

func TestTopicLabel(t *testing.T) {
	assert.Equal(t, "orders/paid", topicLabel("orders/paid"))
	assert.Equal(t, topicOther, topicLabel("products/update"))
	assert.Equal(t, topicOther, topicLabel(""))
}
